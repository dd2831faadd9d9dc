// Package model defines the data types shared by the drawer cache, loader and
// search packages.
package model

import (
	"strconv"
	"strings"
	"time"
)

// KeySeparator separates the package id and activity name in an entry key.
const KeySeparator = "|"

// AppEntry identifies one launchable activity. It is immutable once
// discovered; a registry change produces new entries rather than mutating
// existing ones.
type AppEntry struct {
	PackageID    string `json:"package_id"`
	ActivityName string `json:"activity_name"`
}

// Key returns the "packageId|activityName" form used in persisted snapshots.
func (e AppEntry) Key() string {
	return e.PackageID + KeySeparator + e.ActivityName
}

// IsZero reports whether the entry has no package id.
func (e AppEntry) IsZero() bool {
	return e.PackageID == ""
}

// ParseEntryKey parses a "packageId|activityName" record.
// Records with an empty package id or a missing separator are rejected.
func ParseEntryKey(s string) (AppEntry, bool) {
	pkg, activity, ok := strings.Cut(s, KeySeparator)
	if !ok {
		return AppEntry{}, false
	}
	pkg = strings.TrimSpace(pkg)
	activity = strings.TrimSpace(activity)
	if pkg == "" || strings.Contains(activity, KeySeparator) {
		return AppEntry{}, false
	}
	return AppEntry{PackageID: pkg, ActivityName: activity}, true
}

// AppMetadata is the display metadata for one package.
type AppMetadata struct {
	PackageID    string    `json:"package_id"`
	ActivityName string    `json:"activity"`
	Label        string    `json:"label"`
	LastUpdated  time.Time `json:"last_updated"`

	// Stamp is the registry UpdatedAt the label was resolved against, in
	// epoch milliseconds. Zero when unknown.
	Stamp int64 `json:"stamp,omitempty"`
}

// IsStale reports whether the metadata is older than maxAge at now.
func (m AppMetadata) IsStale(now time.Time, maxAge time.Duration) bool {
	if m.LastUpdated.IsZero() {
		return true
	}
	return now.Sub(m.LastUpdated) >= maxAge
}

// PackageStamp is the registry update timestamp of one installed package.
type PackageStamp struct {
	PackageID string `json:"package_id"`
	UpdatedAt int64  `json:"updated_at"` // epoch milliseconds
}

// ListVersion computes the "{count}_{sumOfUpdateTimestamps}" fingerprint over
// all installed packages. Installing, removing or updating any package changes
// it. It is cheap and not collision resistant.
func ListVersion(stamps []PackageStamp) string {
	var sum int64
	for _, s := range stamps {
		sum += s.UpdatedAt
	}
	return strconv.Itoa(len(stamps)) + "_" + strconv.FormatInt(sum, 10)
}

// CloneEntries returns a copy of entries. A nil input yields an empty slice.
func CloneEntries(entries []AppEntry) []AppEntry {
	out := make([]AppEntry, len(entries))
	copy(out, entries)
	return out
}

// EntryPackages returns the set of package ids present in entries.
func EntryPackages(entries []AppEntry) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e.PackageID] = struct{}{}
	}
	return set
}

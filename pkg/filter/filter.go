// Package filter turns a raw installed-app list into the display list.
//
// Apply is a pure, single-pass filter; Sort is a stable sort by SortKey.
// Neither mutates its input.
package filter

import (
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// Options holds the mode flags and sets the filter evaluates. Nil sets are
// treated as empty.
type Options struct {
	// SelfPackage is the launcher's own package id. Its entries are hidden
	// except SelfSettingsActivity.
	SelfPackage          string
	SelfSettingsActivity string

	Hidden map[string]struct{}

	FocusActive bool
	FocusAllow  map[string]struct{}

	WorkspaceActive bool
	WorkspaceApps   map[string]struct{}

	ShowAll   bool
	Favorites map[string]struct{}
}

// Set builds a package-id set.
func Set(ids ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Reason names the predicate that excluded an entry.
type Reason int

const (
	Keep Reason = iota
	ExcludedSelf
	ExcludedHidden
	ExcludedFocus
	ExcludedWorkspace
	ExcludedFavorites
)

func (r Reason) String() string {
	switch r {
	case Keep:
		return "keep"
	case ExcludedSelf:
		return "self"
	case ExcludedHidden:
		return "hidden"
	case ExcludedFocus:
		return "focus"
	case ExcludedWorkspace:
		return "workspace"
	case ExcludedFavorites:
		return "favorites"
	default:
		return "unknown"
	}
}

// Check evaluates the predicates in precedence order and returns the first
// failing one, or Keep.
func (o Options) Check(e model.AppEntry) Reason {
	if o.SelfPackage != "" && e.PackageID == o.SelfPackage && e.ActivityName != o.SelfSettingsActivity {
		return ExcludedSelf
	}
	if has(o.Hidden, e.PackageID) {
		return ExcludedHidden
	}
	if o.FocusActive && !has(o.FocusAllow, e.PackageID) {
		return ExcludedFocus
	}
	if o.WorkspaceActive {
		// An active workspace defines the visible set on its own.
		if !has(o.WorkspaceApps, e.PackageID) {
			return ExcludedWorkspace
		}
		return Keep
	}
	if !o.ShowAll && !has(o.Favorites, e.PackageID) {
		return ExcludedFavorites
	}
	return Keep
}

// Excluded applies only the exclusions that also bind search results:
// launcher-self, hidden apps and focus mode.
func (o Options) Excluded(e model.AppEntry) bool {
	if o.SelfPackage != "" && e.PackageID == o.SelfPackage && e.ActivityName != o.SelfSettingsActivity {
		return true
	}
	if has(o.Hidden, e.PackageID) {
		return true
	}
	return o.FocusActive && !has(o.FocusAllow, e.PackageID)
}

// Apply returns the entries of raw that pass every predicate, in raw order.
func Apply(raw []model.AppEntry, opts Options) []model.AppEntry {
	out := make([]model.AppEntry, 0, len(raw))
	for _, e := range raw {
		if opts.Check(e) == Keep {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a deep copy of the options so callers can keep mutating
// their own sets.
func (o Options) Clone() Options {
	c := o
	c.Hidden = cloneSet(o.Hidden)
	c.FocusAllow = cloneSet(o.FocusAllow)
	c.WorkspaceApps = cloneSet(o.WorkspaceApps)
	c.Favorites = cloneSet(o.Favorites)
	return c
}

func has(set map[string]struct{}, id string) bool {
	if set == nil {
		return false
	}
	_, ok := set[id]
	return ok
}

func cloneSet(s map[string]struct{}) map[string]struct{} {
	if s == nil {
		return nil
	}
	c := make(map[string]struct{}, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

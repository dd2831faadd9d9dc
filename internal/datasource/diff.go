package datasource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// StampDiff describes how the installed package set changed between two
// registry snapshots.
type StampDiff struct {
	// Added are packages present only in the new snapshot.
	Added []string
	// Removed are packages present only in the old snapshot.
	Removed []string
	// Changed are packages whose update timestamp differs.
	Changed []string
}

// HasChanges reports whether anything differs.
func (d StampDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// Summary returns a human-readable summary.
func (d StampDiff) Summary() string {
	if !d.HasChanges() {
		return "no package changes"
	}
	var b strings.Builder
	write := func(kind string, ids []string) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(&b, "%d %s", len(ids), kind)
		if len(ids) <= 5 {
			fmt.Fprintf(&b, " (%s)", strings.Join(ids, ", "))
		}
		b.WriteString("; ")
	}
	write("added", d.Added)
	write("removed", d.Removed)
	write("changed", d.Changed)
	return strings.TrimSuffix(b.String(), "; ")
}

// DiffStamps compares two stamp sets. Result slices are sorted.
func DiffStamps(old, current []model.PackageStamp) StampDiff {
	before := make(map[string]int64, len(old))
	for _, s := range old {
		before[s.PackageID] = s.UpdatedAt
	}
	after := make(map[string]int64, len(current))
	for _, s := range current {
		after[s.PackageID] = s.UpdatedAt
	}

	var d StampDiff
	for id, ts := range after {
		prev, ok := before[id]
		switch {
		case !ok:
			d.Added = append(d.Added, id)
		case prev != ts:
			d.Changed = append(d.Changed, id)
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d
}

package filter

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// Sentinel is prefixed to keys of labels that start with a digit so they
// sort after every alphabetic label. Labels starting with '#' get it twice
// and land after the digit group.
const Sentinel = string(utf8.MaxRune)

// LabelFunc resolves the display label for an entry. ok is false when no
// label is known yet.
type LabelFunc func(e model.AppEntry) (label string, ok bool)

// Sorter builds sort keys with locale-aware lower-casing.
type Sorter struct {
	lower cases.Caser
}

// NewSorter returns a Sorter for the given locale. language.Und gives
// locale-neutral folding.
func NewSorter(tag language.Tag) *Sorter {
	return &Sorter{lower: cases.Lower(tag)}
}

var defaultSorter = NewSorter(language.Und)

// SortKey returns the key for label using locale-neutral lower-casing.
func SortKey(label string) string {
	return defaultSorter.Key(label)
}

// Key returns the sort key of label.
func (s *Sorter) Key(label string) string {
	// cases.Caser is stateful; a copy per call keeps Key safe for concurrent
	// use.
	c := s.lower
	key := c.String(strings.TrimSpace(label))
	r, _ := utf8.DecodeRuneInString(key)
	switch {
	case r == '#':
		return Sentinel + Sentinel + key
	case unicode.IsDigit(r):
		return Sentinel + key
	default:
		return key
	}
}

// EntryKey returns the key for e, falling back to the lower-cased package id
// when labels has nothing for it.
func (s *Sorter) EntryKey(e model.AppEntry, labels LabelFunc) string {
	if labels != nil {
		if label, ok := labels(e); ok && strings.TrimSpace(label) != "" {
			return s.Key(label)
		}
	}
	c := s.lower
	return c.String(e.PackageID)
}

// Sort returns a copy of entries stably sorted by key. Ties keep input order.
func (s *Sorter) Sort(entries []model.AppEntry, labels LabelFunc) []model.AppEntry {
	type keyed struct {
		key   string
		entry model.AppEntry
	}
	items := make([]keyed, len(entries))
	for i, e := range entries {
		items[i] = keyed{key: s.EntryKey(e, labels), entry: e}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].key < items[j].key
	})
	out := make([]model.AppEntry, len(items))
	for i, it := range items {
		out[i] = it.entry
	}
	return out
}

// Sort sorts with the locale-neutral sorter.
func Sort(entries []model.AppEntry, labels LabelFunc) []model.AppEntry {
	return defaultSorter.Sort(entries, labels)
}

// MapLabels adapts a package-id → label map to a LabelFunc.
func MapLabels(m map[string]string) LabelFunc {
	return func(e model.AppEntry) (string, bool) {
		l, ok := m[e.PackageID]
		return l, ok
	}
}

// MetadataLabels adapts a metadata snapshot to a LabelFunc.
func MetadataLabels(m map[string]model.AppMetadata) LabelFunc {
	return func(e model.AppEntry) (string, bool) {
		md, ok := m[e.PackageID]
		if !ok || md.Label == "" {
			return "", false
		}
		return md.Label, true
	}
}

package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vanderheijden86/appdrawer/pkg/filter"
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// MinSubstringRunes is the shortest query that matches inside a label.
// Shorter queries only match exactly or at the start of a word.
const MinSubstringRunes = 2

type match int

const (
	noMatch match = iota
	exactMatch
	prefixMatch
	substringMatch
)

// classify compares a folded label with a folded query.
func classify(label, query string) match {
	switch {
	case label == query:
		return exactMatch
	case strings.HasPrefix(label, query) || wordPrefix(label, query):
		return prefixMatch
	case utf8.RuneCountInString(query) >= MinSubstringRunes && strings.Contains(label, query):
		return substringMatch
	default:
		return noMatch
	}
}

// wordPrefix reports whether any word after the first starts with query.
func wordPrefix(label, query string) bool {
	fields := strings.FieldsFunc(label, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_' || r == '.'
	})
	for _, f := range fields[min(1, len(fields)):] {
		if strings.HasPrefix(f, query) {
			return true
		}
	}
	return false
}

type labeledEntry struct {
	entry model.AppEntry
	label string
	key   string
}

// matchApps partitions apps into exact, prefix and substring buckets, each
// sorted by the display sort key, and returns them concatenated.
func matchApps(apps []model.AppEntry, query string, labels map[string]string, excl filter.Options, sorter *filter.Sorter) []model.Result {
	q := sorter.Key(query)
	if q == "" {
		return nil
	}
	var buckets [3][]labeledEntry
	seen := make(map[string]struct{}, len(apps))
	for _, e := range apps {
		if excl.Excluded(e) {
			continue
		}
		if _, dup := seen[e.Key()]; dup {
			continue
		}
		label := labels[e.PackageID]
		if label == "" {
			label = e.PackageID
		}
		// The sort key carries sentinel prefixes for digit and '#' labels.
		folded := strings.TrimLeft(sorter.Key(label), filter.Sentinel)
		m := classify(folded, strings.TrimLeft(q, filter.Sentinel))
		if m == noMatch {
			continue
		}
		seen[e.Key()] = struct{}{}
		buckets[m-exactMatch] = append(buckets[m-exactMatch], labeledEntry{entry: e, label: label, key: sorter.Key(label)})
	}

	var out []model.Result
	for _, b := range buckets {
		sort.SliceStable(b, func(i, j int) bool { return b[i].key < b[j].key })
		for _, le := range b {
			out = append(out, appResult(le.entry, le.label))
		}
	}
	return out
}

func appResult(e model.AppEntry, label string) model.Result {
	entry := e
	return model.Result{
		Kind:     model.ResultApp,
		Title:    label,
		Subtitle: e.PackageID,
		Entry:    &entry,
	}
}

package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// Truncate shortens s to maxWidth terminal cells, adding suffix if needed.
// Uses go-runewidth to handle wide characters correctly.
func Truncate(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}

	width := runewidth.StringWidth(s)
	if width <= maxWidth {
		return s
	}

	suffixWidth := runewidth.StringWidth(suffix)
	if suffixWidth > maxWidth {
		return runewidth.Truncate(suffix, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth-suffixWidth, "") + suffix
}

// PadRight pads s with spaces to width cells.
func PadRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// ColumnWidth returns the widest cell among values, capped at limit.
func ColumnWidth(values []string, limit int) int {
	width := 0
	for _, v := range values {
		if w := runewidth.StringWidth(v); w > width {
			width = w
		}
	}
	if limit > 0 && width > limit {
		return limit
	}
	return width
}

// EntryLabel returns the label shown for an entry: its resolved label, or
// the package id when none is known.
func EntryLabel(e model.AppEntry, labels map[string]string) string {
	if l := labels[e.PackageID]; l != "" {
		return l
	}
	return e.PackageID
}

// ResultDetail is the secondary text shown next to a result title.
func ResultDetail(r model.Result) string {
	switch {
	case r.Subtitle != "":
		return r.Subtitle
	case r.Kind == model.ResultApp && r.Entry != nil:
		return r.Entry.Key()
	case r.URI != "":
		return r.URI
	}
	return ""
}

package ui

import (
	"strings"

	"github.com/vanderheijden86/appdrawer/pkg/model"
)

const maxLabelWidth = 32

// RenderList renders the display list as aligned rows: label, then the
// launch key. Favorites get a star.
func RenderList(t Theme, entries []model.AppEntry, labels map[string]string, favorites map[string]struct{}) string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = EntryLabel(e, labels)
	}
	width := ColumnWidth(names, maxLabelWidth)

	var sb strings.Builder
	for i, e := range entries {
		mark := "  "
		if _, ok := favorites[e.PackageID]; ok {
			mark = t.Favorite.Render("★") + " "
		}
		sb.WriteString(mark)
		sb.WriteString(t.Base.Render(PadRight(Truncate(names[i], width, "…"), width)))
		sb.WriteString("  ")
		sb.WriteString(t.MutedText.Render(e.Key()))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// RenderResults renders search results as aligned rows with a kind marker.
func RenderResults(t Theme, results []model.Result) string {
	titles := make([]string, len(results))
	for i, r := range results {
		titles[i] = r.Title
	}
	width := ColumnWidth(titles, maxLabelWidth)

	var sb strings.Builder
	for i, r := range results {
		sb.WriteString(resultRow(t, r, width, false))
		if i < len(results)-1 {
			sb.WriteByte('\n')
		}
	}
	if len(results) > 0 {
		sb.WriteByte('\n')
	}
	return sb.String()
}

func resultRow(t Theme, r model.Result, width int, selected bool) string {
	icon, color := t.KindIcon(r.Kind)
	title := PadRight(Truncate(r.Title, width, "…"), width)
	row := t.Renderer.NewStyle().Foreground(color).Bold(true).Render(icon) + " " +
		t.Base.Render(title)
	if d := ResultDetail(r); d != "" {
		row += "  " + t.MutedText.Render(d)
	}
	if selected {
		return t.Selected.Render(row)
	}
	return "  " + row
}

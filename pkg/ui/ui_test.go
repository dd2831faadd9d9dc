package ui

import (
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/appdrawer/pkg/model"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		max    int
		suffix string
		want   string
	}{
		{"zero max", "hello", 0, "…", ""},
		{"fits", "hello", 10, "…", "hello"},
		{"ellipsis", "hello", 3, "…", "he…"},
		{"wide runes", "日本語", 4, "…", "日…"},
		{"suffix too wide", "hello", 2, "...", ".."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.input, tt.max, tt.suffix); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestPadRightCountsCells(t *testing.T) {
	if got := PadRight("日本", 6); got != "日本  " {
		t.Errorf("PadRight = %q", got)
	}
	if got := PadRight("toolong", 3); got != "toolong" {
		t.Errorf("PadRight = %q", got)
	}
}

func TestColumnWidth(t *testing.T) {
	if w := ColumnWidth([]string{"a", "Maps", "日本"}, 0); w != 4 {
		t.Errorf("width = %d, want 4", w)
	}
	if w := ColumnWidth([]string{strings.Repeat("x", 50)}, 10); w != 10 {
		t.Errorf("capped width = %d, want 10", w)
	}
}

func TestEntryLabelFallsBackToPackage(t *testing.T) {
	e := model.AppEntry{PackageID: "com.example.mail", ActivityName: "Main"}
	if got := EntryLabel(e, nil); got != "com.example.mail" {
		t.Errorf("EntryLabel = %q", got)
	}
	if got := EntryLabel(e, map[string]string{"com.example.mail": "Mail"}); got != "Mail" {
		t.Errorf("EntryLabel = %q", got)
	}
}

func TestNextModeCycles(t *testing.T) {
	if got := NextMode(model.SearchAll, 1); got != model.SearchApps {
		t.Errorf("next of all = %v", got)
	}
	if got := NextMode(model.SearchAll, -1); got != model.SearchYouTube {
		t.Errorf("previous of all = %v", got)
	}
	if got := NextMode(model.SearchYouTube, 1); got != model.SearchAll {
		t.Errorf("next of youtube = %v", got)
	}
}

func TestRenderListMarksFavorites(t *testing.T) {
	entries := []model.AppEntry{
		{PackageID: "com.example.mail", ActivityName: "Main"},
		{PackageID: "com.example.maps", ActivityName: "Main"},
	}
	out := RenderList(TestTheme(), entries, map[string]string{"com.example.mail": "Mail"},
		map[string]struct{}{"com.example.maps": {}})
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "Mail") || !strings.Contains(lines[0], "com.example.mail|Main") {
		t.Errorf("first row = %q", lines[0])
	}
	if !strings.Contains(lines[1], "★") {
		t.Errorf("favorite not marked: %q", lines[1])
	}
}

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	modes   []model.SearchMode
}

func (f *fakeSearcher) SetQuery(q string) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
}

func (f *fakeSearcher) SetMode(m model.SearchMode) {
	f.mu.Lock()
	f.modes = append(f.modes, m)
	f.mu.Unlock()
}

func typeRunes(m PickerModel, s string) PickerModel {
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(PickerModel)
	}
	return m
}

func TestPickerTypingSetsQuery(t *testing.T) {
	fs := &fakeSearcher{}
	m := NewPickerModel(fs, model.SearchAll, TestTheme())
	m = typeRunes(m, "ma")

	if len(fs.queries) != 2 || fs.queries[1] != "ma" {
		t.Errorf("queries = %v", fs.queries)
	}
}

func TestPickerInitEvaluatesEmptyQuery(t *testing.T) {
	fs := &fakeSearcher{}
	m := NewPickerModel(fs, model.SearchApps, TestTheme())
	cmd := m.Init()
	if cmd == nil {
		t.Fatal("expected init command")
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatalf("expected batch, got %T", cmd())
	}
	for _, c := range batch {
		if c != nil {
			c()
		}
	}
	if len(fs.modes) != 1 || fs.modes[0] != model.SearchApps {
		t.Errorf("modes = %v", fs.modes)
	}
}

func TestPickerDropsStaleResults(t *testing.T) {
	m := typeRunes(NewPickerModel(&fakeSearcher{}, model.SearchAll, TestTheme()), "ma")

	stale := ResultsMsg{Query: "m", Mode: model.SearchAll, Items: []model.Result{{Kind: model.ResultApp, Title: "Mail"}}}
	next, _ := m.Update(stale)
	m = next.(PickerModel)
	if len(m.Results()) != 0 {
		t.Fatalf("stale results applied: %v", m.Results())
	}

	current := ResultsMsg{Query: "ma", Mode: model.SearchAll, Items: []model.Result{
		{Kind: model.ResultApp, Title: "Mail"},
		{Kind: model.ResultApp, Title: "Maps"},
	}}
	next, _ = m.Update(current)
	m = next.(PickerModel)
	if len(m.Results()) != 2 {
		t.Fatalf("results = %v", m.Results())
	}
	if !strings.Contains(m.View(), "Maps") {
		t.Error("view should list results")
	}
}

func TestPickerTabCyclesMode(t *testing.T) {
	fs := &fakeSearcher{}
	m := NewPickerModel(fs, model.SearchAll, TestTheme())
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(PickerModel)
	if m.Mode() != model.SearchApps {
		t.Errorf("mode = %v", m.Mode())
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = next.(PickerModel)
	if m.Mode() != model.SearchAll {
		t.Errorf("mode = %v", m.Mode())
	}
	if len(fs.modes) != 2 {
		t.Errorf("SetMode calls = %v", fs.modes)
	}
}

func TestPickerEnterChoosesSelection(t *testing.T) {
	m := NewPickerModel(&fakeSearcher{}, model.SearchAll, TestTheme())
	next, _ := m.Update(ResultsMsg{Query: "", Mode: model.SearchAll, Items: []model.Result{
		{Kind: model.ResultApp, Title: "Mail"},
		{Kind: model.ResultApp, Title: "Maps"},
	}})
	m = next.(PickerModel)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(PickerModel)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(PickerModel)

	if cmd == nil {
		t.Fatal("enter should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected quit message")
	}
	r, ok := m.Chosen()
	if !ok || r.Title != "Maps" {
		t.Errorf("chosen = %+v, %v", r, ok)
	}
}

func TestPickerEscQuitsWithoutChoice(t *testing.T) {
	m := NewPickerModel(&fakeSearcher{}, model.SearchAll, TestTheme())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc should quit")
	}
	if _, ok := next.(PickerModel).Chosen(); ok {
		t.Error("esc must not choose")
	}
}

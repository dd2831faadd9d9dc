package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/appdrawer/pkg/model"
	"github.com/vanderheijden86/appdrawer/pkg/search"
)

// Searcher receives query and mode changes; results come back as
// ResultsMsg.
type Searcher interface {
	SetQuery(q string)
	SetMode(m model.SearchMode)
}

// ResultsMsg delivers one evaluation from the search engine.
type ResultsMsg search.Results

var pickerModes = []model.SearchMode{
	model.SearchAll,
	model.SearchApps,
	model.SearchContacts,
	model.SearchFiles,
	model.SearchMaps,
	model.SearchWeb,
	model.SearchPlayStore,
	model.SearchYouTube,
}

// NextMode cycles through the search modes; step is +1 or -1.
func NextMode(m model.SearchMode, step int) model.SearchMode {
	for i, pm := range pickerModes {
		if pm == m {
			n := len(pickerModes)
			return pickerModes[((i+step)%n+n)%n]
		}
	}
	return model.SearchAll
}

// PickerModel is the interactive search screen: an input line, the mode,
// and the latest results for the current query.
type PickerModel struct {
	searcher Searcher
	input    textinput.Model
	mode     model.SearchMode
	results  []model.Result
	selected int
	width    int
	height   int
	theme    Theme
	chosen   *model.Result
}

// NewPickerModel creates a picker that starts in mode.
func NewPickerModel(s Searcher, mode model.SearchMode, theme Theme) PickerModel {
	ti := textinput.New()
	ti.Placeholder = "search apps, settings, contacts, files..."
	ti.CharLimit = 120
	ti.Width = 40
	ti.Focus()

	return PickerModel{
		searcher: s,
		input:    ti,
		mode:     mode,
		theme:    theme,
	}
}

// Init evaluates the empty query so the display list shows up first.
func (m PickerModel) Init() tea.Cmd {
	s, mode := m.searcher, m.mode
	return tea.Batch(textinput.Blink, func() tea.Msg {
		s.SetMode(mode)
		return nil
	})
}

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case ResultsMsg:
		// Drop evaluations for a query or mode the user already left.
		if msg.Query != m.input.Value() || msg.Mode != m.mode {
			return m, nil
		}
		m.results = msg.Items
		if m.selected >= len(m.results) {
			m.selected = max(len(m.results)-1, 0)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if r, ok := m.Selected(); ok {
				m.chosen = &r
			}
			return m, tea.Quit
		case "tab", "shift+tab":
			step := 1
			if msg.String() == "shift+tab" {
				step = -1
			}
			m.mode = NextMode(m.mode, step)
			m.selected = 0
			m.searcher.SetMode(m.mode)
			return m, nil
		case "up", "ctrl+p":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down", "ctrl+n":
			if m.selected < len(m.results)-1 {
				m.selected++
			}
			return m, nil
		}
	}

	prev := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != prev {
		m.selected = 0
		m.searcher.SetQuery(v)
	}
	return m, cmd
}

// Selected returns the highlighted result.
func (m PickerModel) Selected() (model.Result, bool) {
	if m.selected < 0 || m.selected >= len(m.results) {
		return model.Result{}, false
	}
	return m.results[m.selected], true
}

// Chosen returns the result confirmed with enter, if any.
func (m PickerModel) Chosen() (model.Result, bool) {
	if m.chosen == nil {
		return model.Result{}, false
	}
	return *m.chosen, true
}

// Mode returns the active search mode.
func (m PickerModel) Mode() model.SearchMode { return m.mode }

// Results returns the results currently on screen.
func (m PickerModel) Results() []model.Result { return m.results }

func (m PickerModel) View() string {
	t := m.theme
	width, height := m.width, m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}
	maxVisible := max(height-6, 3)

	var lines []string
	lines = append(lines, t.Header.Render("drawer")+" "+t.SecondaryText.Render("mode: "+m.mode.String()))
	lines = append(lines, "")

	inputStyle := t.Renderer.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(t.Secondary).
		Padding(0, 1).
		Width(max(width-4, 20))
	lines = append(lines, inputStyle.Render(m.input.View()))

	if len(m.results) == 0 {
		lines = append(lines, t.MutedText.Italic(true).Render("  No results"))
	} else {
		start := 0
		if m.selected >= maxVisible {
			start = m.selected - maxVisible + 1
		}
		end := min(start+maxVisible, len(m.results))
		titles := make([]string, 0, end-start)
		for _, r := range m.results[start:end] {
			titles = append(titles, r.Title)
		}
		col := ColumnWidth(titles, maxLabelWidth)
		for i := start; i < end; i++ {
			lines = append(lines, resultRow(t, m.results[i], col, i == m.selected))
		}
	}

	lines = append(lines, "")
	lines = append(lines, t.MutedText.Italic(true).Render("↑/↓: navigate | tab: mode | enter: copy | esc: quit"))
	return strings.Join(lines, "\n")
}

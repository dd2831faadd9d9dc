package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/vanderheijden86/appdrawer/pkg/loader"
	"github.com/vanderheijden86/appdrawer/pkg/model"
	"github.com/vanderheijden86/appdrawer/pkg/ui"
)

type listEntryJSON struct {
	Label        string `json:"label"`
	PackageID    string `json:"package_id"`
	ActivityName string `json:"activity_name"`
}

type listJSON struct {
	Path       string          `json:"path"`
	Generation uint64          `json:"generation"`
	Notice     string          `json:"notice,omitempty"`
	Apps       []listEntryJSON `json:"apps"`
}

type searchJSON struct {
	Query   string         `json:"query"`
	Mode    string         `json:"mode"`
	Results []model.Result `json:"results"`
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeListJSON(w io.Writer, u loader.Update) error {
	out := listJSON{
		Path:       u.Path.String(),
		Generation: u.Generation,
		Notice:     u.Notice.String(),
		Apps:       make([]listEntryJSON, 0, len(u.Sorted)),
	}
	for _, e := range u.Sorted {
		out.Apps = append(out.Apps, listEntryJSON{
			Label:        ui.EntryLabel(e, u.Labels),
			PackageID:    e.PackageID,
			ActivityName: e.ActivityName,
		})
	}
	return writeJSON(w, out)
}

// writeList prints the display list. Plain output is one tab-separated
// "label<TAB>key" row per app; a terminal gets aligned, styled columns.
func writeList(w io.Writer, u loader.Update, tty bool) error {
	if u.Notice != loader.NoticeNone {
		fmt.Fprintf(w, "# %s\n", u.Notice)
	}
	if !tty {
		for _, e := range u.Sorted {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", ui.EntryLabel(e, u.Labels), e.Key()); err != nil {
				return err
			}
		}
		return nil
	}
	theme := ui.DefaultTheme(lipgloss.NewRenderer(w))
	_, err := io.WriteString(w, ui.RenderList(theme, u.Sorted, u.Labels, nil))
	return err
}

func writeSearchJSON(w io.Writer, query string, mode model.SearchMode, results []model.Result) error {
	if results == nil {
		results = []model.Result{}
	}
	return writeJSON(w, searchJSON{Query: query, Mode: mode.String(), Results: results})
}

func writeResults(w io.Writer, results []model.Result, tty bool) error {
	if !tty {
		for _, r := range results {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", r.Kind, r.Title, ui.ResultDetail(r)); err != nil {
				return err
			}
		}
		return nil
	}
	theme := ui.DefaultTheme(lipgloss.NewRenderer(w))
	_, err := io.WriteString(w, ui.RenderResults(theme, results))
	return err
}

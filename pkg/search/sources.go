package search

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/sahilm/fuzzy"

	"github.com/vanderheijden86/appdrawer/pkg/model"
)

const (
	MaxSettingResults       = 3
	MaxContactResults       = 5
	MaxStrictContactResults = 20
	MaxFileResults          = 10
	MaxFileDepth            = 2
)

// DefaultSettings is the vocabulary matched by the settings category.
var DefaultSettings = []string{
	"About",
	"App drawer",
	"Backup and restore",
	"Favorites",
	"Focus mode",
	"Gestures",
	"Hidden apps",
	"Home screen",
	"Icon pack",
	"Search engine",
	"Theme",
	"Wallpaper",
	"Widgets",
	"Workspaces",
}

// ContactSource supplies contacts at query time.
type ContactSource interface {
	Contacts(ctx context.Context) ([]model.Contact, error)
}

// FileIndex answers file-name queries from an index.
type FileIndex interface {
	SearchFiles(ctx context.Context, query string, limit int) ([]model.FileHit, error)
}

func matchSettings(settings []string, query string) []model.Result {
	matches := fuzzy.Find(query, settings)
	if len(matches) > MaxSettingResults {
		matches = matches[:MaxSettingResults]
	}
	out := make([]model.Result, 0, len(matches))
	for _, m := range matches {
		out = append(out, model.Result{
			Kind:  model.ResultSetting,
			Title: m.Str,
			Value: m.Str,
		})
	}
	return out
}

func matchContacts(contacts []model.Contact, query string, limit int) []model.Result {
	q := strings.ToLower(query)
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, query)
	numeric := digits != "" && len(digits) == len(strings.ReplaceAll(query, " ", ""))

	var out []model.Result
	for _, c := range contacts {
		if len(out) >= limit {
			break
		}
		hit := strings.Contains(strings.ToLower(c.Name), q)
		if !hit && numeric {
			hit = strings.Contains(stripNonDigits(c.Number), digits)
		}
		if hit {
			out = append(out, model.Result{
				Kind:     model.ResultContact,
				Title:    c.Name,
				Subtitle: c.Number,
				Value:    c.Number,
			})
		}
	}
	return out
}

func stripNonDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// walkFiles searches file names under roots, at most MaxFileDepth levels
// deep, and returns the first limit hits ordered by name. Every match is
// collected before sorting, since fastwalk delivers entries concurrently.
func walkFiles(ctx context.Context, roots []string, query string, limit int) ([]model.FileHit, error) {
	q := strings.ToLower(query)
	var (
		mu   sync.Mutex
		hits []model.FileHit
	)
	for _, root := range roots {
		conf := fastwalk.Config{Follow: false}
		err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if p != root && depthBelow(root, p) >= MaxFileDepth {
					return filepath.SkipDir
				}
				return nil
			}
			name := d.Name()
			if !strings.Contains(strings.ToLower(name), q) {
				return nil
			}
			mu.Lock()
			hits = append(hits, model.FileHit{Name: name, Path: p})
			mu.Unlock()
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := strings.ToLower(hits[i].Name), strings.ToLower(hits[j].Name)
		if a != b {
			return a < b
		}
		return hits[i].Path < hits[j].Path
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func depthBelow(root, p string) int {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

func fileResults(hits []model.FileHit) []model.Result {
	out := make([]model.Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, model.Result{
			Kind:     model.ResultFile,
			Title:    h.Name,
			Subtitle: h.Path,
			URI:      (&url.URL{Scheme: "file", Path: filepath.ToSlash(h.Path)}).String(),
		})
	}
	return out
}

// actionModes lists the shortcut actions in the order they are appended
// under SearchAll.
var actionModes = []model.SearchMode{
	model.SearchMaps,
	model.SearchWeb,
	model.SearchPlayStore,
	model.SearchYouTube,
}

// ActionURLs holds the query URL templates for shortcut actions. The query
// replaces "{q}" after escaping.
type ActionURLs struct {
	Maps      string
	Web       string
	PlayStore string
	YouTube   string
}

// DefaultActionURLs returns the built-in templates.
func DefaultActionURLs() ActionURLs {
	return ActionURLs{
		Maps:      "geo:0,0?q={q}",
		Web:       "https://www.google.com/search?q={q}",
		PlayStore: "market://search?q={q}",
		YouTube:   "https://www.youtube.com/results?search_query={q}",
	}
}

func (a ActionURLs) template(m model.SearchMode) (tmpl, title string) {
	switch m {
	case model.SearchMaps:
		return a.Maps, "Search Maps"
	case model.SearchWeb:
		return a.Web, "Search the web"
	case model.SearchPlayStore:
		return a.PlayStore, "Search Play Store"
	case model.SearchYouTube:
		return a.YouTube, "Search YouTube"
	}
	return "", ""
}

func (a ActionURLs) result(m model.SearchMode, query string) (model.Result, bool) {
	tmpl, title := a.template(m)
	if tmpl == "" {
		return model.Result{}, false
	}
	uri := strings.ReplaceAll(tmpl, "{q}", url.QueryEscape(query))
	if _, err := url.Parse(uri); err != nil {
		return model.Result{}, false
	}
	return model.Result{
		Kind:     model.ResultAction,
		Title:    title,
		Subtitle: query,
		Value:    m.String(),
		URI:      uri,
	}, true
}

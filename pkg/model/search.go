package model

import (
	"fmt"
	"strings"
)

// SearchMode restricts which result categories a query produces.
type SearchMode int

const (
	SearchAll SearchMode = iota
	SearchApps
	SearchContacts
	SearchFiles
	SearchMaps
	SearchWeb
	SearchPlayStore
	SearchYouTube
)

var searchModeNames = [...]string{
	SearchAll:       "all",
	SearchApps:      "apps",
	SearchContacts:  "contacts",
	SearchFiles:     "files",
	SearchMaps:      "maps",
	SearchWeb:       "web",
	SearchPlayStore: "playstore",
	SearchYouTube:   "youtube",
}

func (m SearchMode) String() string {
	if m < 0 || int(m) >= len(searchModeNames) {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return searchModeNames[m]
}

// IsStrict reports whether the mode suppresses every category but its own.
func (m SearchMode) IsStrict() bool {
	return m != SearchAll
}

// Includes reports whether results of the given category mode are produced
// under m.
func (m SearchMode) Includes(category SearchMode) bool {
	return m == SearchAll || m == category
}

// ParseSearchMode parses a mode name (case-insensitive). "play-store" and
// "play_store" are accepted for PLAYSTORE.
func ParseSearchMode(s string) (SearchMode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.NewReplacer("-", "", "_", "").Replace(name)
	if name == "" {
		return SearchAll, nil
	}
	for i, n := range searchModeNames {
		if n == name {
			return SearchMode(i), nil
		}
	}
	return SearchAll, fmt.Errorf("unknown search mode %q", s)
}

// ResultKind classifies a search result.
type ResultKind string

const (
	ResultApp     ResultKind = "app"
	ResultMath    ResultKind = "math"
	ResultSetting ResultKind = "setting"
	ResultContact ResultKind = "contact"
	ResultFile    ResultKind = "file"
	ResultAction  ResultKind = "action"
)

// Result is one ranked search result.
type Result struct {
	Kind     ResultKind `json:"kind"`
	Title    string     `json:"title"`
	Subtitle string     `json:"subtitle,omitempty"`
	Entry    *AppEntry  `json:"entry,omitempty"`
	Value    string     `json:"value,omitempty"`
	URI      string     `json:"uri,omitempty"`
}

// Contact is one auxiliary contact record searched by name.
type Contact struct {
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`
}

// FileHit is one file-name search match.
type FileHit struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Package datasource provides package registries that stand in for the
// platform's installed-application database, plus SQLite-backed persistence
// for the drawer caches and the file search index.
//
// Two registry formats are supported: a SQLite database with packages and
// activities tables, and a JSONL file with one package per line. Discover and
// SelectBest pick the freshest valid registry in a directory.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// Kind identifies the registry format.
type Kind string

const (
	KindSQLite Kind = "sqlite"
	KindJSONL  Kind = "jsonl"
)

// Priority values for registry kinds (higher = preferred on equal mod time).
const (
	PrioritySQLite = 100
	PriorityJSONL  = 50
)

// Registry file names looked up by Discover.
const (
	SQLiteFileName = "registry.db"
	JSONLFileName  = "registry.jsonl"
)

// ErrNoLabel is returned by ResolveLabel when the registry has no label for
// an entry.
var ErrNoLabel = errors.New("datasource: no label")

// ErrNoSource is returned by SelectBest when nothing valid was found.
var ErrNoSource = errors.New("datasource: no valid registry")

// Registry is the read side of a package registry.
type Registry interface {
	Launchable(ctx context.Context) ([]model.AppEntry, error)
	ResolveLabel(ctx context.Context, entry model.AppEntry) (string, error)
	PackageStamps(ctx context.Context) ([]model.PackageStamp, error)
	Close() error
}

// Package is one installed package as recorded by a registry.
type Package struct {
	PackageID  string   `json:"package_id"`
	Label      string   `json:"label,omitempty"`
	Activities []string `json:"activities"`
	UpdatedAt  int64    `json:"updated_at"` // epoch milliseconds
	// Disabled packages are installed but not launchable.
	Disabled bool `json:"disabled,omitempty"`
}

// Source describes a registry found on disk.
type Source struct {
	Kind            Kind      `json:"kind"`
	Path            string    `json:"path"`
	Priority        int       `json:"priority"`
	ModTime         time.Time `json:"mod_time"`
	Size            int64     `json:"size"`
	Valid           bool      `json:"valid"`
	ValidationError string    `json:"validation_error,omitempty"`
	PackageCount    int       `json:"package_count"`
}

func (s Source) String() string {
	status := "valid"
	if !s.Valid {
		status = "invalid: " + s.ValidationError
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, packages=%d, %s)",
		s.Path, s.Kind, s.Priority, s.ModTime.Format(time.RFC3339), s.PackageCount, status)
}

// DetectKind infers the registry kind from a file name.
func DetectKind(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite, nil
	case ".jsonl", ".ndjson":
		return KindJSONL, nil
	default:
		return "", fmt.Errorf("unknown registry format: %s", path)
	}
}

// SourceAt stats path and describes it as a registry source.
func SourceAt(kind Kind, path string) (Source, error) {
	if kind == "" {
		k, err := DetectKind(path)
		if err != nil {
			return Source{}, err
		}
		kind = k
	}
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("stat registry: %w", err)
	}
	s := Source{Kind: kind, Path: path, ModTime: info.ModTime(), Size: info.Size()}
	switch kind {
	case KindSQLite:
		s.Priority = PrioritySQLite
	case KindJSONL:
		s.Priority = PriorityJSONL
	default:
		return Source{}, fmt.Errorf("unknown registry kind: %s", kind)
	}
	return s, nil
}

// Discover lists the registries in dir, validated and sorted freshest first.
// Invalid sources are dropped unless includeInvalid is set.
func Discover(ctx context.Context, dir string, includeInvalid bool) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading registry dir: %w", err)
	}
	var sources []Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.Contains(name, ".backup") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		kind, err := DetectKind(name)
		if err != nil {
			continue
		}
		s, err := SourceAt(kind, filepath.Join(dir, name))
		if err != nil {
			continue
		}
		_ = Validate(ctx, &s)
		if s.Valid || includeInvalid {
			sources = append(sources, s)
		}
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
	return sources, nil
}

// Validate opens the source and counts its packages, recording the outcome
// on s.
func Validate(ctx context.Context, s *Source) error {
	reg, err := Open(*s)
	if err == nil {
		var stamps []model.PackageStamp
		stamps, err = reg.PackageStamps(ctx)
		_ = reg.Close()
		s.PackageCount = len(stamps)
	}
	s.Valid = err == nil
	s.ValidationError = ""
	if err != nil {
		s.ValidationError = err.Error()
	}
	return err
}

// SelectBest returns the first valid source of an already sorted list.
func SelectBest(sources []Source) (Source, error) {
	for _, s := range sources {
		if s.Valid {
			return s, nil
		}
	}
	return Source{}, ErrNoSource
}

// Open returns a registry reader for s.
func Open(s Source) (Registry, error) {
	switch s.Kind {
	case KindSQLite:
		return OpenSQLiteRegistry(s.Path)
	case KindJSONL:
		return NewJSONLRegistry(s.Path), nil
	default:
		return nil, fmt.Errorf("unknown registry kind: %s", s.Kind)
	}
}

// OpenPath opens the registry at path. A directory is searched with Discover.
func OpenPath(ctx context.Context, kind Kind, path string) (Registry, Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, Source{}, fmt.Errorf("stat registry: %w", err)
	}
	var src Source
	if info.IsDir() {
		sources, err := Discover(ctx, path, false)
		if err != nil {
			return nil, Source{}, err
		}
		if src, err = SelectBest(sources); err != nil {
			return nil, Source{}, err
		}
	} else if src, err = SourceAt(kind, path); err != nil {
		return nil, Source{}, err
	}
	reg, err := Open(src)
	if err != nil {
		return nil, Source{}, err
	}
	return reg, src, nil
}

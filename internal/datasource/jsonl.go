package datasource

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 1 << 20

// JSONLRegistry reads a registry file with one Package per line. The file is
// re-read on every call so external edits are picked up.
type JSONLRegistry struct {
	path string
}

// NewJSONLRegistry returns a registry backed by the file at path.
func NewJSONLRegistry(path string) *JSONLRegistry {
	return &JSONLRegistry{path: path}
}

// Path returns the registry file path.
func (r *JSONLRegistry) Path() string { return r.path }

// Close is a no-op.
func (r *JSONLRegistry) Close() error { return nil }

// Packages reads and parses the registry file.
func (r *JSONLRegistry) Packages(ctx context.Context) ([]Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}
	defer f.Close()
	return ParsePackages(f)
}

// ParsePackages decodes JSONL package records. Blank lines are skipped; a
// malformed line fails the whole read. When a package id repeats, the last
// record wins.
func ParsePackages(r io.Reader) ([]Package, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	index := map[string]int{}
	var pkgs []Package
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		var p Package
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		p.PackageID = strings.TrimSpace(p.PackageID)
		if p.PackageID == "" {
			return nil, fmt.Errorf("line %d: missing package_id", line)
		}
		if i, ok := index[p.PackageID]; ok {
			pkgs[i] = p
			continue
		}
		index[p.PackageID] = len(pkgs)
		pkgs = append(pkgs, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	return pkgs, nil
}

// WritePackages renders pkgs as JSONL.
func WritePackages(w io.Writer, pkgs []Package) error {
	enc := json.NewEncoder(w)
	for _, p := range pkgs {
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}

// Launchable returns one entry per activity of every enabled package,
// ordered by package id then activity.
func (r *JSONLRegistry) Launchable(ctx context.Context) ([]model.AppEntry, error) {
	pkgs, err := r.Packages(ctx)
	if err != nil {
		return nil, err
	}
	var entries []model.AppEntry
	for _, p := range pkgs {
		if p.Disabled {
			continue
		}
		for _, a := range p.Activities {
			entries = append(entries, model.AppEntry{PackageID: p.PackageID, ActivityName: a})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].PackageID != entries[j].PackageID {
			return entries[i].PackageID < entries[j].PackageID
		}
		return entries[i].ActivityName < entries[j].ActivityName
	})
	return entries, nil
}

// ResolveLabel returns the package label or ErrNoLabel.
func (r *JSONLRegistry) ResolveLabel(ctx context.Context, entry model.AppEntry) (string, error) {
	pkgs, err := r.Packages(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range pkgs {
		if p.PackageID == entry.PackageID && p.Label != "" {
			return p.Label, nil
		}
	}
	return "", fmt.Errorf("%s: %w", entry.PackageID, ErrNoLabel)
}

// PackageStamps returns the update timestamp of every package.
func (r *JSONLRegistry) PackageStamps(ctx context.Context) ([]model.PackageStamp, error) {
	pkgs, err := r.Packages(ctx)
	if err != nil {
		return nil, err
	}
	stamps := make([]model.PackageStamp, len(pkgs))
	for i, p := range pkgs {
		stamps[i] = model.PackageStamp{PackageID: p.PackageID, UpdatedAt: p.UpdatedAt}
	}
	return stamps, nil
}

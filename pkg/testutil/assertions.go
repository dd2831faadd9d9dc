package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/vanderheijden86/appdrawer/internal/datasource"
	"github.com/vanderheijden86/appdrawer/pkg/filter"
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// AssertEntryCount verifies the expected number of entries.
func AssertEntryCount(t *testing.T, entries []model.AppEntry, expected int) {
	t.Helper()
	if len(entries) != expected {
		t.Errorf("expected %d entries, got %d", expected, len(entries))
	}
}

// AssertNoDuplicateKeys verifies every entry key is unique.
func AssertNoDuplicateKeys(t *testing.T, entries []model.AppEntry) {
	t.Helper()
	seen := make(map[string]bool)
	for _, e := range entries {
		if seen[e.Key()] {
			t.Errorf("duplicate entry: %s", e.Key())
		}
		seen[e.Key()] = true
	}
}

// AssertSortedByLabel verifies entries are in non-decreasing sort-key order.
func AssertSortedByLabel(t *testing.T, entries []model.AppEntry, labels map[string]string) {
	t.Helper()
	sorter := filter.NewSorter(language.Und)
	lookup := filter.MapLabels(labels)
	for i := 1; i < len(entries); i++ {
		prev := sorter.EntryKey(entries[i-1], lookup)
		cur := sorter.EntryKey(entries[i], lookup)
		if prev > cur {
			t.Errorf("entries out of order at %d: %q > %q", i, prev, cur)
			return
		}
	}
}

// PackageIDs returns the package ids of entries in order.
func PackageIDs(entries []model.AppEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.PackageID
	}
	return out
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// WriteRegistryFile writes pkgs as a JSONL registry at path.
func WriteRegistryFile(t *testing.T, path string, pkgs []datasource.Package) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	var b strings.Builder
	if err := datasource.WritePackages(&b, pkgs); err != nil {
		t.Fatalf("failed to encode packages: %v", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("failed to write registry: %v", err)
	}
}

// GoldenFile compares output against a file under testdata. Set
// GENERATE_GOLDEN to rewrite it.
type GoldenFile struct {
	t      *testing.T
	path   string
	update bool
}

// NewGoldenFile creates a golden file helper.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{t: t, path: filepath.Join(dir, name), update: os.Getenv("GENERATE_GOLDEN") != ""}
}

// Assert compares actual content against the golden file.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()
	if g.update {
		if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(g.path, []byte(actual), 0o644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		return
	}
	expected, err := os.ReadFile(g.path)
	if err != nil {
		g.t.Fatalf("failed to read golden file %s: %v (run with GENERATE_GOLDEN=1 to create it)", g.path, err)
	}
	expLines := strings.Split(string(expected), "\n")
	actLines := strings.Split(actual, "\n")
	for i := 0; i < len(expLines) || i < len(actLines); i++ {
		var exp, act string
		if i < len(expLines) {
			exp = expLines[i]
		}
		if i < len(actLines) {
			act = actLines[i]
		}
		if exp != act {
			g.t.Errorf("golden file mismatch at line %d:\nexpected: %s\nactual:   %s", i+1, exp, act)
			return
		}
	}
}

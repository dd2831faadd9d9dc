// Package testutil provides deterministic app-registry fixtures and
// assertions for drawer tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/vanderheijden86/appdrawer/internal/datasource"
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// GeneratorConfig controls package generation.
type GeneratorConfig struct {
	Seed          int64     // Random seed (0 = use current time)
	PackagePrefix string    // Package id prefix (default: "com.test")
	BaseTime      time.Time // Base for update timestamps (default: fixed time)
	MaxActivities int       // Activities per package, 1..MaxActivities (default: 1)
	// UnlabeledRatio is the share of packages generated without a label.
	UnlabeledRatio float64
	// DigitRatio and HashRatio are the shares of labels starting with a
	// digit or '#'.
	DigitRatio float64
	HashRatio  float64
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:          42,
		PackagePrefix: "com.test",
		BaseTime:      time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		MaxActivities: 1,
	}
}

// Generator creates registry fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.BaseTime.IsZero() {
		cfg.BaseTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	}
	if cfg.PackagePrefix == "" {
		cfg.PackagePrefix = "com.test"
	}
	if cfg.MaxActivities <= 0 {
		cfg.MaxActivities = 1
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

var words = []string{
	"alpha", "banana", "camera", "delta", "echo", "files", "gallery", "hotel",
	"inbox", "jazz", "keep", "lens", "maps", "notes", "orbit", "photos",
	"quartz", "radio", "sheets", "tasks", "umbra", "video", "wallet", "xylo",
	"yoga", "zebra",
}

// Packages generates n packages with unique ids and increasing timestamps.
func (g *Generator) Packages(n int) []datasource.Package {
	pkgs := make([]datasource.Package, n)
	for i := range pkgs {
		id := fmt.Sprintf("%s.app%03d", g.cfg.PackagePrefix, i)
		activities := make([]string, 1+g.rng.Intn(g.cfg.MaxActivities))
		for j := range activities {
			activities[j] = fmt.Sprintf("%s.Activity%d", id, j)
		}
		pkgs[i] = datasource.Package{
			PackageID:  id,
			Label:      g.label(),
			Activities: activities,
			UpdatedAt:  g.cfg.BaseTime.Add(time.Duration(i) * time.Minute).UnixMilli(),
		}
	}
	return pkgs
}

func (g *Generator) label() string {
	r := g.rng.Float64()
	word := words[g.rng.Intn(len(words))]
	switch {
	case r < g.cfg.UnlabeledRatio:
		return ""
	case r < g.cfg.UnlabeledRatio+g.cfg.DigitRatio:
		return fmt.Sprintf("%d %s", g.rng.Intn(100), word)
	case r < g.cfg.UnlabeledRatio+g.cfg.DigitRatio+g.cfg.HashRatio:
		return "#" + word
	}
	if g.rng.Intn(2) == 0 {
		word = strings.ToUpper(word[:1]) + word[1:]
	}
	return word
}

// Entries flattens packages into launchable entries, skipping disabled
// packages.
func Entries(pkgs []datasource.Package) []model.AppEntry {
	var out []model.AppEntry
	for _, p := range pkgs {
		if p.Disabled {
			continue
		}
		for _, a := range p.Activities {
			out = append(out, model.AppEntry{PackageID: p.PackageID, ActivityName: a})
		}
	}
	return out
}

// Stamps returns the package stamps of pkgs.
func Stamps(pkgs []datasource.Package) []model.PackageStamp {
	out := make([]model.PackageStamp, len(pkgs))
	for i, p := range pkgs {
		out[i] = model.PackageStamp{PackageID: p.PackageID, UpdatedAt: p.UpdatedAt}
	}
	return out
}

// Labeled builds one package per label with a single Main activity. The
// package id is "pkg.<index>".
func Labeled(labels ...string) []datasource.Package {
	pkgs := make([]datasource.Package, len(labels))
	for i, l := range labels {
		id := fmt.Sprintf("pkg.%d", i)
		pkgs[i] = datasource.Package{
			PackageID:  id,
			Label:      l,
			Activities: []string{id + ".Main"},
			UpdatedAt:  int64(1000 + i),
		}
	}
	return pkgs
}

// QuickPackages generates n packages with the default config.
func QuickPackages(n int) []datasource.Package {
	return NewDefault().Packages(n)
}

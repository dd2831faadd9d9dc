//go:build ignore

// generate_testdata.go creates registry fixtures for benchmarking the loader
// and search engine.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	testdata/benchmark/small/registry.jsonl   (100 packages)
//	testdata/benchmark/medium/registry.jsonl  (1000 packages)
//	testdata/benchmark/large/registry.jsonl   (5000 packages)
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/appdrawer/internal/datasource"
	"github.com/vanderheijden86/appdrawer/pkg/testutil"
)

type datasetSpec struct {
	name string
	size int
}

var datasets = []datasetSpec{
	{"small", 100},
	{"medium", 1000},
	{"large", 5000},
}

func main() {
	outputDir := filepath.Join("testdata", "benchmark")

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d packages)...\n", ds.name, ds.size)

		cfg := testutil.DefaultConfig()
		cfg.Seed = int64(ds.size)
		cfg.MaxActivities = 3
		cfg.UnlabeledRatio = 0.05
		cfg.DigitRatio = 0.05
		cfg.HashRatio = 0.01
		pkgs := testutil.New(cfg).Packages(ds.size)

		dir := filepath.Join(outputDir, ds.name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", dir, err)
			os.Exit(1)
		}
		path := filepath.Join(dir, datasource.JSONLFileName)
		f, err := os.Create(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", path, err)
			os.Exit(1)
		}
		if err := datasource.WritePackages(f, pkgs); err != nil {
			f.Close()
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("  Written %s\n", path)
	}

	fmt.Println("\nDone! Registry fixtures created in", outputDir)
}

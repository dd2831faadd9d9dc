package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/vanderheijden86/appdrawer/internal/datasource"
	"github.com/vanderheijden86/appdrawer/pkg/config"
	"github.com/vanderheijden86/appdrawer/pkg/metrics"
	"github.com/vanderheijden86/appdrawer/pkg/model"
	"github.com/vanderheijden86/appdrawer/pkg/search"
	"github.com/vanderheijden86/appdrawer/pkg/version"
	"github.com/vanderheijden86/appdrawer/pkg/watcher"
)

const usage = `Usage: drawer [options] <command> [args]

Commands:
  list              Print the display list (default)
  search <query>    Run one search query
  watch             Print the display list whenever installed packages change
  sources [dir]     List registries found in dir
  index             Rebuild the file-name index from search.file_roots

Options:
`

type cliFlags struct {
	configPath   string
	registry     string
	cacheDir     string
	mode         string
	jsonOut      bool
	interactive  bool
	force        bool
	copyResult   bool
	selfPackage  string
	selfSettings string
	logLevel     string
	showMetrics  bool
	timeout      time.Duration
	cpuProfile   string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("drawer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var f cliFlags
	fs.StringVar(&f.configPath, "config", "", "Config file (default: XDG config dir)")
	fs.StringVar(&f.registry, "registry", "", "Registry file or directory (overrides config)")
	fs.StringVar(&f.cacheDir, "cache-dir", "", "Cache directory (overrides config)")
	fs.StringVar(&f.mode, "mode", "", "Search mode: all, apps, contacts, files, maps, web, playstore, youtube")
	fs.BoolVar(&f.jsonOut, "json", false, "Write JSON output")
	fs.BoolVar(&f.interactive, "i", false, "Interactive search")
	fs.BoolVar(&f.force, "force", false, "Ignore cached snapshots and query the registry")
	fs.BoolVar(&f.copyResult, "copy", false, "Copy the first search result to the clipboard")
	fs.StringVar(&f.selfPackage, "self", "", "Package id of the launcher itself")
	fs.StringVar(&f.selfSettings, "self-settings", "", "Settings activity of the launcher itself")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&f.showMetrics, "metrics", false, "Print timing and cache metrics on exit")
	fs.DurationVar(&f.timeout, "timeout", 30*time.Second, "Give up waiting for the app list after this long")
	fs.StringVar(&f.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	help := fs.Bool("help", false, "Show help")
	versionFlag := fs.Bool("version", false, "Show version")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *help {
		fs.SetOutput(stdout)
		fmt.Fprint(stdout, usage)
		fs.PrintDefaults()
		return 0
	}
	if *versionFlag {
		fmt.Fprintf(stdout, "drawer %s\n", version.String())
		return 0
	}

	if f.cpuProfile != "" {
		pf, err := os.Create(f.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return 1
		}
		defer pf.Close()
		if err := pprof.StartCPUProfile(pf); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := "list", []string(nil)
	if fs.NArg() > 0 {
		cmd, rest = fs.Arg(0), fs.Args()[1:]
	}
	if f.interactive {
		cmd = "interactive"
	}

	if f.showMetrics {
		defer printMetrics(stderr)
	}

	switch cmd {
	case "sources":
		err = runSources(ctx, cfg, rest, stdout, f.jsonOut)
	case "index":
		err = runIndex(ctx, cfg, stdout)
	case "list", "search", "watch", "interactive":
		err = withApp(ctx, cfg, f, func(a *app) error {
			switch cmd {
			case "list":
				return runList(ctx, a, f, stdout)
			case "search":
				return runSearch(ctx, a, f, strings.Join(rest, " "), stdout)
			case "watch":
				return runWatch(ctx, a, f, stdout)
			default:
				return runInteractive(ctx, a, f)
			}
		})
	default:
		fs.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(f cliFlags) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFrom(f.configPath)
		cfg.ApplyEnv()
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}
	if f.registry != "" {
		cfg.Registry.Path = f.registry
	}
	if f.cacheDir != "" {
		cfg.Cache.Dir = f.cacheDir
	}
	if f.mode != "" {
		cfg.Search.DefaultMode = f.mode
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg, cfg.Validate()
}

func withApp(ctx context.Context, cfg config.Config, f cliFlags, fn func(*app) error) error {
	a, err := openApp(ctx, cfg, f)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func runList(ctx context.Context, a *app, f cliFlags, w io.Writer) error {
	u, err := a.load(ctx, f.force, f.timeout)
	if err != nil {
		return err
	}
	if f.jsonOut {
		return writeListJSON(w, u)
	}
	return writeList(w, u, isTerminal(w))
}

func runSearch(ctx context.Context, a *app, f cliFlags, query string, w io.Writer) error {
	u, err := a.load(ctx, f.force, f.timeout)
	if err != nil {
		return err
	}
	engine := a.newEngine(u)
	defer engine.Close()

	mode := a.cfg.SearchMode()
	results := engine.Evaluate(ctx, query, mode)
	if f.copyResult && len(results) > 0 {
		if err := clipboard.WriteAll(copyValue(results[0])); err != nil {
			a.logger.Warn("clipboard unavailable", zap.Error(err))
		}
	}
	if f.jsonOut {
		return writeSearchJSON(w, query, mode, results)
	}
	return writeResults(w, results, isTerminal(w))
}

func runWatch(ctx context.Context, a *app, f cliFlags, w io.Writer) error {
	if a.source.Path == "" {
		return errors.New("watch needs a registry file")
	}
	a.loader.LoadApps(ctx, f.force)

	pw, err := watcher.NewPackageWatcher(a.source.Path, a.registry, a.loader,
		watcher.WithPackageLogger(a.logger),
		watcher.WithWatcherOptions(watcher.WithLogger(a.logger)),
		watcher.WithOnPackagesChanged(func(d datasource.StampDiff) {
			fmt.Fprintf(w, "# %s\n", d.Summary())
		}))
	if err != nil {
		return err
	}
	if err := pw.Start(ctx); err != nil {
		return err
	}
	defer pw.Stop()

	tty := isTerminal(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-a.loader.Updates():
			if !u.Final {
				continue
			}
			if err := writeList(w, u, tty); err != nil {
				return err
			}
			fmt.Fprintln(w)
		}
	}
}

func runSources(ctx context.Context, cfg config.Config, args []string, w io.Writer, jsonOut bool) error {
	dir := cfg.Registry.Path
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		return errors.New("no registry directory given")
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	sources, err := datasource.Discover(ctx, dir, true)
	if err != nil {
		return err
	}
	if jsonOut {
		return writeJSON(w, sources)
	}
	for _, s := range sources {
		fmt.Fprintln(w, s.String())
	}
	return nil
}

func runIndex(ctx context.Context, cfg config.Config, w io.Writer) error {
	if len(cfg.Search.FileRoots) == 0 {
		return errors.New("search.file_roots is empty")
	}
	dir := cfg.ResolvedCacheDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	idx, err := datasource.OpenSQLiteFileIndex(filepath.Join(dir, fileIndexName))
	if err != nil {
		return err
	}
	defer idx.Close()
	n, err := idx.Rebuild(ctx, cfg.Search.FileRoots, search.MaxFileDepth)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "indexed %d files\n", n)
	return nil
}

// copyValue is what --copy and the interactive picker put on the clipboard.
func copyValue(r model.Result) string {
	switch {
	case r.Kind == model.ResultApp && r.Entry != nil:
		return r.Entry.Key()
	case r.URI != "":
		return r.URI
	case r.Value != "":
		return r.Value
	default:
		return r.Title
	}
}

func printMetrics(w io.Writer) {
	for _, s := range metrics.AllTimingStats() {
		fmt.Fprintf(w, "%-14s n=%-4d avg=%.2fms max=%.2fms\n", s.Name, s.Count, s.AvgMs, s.MaxMs)
	}
	for _, m := range metrics.AllCacheMetrics() {
		s := m.Stats()
		fmt.Fprintf(w, "%-14s hits=%d misses=%d ratio=%.2f\n", s.Name, s.Hits, s.Misses, s.HitRatio)
	}
}

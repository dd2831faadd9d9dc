package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/vanderheijden86/appdrawer/internal/datasource"
	"github.com/vanderheijden86/appdrawer/pkg/cache"
	"github.com/vanderheijden86/appdrawer/pkg/config"
	"github.com/vanderheijden86/appdrawer/pkg/loader"
	"github.com/vanderheijden86/appdrawer/pkg/logging"
	"github.com/vanderheijden86/appdrawer/pkg/search"
)

const (
	fileIndexName  = "files.db"
	cacheStoreName = "cache.db"
)

var (
	errNoApps   = errors.New("no apps found")
	errNoResult = errors.New("timed out waiting for the app list")
)

// app wires the registry, caches, loader and search engine for one CLI run.
type app struct {
	cfg      config.Config
	flags    cliFlags
	logger   *zap.Logger
	registry datasource.Registry
	source   datasource.Source
	lists    *cache.ListCache
	meta     *cache.MetadataCache
	loader   *loader.Loader
	files    *datasource.SQLiteFileIndex
	closers  []func() error
}

func openApp(ctx context.Context, cfg config.Config, f cliFlags) (*app, error) {
	if cfg.Registry.Path == "" {
		return nil, errors.New("no registry configured (set registry.path, -registry or " + config.EnvRegistry + ")")
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Development = cfg.Log.Development
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &app{cfg: cfg, flags: f, logger: logger}
	a.closers = append(a.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	reg, src, err := datasource.OpenPath(ctx, datasource.Kind(cfg.Registry.Kind), cfg.Registry.Path)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry, a.source = reg, src
	a.closers = append(a.closers, reg.Close)
	logger.Debug("registry opened", zap.Stringer("source", src))

	store, err := a.openStore()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.lists = cache.NewListCache(store, cache.WithStaleness(cfg.Cache.Staleness))
	a.meta = cache.NewMetadataCache(store, cache.WithMetadataStaleness(cfg.Cache.Staleness))

	if path := filepath.Join(cfg.ResolvedCacheDir(), fileIndexName); fileExists(path) {
		if idx, err := datasource.OpenSQLiteFileIndex(path); err == nil {
			a.files = idx
			a.closers = append(a.closers, idx.Close)
		} else {
			logger.Warn("file index unavailable", zap.String("path", path), zap.Error(err))
		}
	}

	a.loader = loader.New(reg, a.lists, a.meta,
		loader.WithLogger(logger),
		loader.WithLocale(cfg.LocaleTag()),
		loader.WithOptions(cfg.FilterOptions(f.selfPackage, f.selfSettings)))
	return a, nil
}

func (a *app) openStore() (cache.Store, error) {
	dir := a.cfg.ResolvedCacheDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	switch a.cfg.Cache.Backend {
	case config.BackendSQLite:
		s, err := datasource.OpenSQLiteStore(filepath.Join(dir, cacheStoreName))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return cache.NewFileStore(dir)
	}
}

// Close stops the loader and releases everything openApp acquired, in
// reverse order.
func (a *app) Close() {
	if a.loader != nil {
		a.loader.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Debug("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

// load runs one LoadApps and waits for its final update.
func (a *app) load(ctx context.Context, force bool, timeout time.Duration) (loader.Update, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	a.loader.LoadApps(ctx, force)
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return loader.Update{}, errNoResult
			}
			return loader.Update{}, ctx.Err()
		case u := <-a.loader.Updates():
			if !u.Final {
				continue
			}
			switch u.Notice {
			case loader.NoticeLoadError:
				if u.Err != nil {
					return u, u.Err
				}
				return u, errors.New(u.Notice.String())
			case loader.NoticeNoApps:
				return u, errNoApps
			}
			return u, nil
		}
	}
}

// newEngine builds a search engine over a loaded update.
func (a *app) newEngine(u loader.Update, opts ...search.Option) *search.Engine {
	base := []search.Option{
		search.WithLogger(a.logger),
		search.WithLocale(a.cfg.LocaleTag()),
		search.WithDebounce(a.cfg.Search.Debounce),
		search.WithFileRoots(a.cfg.Search.FileRoots...),
	}
	if a.files != nil {
		base = append(base, search.WithFileIndex(a.files))
	}
	e := search.New(append(base, opts...)...)
	a.feed(e, u)
	return e
}

func (a *app) feed(e *search.Engine, u loader.Update) {
	e.SetApps(u.Raw)
	e.SetDisplayList(u.Sorted)
	e.SetLabels(u.Labels)
	e.SetExclusions(a.loader.Options())
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

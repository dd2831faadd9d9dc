// Package loader produces the drawer's display list from a package registry.
//
// Each LoadApps call runs off the caller's goroutine through one of three
// paths: a forced refresh, a cached snapshot, or a live registry query. The
// result is emitted twice: first sorted with whatever labels are cached, then
// again once missing labels have been resolved. Updates go to a size-1
// mailbox so a slow consumer only ever sees the newest list.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/vanderheijden86/appdrawer/pkg/cache"
	"github.com/vanderheijden86/appdrawer/pkg/filter"
	"github.com/vanderheijden86/appdrawer/pkg/logging"
	"github.com/vanderheijden86/appdrawer/pkg/metrics"
	"github.com/vanderheijden86/appdrawer/pkg/model"
	"github.com/vanderheijden86/appdrawer/pkg/worker"
)

// DefaultRetryDelay is the wait before the single forced retry after an
// empty or failed live query.
const DefaultRetryDelay = 500 * time.Millisecond

// Registry is the platform package registry.
type Registry interface {
	// Launchable lists installed, enabled, launchable activities.
	Launchable(ctx context.Context) ([]model.AppEntry, error)
	// ResolveLabel returns the display label for entry.
	ResolveLabel(ctx context.Context, entry model.AppEntry) (string, error)
	// PackageStamps returns the update timestamp of every installed package.
	PackageStamps(ctx context.Context) ([]model.PackageStamp, error)
}

// Path identifies how a load was served.
type Path int

const (
	PathForceRefresh Path = iota
	PathCacheValid
	PathLiveQuery
	PathOptions
)

func (p Path) String() string {
	switch p {
	case PathForceRefresh:
		return "force_refresh"
	case PathCacheValid:
		return "cache_valid"
	case PathLiveQuery:
		return "live_query"
	case PathOptions:
		return "options"
	default:
		return "unknown"
	}
}

// Notice is the user-visible outcome of a load that produced nothing.
type Notice int

const (
	NoticeNone Notice = iota
	NoticeNoApps
	NoticeLoadError
)

func (n Notice) String() string {
	switch n {
	case NoticeNoApps:
		return "no apps found"
	case NoticeLoadError:
		return "error loading apps"
	default:
		return ""
	}
}

// LoadError wraps a failure with the phase it happened in.
type LoadError struct {
	Phase   string // "live_query", "version_check", "stamps"
	Cause   error
	Time    time.Time
	Retries int
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s failed: %v (retries: %d)", e.Phase, e.Cause, e.Retries)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Update is one emission of the display list. Each update replaces the
// previous one in full.
type Update struct {
	// Sorted is the display list.
	Sorted []model.AppEntry
	// Filtered is the same set in registry order.
	Filtered []model.AppEntry
	// Raw is the unfiltered list the update was built from.
	Raw []model.AppEntry
	// Labels maps package id to the label used for sorting.
	Labels map[string]string
	// Final is false for the provisional pass sorted with cached labels.
	Final      bool
	Notice     Notice
	Err        *LoadError
	Path       Path
	Generation uint64
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = logging.OrNop(l) }
}

// WithDispatcher sets where OnUpdate callbacks run.
func WithDispatcher(d worker.Dispatcher) Option {
	return func(ld *Loader) {
		if d != nil {
			ld.dispatcher = d
		}
	}
}

// WithOnUpdate registers a callback for every update.
func WithOnUpdate(fn func(Update)) Option {
	return func(ld *Loader) { ld.onUpdate = fn }
}

// WithOptions sets the initial filter options.
func WithOptions(opts filter.Options) Option {
	return func(ld *Loader) { ld.opts = opts.Clone() }
}

// WithLocale sets the locale used for sort keys.
func WithLocale(tag language.Tag) Option {
	return func(ld *Loader) { ld.pipeline = filter.NewPipeline(tag) }
}

// WithRetryDelay overrides DefaultRetryDelay.
func WithRetryDelay(d time.Duration) Option {
	return func(ld *Loader) {
		if d >= 0 {
			ld.retryDelay = d
		}
	}
}

// WithPoolSize bounds background tasks and concurrent label lookups.
func WithPoolSize(n int) Option {
	return func(ld *Loader) {
		if n > 0 {
			ld.poolSize = n
		}
	}
}

// Loader turns registry contents into display-list updates.
type Loader struct {
	registry Registry
	lists    *cache.ListCache
	meta     *cache.MetadataCache
	pipeline *filter.Pipeline

	logger     *zap.Logger
	dispatcher worker.Dispatcher
	onUpdate   func(Update)
	retryDelay time.Duration
	poolSize   int

	ctx     context.Context
	cancel  context.CancelFunc
	pool    *worker.Pool
	queries singleflight.Group
	updates *worker.Mailbox[Update]
	gen     atomic.Uint64

	mu     sync.RWMutex
	opts   filter.Options
	raw    []model.AppEntry
	latest *Update
	// rawGen and finalGen are the generations of raw and of the newest
	// final update. Writes from older generations are dropped.
	rawGen   uint64
	finalGen uint64

	retries sync.WaitGroup
}

// New creates a loader. lists and meta are shared with whoever else needs
// them; the loader never replaces them.
func New(registry Registry, lists *cache.ListCache, meta *cache.MetadataCache, opts ...Option) *Loader {
	l := &Loader{
		registry:   registry,
		lists:      lists,
		meta:       meta,
		pipeline:   filter.NewPipeline(language.Und),
		logger:     logging.NewNop(),
		dispatcher: worker.Inline{},
		retryDelay: DefaultRetryDelay,
		poolSize:   worker.DefaultPoolSize,
		updates:    worker.NewMailbox[Update](),
		opts:       filter.Options{ShowAll: true},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.pool = worker.NewPool(l.ctx, l.poolSize)
	return l
}

// Updates delivers the newest update. Unread updates are overwritten.
func (l *Loader) Updates() <-chan Update {
	return l.updates.C()
}

// Latest returns the most recent update, if any.
func (l *Loader) Latest() (Update, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.latest == nil {
		return Update{}, false
	}
	return *l.latest, true
}

// Options returns a copy of the current filter options.
func (l *Loader) Options() filter.Options {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.opts.Clone()
}

// Raw returns a copy of the last raw list the loader saw.
func (l *Loader) Raw() []model.AppEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return model.CloneEntries(l.raw)
}

// LoadApps starts an asynchronous load and returns immediately. ctx scopes
// the request: once it is done, no further updates are delivered for it.
func (l *Loader) LoadApps(ctx context.Context, force bool) {
	l.submit(ctx, force, false)
}

// SetOptions replaces the filter options and re-filters the last raw list
// without querying the registry.
func (l *Loader) SetOptions(opts filter.Options) {
	l.mu.Lock()
	l.opts = opts.Clone()
	raw, gen := l.raw, l.rawGen
	l.mu.Unlock()
	if raw == nil {
		return
	}
	l.pool.Go(func(ctx context.Context) {
		l.emit(ctx, gen, PathOptions, raw, true, NoticeNone, nil)
	})
}

// Close stops background work and waits for in-flight tasks and cache
// writes.
func (l *Loader) Close() {
	l.cancel()
	l.pool.Close()
	l.retries.Wait()
	l.lists.Wait()
	l.meta.Wait()
}

func (l *Loader) alive(ctx context.Context) bool {
	return ctx.Err() == nil && l.ctx.Err() == nil
}

func (l *Loader) submit(ctx context.Context, force, retry bool) {
	if !l.alive(ctx) {
		return
	}
	gen := l.gen.Add(1)
	l.pool.Go(func(poolCtx context.Context) {
		runCtx, cancel := context.WithCancel(ctx)
		stop := context.AfterFunc(poolCtx, cancel)
		defer func() {
			stop()
			cancel()
		}()
		l.run(runCtx, gen, force, retry)
	})
}

func (l *Loader) run(ctx context.Context, gen uint64, force, retry bool) {
	defer metrics.Timer(metrics.ListLoad)()

	if force {
		l.lists.Clear()
		l.live(ctx, gen, PathForceRefresh, true, retry)
		return
	}
	if list, ok := l.cached(); ok {
		l.fromCache(ctx, gen, list)
		return
	}
	l.live(ctx, gen, PathLiveQuery, false, retry)
}

// cached returns the in-memory list, or the persisted snapshot when it is
// still valid.
func (l *Loader) cached() ([]model.AppEntry, bool) {
	if list, ok := l.lists.Memory(); ok && len(list) > 0 {
		return list, true
	}
	if !l.lists.IsValid() {
		return nil, false
	}
	list := l.lists.Load()
	if len(list) == 0 {
		return nil, false
	}
	l.lists.SetMemory(list)
	return list, true
}

func (l *Loader) fromCache(ctx context.Context, gen uint64, list []model.AppEntry) {
	if !l.setRaw(gen, list) {
		return
	}
	l.meta.EnsureLoaded()
	l.emit(ctx, gen, PathCacheValid, list, false, NoticeNone, nil)

	l.pool.Go(func(context.Context) {
		if !l.alive(ctx) {
			return
		}
		if !l.lists.IsVersionCurrent(ctx, l.registry) {
			l.logger.Debug("cached app list is out of date", zap.Uint64("generation", gen))
			l.lists.Invalidate()
			l.submit(ctx, false, false)
			return
		}
		l.refreshLabels(ctx, gen, PathCacheValid, list, nil)
	})
}

func (l *Loader) live(ctx context.Context, gen uint64, path Path, force, retry bool) {
	res, err := l.query(force)
	if !l.alive(ctx) {
		return
	}
	if err != nil || len(res.entries) == 0 {
		l.failed(ctx, gen, path, retry, err)
		return
	}
	entries := res.entries
	if !l.setRaw(gen, entries) {
		return
	}

	l.lists.SetMemory(entries)
	if res.stable {
		l.lists.Save(entries, model.ListVersion(res.stamps))
	} else {
		l.logger.Debug("skipping snapshot save, registry changed during query",
			zap.Uint64("generation", gen))
	}
	l.meta.EnsureLoaded()
	l.pruneMetadata(entries)
	l.logger.Debug("live query",
		zap.Int("entries", len(entries)),
		zap.Stringer("path", path),
		zap.Uint64("generation", gen))

	l.emit(ctx, gen, path, entries, false, NoticeNone, nil)
	l.refreshLabels(ctx, gen, path, entries, stampMap(res.stamps))
}

// listing is one registry enumeration with the package stamps read around
// it. stable is true when both stamp reads succeeded and agree, so the
// entries can be saved under that version.
type listing struct {
	entries []model.AppEntry
	stamps  []model.PackageStamp
	stable  bool
}

// query runs one registry enumeration at a time; concurrent callers share
// its result. A forced query never joins one already in flight, since that
// one may predate the change the caller is refreshing for.
func (l *Loader) query(force bool) (listing, error) {
	if force {
		l.queries.Forget("launchable")
	}
	v, err, shared := l.queries.Do("launchable", func() (any, error) {
		defer metrics.Timer(metrics.LiveQuery)()
		before, errBefore := l.registry.PackageStamps(l.ctx)
		entries, err := l.registry.Launchable(l.ctx)
		if err != nil {
			return listing{}, err
		}
		after, errAfter := l.registry.PackageStamps(l.ctx)
		res := listing{entries: entries}
		if errAfter == nil {
			res.stamps = after
		}
		res.stable = errBefore == nil && errAfter == nil &&
			model.ListVersion(before) == model.ListVersion(after)
		if errBefore != nil || errAfter != nil {
			l.logger.Debug("package stamps unavailable", zap.Error(errors.Join(errBefore, errAfter)))
		}
		return res, nil
	})
	if err != nil {
		return listing{}, err
	}
	res := v.(listing)
	if shared {
		res.entries = model.CloneEntries(res.entries)
	}
	return res, nil
}

func stampMap(stamps []model.PackageStamp) map[string]int64 {
	if stamps == nil {
		return nil
	}
	out := make(map[string]int64, len(stamps))
	for _, st := range stamps {
		out[st.PackageID] = st.UpdatedAt
	}
	return out
}

func (l *Loader) failed(ctx context.Context, gen uint64, path Path, retry bool, err error) {
	if !retry {
		l.logger.Info("app list empty, scheduling retry",
			zap.Error(err),
			zap.Duration("delay", l.retryDelay))
		l.retries.Add(1)
		go func() {
			defer l.retries.Done()
			t := time.NewTimer(l.retryDelay)
			defer t.Stop()
			select {
			case <-t.C:
				l.submit(ctx, true, true)
			case <-ctx.Done():
			case <-l.ctx.Done():
			}
		}()
		return
	}

	notice := NoticeNoApps
	var loadErr *LoadError
	if err != nil {
		notice = NoticeLoadError
		loadErr = &LoadError{Phase: "live_query", Cause: err, Time: time.Now(), Retries: 1}
		l.logger.Warn("app list load failed", zap.Error(loadErr))
	} else {
		l.logger.Warn("registry returned no launchable apps")
	}
	if !l.setRaw(gen, []model.AppEntry{}) {
		return
	}
	l.emit(ctx, gen, path, nil, true, notice, loadErr)
}

// pruneMetadata drops metadata for packages no longer installed.
func (l *Loader) pruneMetadata(entries []model.AppEntry) {
	present := model.EntryPackages(entries)
	removed := 0
	for pkg := range l.meta.Snapshot() {
		if _, ok := present[pkg]; !ok {
			l.meta.Remove(pkg)
			removed++
		}
	}
	if removed > 0 {
		l.logger.Debug("pruned metadata", zap.Int("removed", removed))
		l.meta.Persist()
	}
}

// refreshLabels resolves labels that are missing or stale, then emits the
// final update. When stamps is non-nil, a label resolved against a different
// package stamp is stale too, so updated or replaced packages are relabeled.
func (l *Loader) refreshLabels(ctx context.Context, gen uint64, path Path, entries []model.AppEntry, stamps map[string]int64) {
	known := l.meta.Snapshot()
	seen := make(map[string]struct{}, len(entries))
	var stale []model.AppEntry
	for _, e := range entries {
		if _, dup := seen[e.PackageID]; dup {
			continue
		}
		seen[e.PackageID] = struct{}{}
		if l.meta.IsStale(e.PackageID) {
			stale = append(stale, e)
			continue
		}
		if st, ok := stamps[e.PackageID]; ok && known[e.PackageID].Stamp != st {
			stale = append(stale, e)
		}
	}

	if len(stale) > 0 {
		stop := metrics.Timer(metrics.LabelResolve)
		var failures atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.poolSize)
		for _, e := range stale {
			g.Go(func() error {
				label, err := l.registry.ResolveLabel(gctx, e)
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if err != nil || label == "" {
					failures.Add(1)
					label = e.PackageID
				}
				l.meta.Put(e.PackageID, model.AppMetadata{
					ActivityName: e.ActivityName,
					Label:        label,
					Stamp:        stamps[e.PackageID],
				})
				return nil
			})
		}
		err := g.Wait()
		stop()
		if errors.Is(err, context.Canceled) || !l.alive(ctx) {
			return
		}
		if n := failures.Load(); n > 0 {
			l.logger.Debug("label resolution fell back to package id", zap.Int64("count", n))
		}
		l.meta.Persist()
	}
	l.emit(ctx, gen, path, entries, true, NoticeNone, nil)
}

// setRaw records entries as the raw list of generation gen. It reports false
// when a newer generation already owns the raw list.
func (l *Loader) setRaw(gen uint64, entries []model.AppEntry) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen < l.rawGen || gen < l.finalGen {
		return false
	}
	l.rawGen = gen
	l.raw = model.CloneEntries(entries)
	return true
}

func (l *Loader) emit(ctx context.Context, gen uint64, path Path, raw []model.AppEntry, final bool, notice Notice, loadErr *LoadError) {
	if !l.alive(ctx) {
		return
	}
	opts := l.Options()
	labels := l.meta.Labels()
	sorted, filtered := l.pipeline.Run(raw, opts, filter.MapLabels(labels))
	u := Update{
		Sorted:     sorted,
		Filtered:   filtered,
		Raw:        model.CloneEntries(raw),
		Labels:     labels,
		Final:      final,
		Notice:     notice,
		Err:        loadErr,
		Path:       path,
		Generation: gen,
	}

	if !l.alive(ctx) {
		return
	}
	l.mu.Lock()
	if gen < l.finalGen || (!final && l.latest != nil && gen < l.latest.Generation) {
		l.mu.Unlock()
		l.logger.Debug("dropping superseded update",
			zap.Uint64("generation", gen),
			zap.Bool("final", final))
		return
	}
	if final {
		l.finalGen = gen
	}
	l.latest = &u
	l.updates.Push(u)
	l.mu.Unlock()
	if l.onUpdate != nil {
		l.dispatcher.Post(func() {
			if l.alive(ctx) {
				l.onUpdate(u)
			}
		})
	}
}

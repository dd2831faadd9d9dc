// Package search evaluates launcher search queries over the app list and
// auxiliary sources.
//
// Queries typed through SetQuery are debounced, then evaluated one at a time
// on a serial worker; results land in a size-1 mailbox so a consumer that
// falls behind only sees the newest query's results. Evaluate is the
// synchronous core and can be called directly.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/vanderheijden86/appdrawer/pkg/filter"
	"github.com/vanderheijden86/appdrawer/pkg/logging"
	"github.com/vanderheijden86/appdrawer/pkg/metrics"
	"github.com/vanderheijden86/appdrawer/pkg/model"
	"github.com/vanderheijden86/appdrawer/pkg/worker"
)

// DefaultDebounce is the quiet period between the last keystroke and
// evaluation.
const DefaultDebounce = 10 * time.Millisecond

// Results is one evaluated query.
type Results struct {
	Query      string
	Mode       model.SearchMode
	Items      []model.Result
	Generation uint64
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(l) }
}

// WithDispatcher sets where OnResults callbacks run.
func WithDispatcher(d worker.Dispatcher) Option {
	return func(e *Engine) {
		if d != nil {
			e.dispatcher = d
		}
	}
}

func WithOnResults(fn func(Results)) Option {
	return func(e *Engine) { e.onResults = fn }
}

func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

func WithLocale(tag language.Tag) Option {
	return func(e *Engine) { e.sorter = filter.NewSorter(tag) }
}

// WithSettings replaces DefaultSettings.
func WithSettings(names []string) Option {
	return func(e *Engine) { e.settings = append([]string(nil), names...) }
}

func WithContactSource(src ContactSource) Option {
	return func(e *Engine) { e.contactSource = src }
}

func WithFileIndex(idx FileIndex) Option {
	return func(e *Engine) { e.fileIndex = idx }
}

// WithFileRoots sets the directories walked when no file index answers.
func WithFileRoots(roots ...string) Option {
	return func(e *Engine) { e.fileRoots = append([]string(nil), roots...) }
}

func WithActionURLs(a ActionURLs) Option {
	return func(e *Engine) { e.actions = a }
}

// WithCache sets the result cache capacity and TTL.
func WithCache(capacity int, ttl time.Duration) Option {
	return func(e *Engine) { e.cache = newResultCache(capacity, ttl) }
}

// snapshot is the engine state a query is evaluated against.
type snapshot struct {
	gen      uint64
	apps     []model.AppEntry
	display  []model.AppEntry
	contacts []model.Contact
	labels   map[string]string
	excl     filter.Options
}

// Engine is a debounced, mode-aware search over the app list.
type Engine struct {
	logger        *zap.Logger
	dispatcher    worker.Dispatcher
	onResults     func(Results)
	debounce      time.Duration
	sorter        *filter.Sorter
	settings      []string
	contactSource ContactSource
	fileIndex     FileIndex
	fileRoots     []string
	actions       ActionURLs
	cache         *resultCache

	ctx       context.Context
	cancel    context.CancelFunc
	debouncer *worker.Debouncer
	serial    *worker.Serial
	results   *worker.Mailbox[Results]

	mu     sync.Mutex
	query  string
	mode   model.SearchMode
	snap   snapshot
	latest *Results
	closed bool
}

// New creates an engine. Close releases its worker.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:     logging.NewNop(),
		dispatcher: worker.Inline{},
		debounce:   DefaultDebounce,
		sorter:     filter.NewSorter(language.Und),
		settings:   DefaultSettings,
		actions:    DefaultActionURLs(),
		results:    worker.NewMailbox[Results](),
		snap:       snapshot{labels: map[string]string{}, excl: filter.Options{ShowAll: true}},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = newResultCache(DefaultCacheSize, DefaultCacheTTL)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.debouncer = worker.NewDebouncer(e.debounce)
	e.serial = worker.NewSerial()
	return e
}

// SetApps replaces the full app list searched by name.
func (e *Engine) SetApps(apps []model.AppEntry) {
	e.update(func(s *snapshot) { s.apps = model.CloneEntries(apps) })
}

// SetDisplayList replaces the list returned for an empty query.
func (e *Engine) SetDisplayList(display []model.AppEntry) {
	e.update(func(s *snapshot) { s.display = model.CloneEntries(display) })
}

func (e *Engine) SetContacts(contacts []model.Contact) {
	e.update(func(s *snapshot) { s.contacts = append([]model.Contact(nil), contacts...) })
}

// SetLabels replaces the package id to label map.
func (e *Engine) SetLabels(labels map[string]string) {
	cp := make(map[string]string, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	e.update(func(s *snapshot) { s.labels = cp })
}

// SetExclusions sets the filter options whose self, hidden and focus
// exclusions also apply to app results.
func (e *Engine) SetExclusions(opts filter.Options) {
	e.update(func(s *snapshot) { s.excl = opts.Clone() })
}

func (e *Engine) update(fn func(*snapshot)) {
	e.mu.Lock()
	fn(&e.snap)
	e.snap.gen++
	e.mu.Unlock()
}

// SetQuery records the query and schedules evaluation after the debounce
// period.
func (e *Engine) SetQuery(q string) {
	e.mu.Lock()
	e.query = q
	closed := e.closed
	e.mu.Unlock()
	if !closed {
		e.debouncer.Trigger(e.dispatch)
	}
}

// SetMode records the mode and schedules evaluation like SetQuery.
func (e *Engine) SetMode(m model.SearchMode) {
	e.mu.Lock()
	e.mode = m
	closed := e.closed
	e.mu.Unlock()
	if !closed {
		e.debouncer.Trigger(e.dispatch)
	}
}

// Query returns the current query and mode.
func (e *Engine) Query() (string, model.SearchMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query, e.mode
}

// Results delivers the newest evaluated query.
func (e *Engine) Results() <-chan Results {
	return e.results.C()
}

// Latest returns the most recent results, if any.
func (e *Engine) Latest() (Results, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest == nil {
		return Results{}, false
	}
	return *e.latest, true
}

// Close drops pending queries and stops the worker.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.debouncer.Cancel()
	e.cancel()
	e.serial.Close()
	e.cache.flush()
}

func (e *Engine) dispatch() {
	e.mu.Lock()
	q, m := e.query, e.mode
	e.mu.Unlock()
	e.serial.Submit(func() {
		if e.ctx.Err() != nil {
			return
		}
		items := e.Evaluate(e.ctx, q, m)
		if e.ctx.Err() != nil {
			return
		}
		e.mu.Lock()
		r := Results{Query: q, Mode: m, Items: items, Generation: e.snap.gen}
		e.latest = &r
		e.mu.Unlock()
		e.results.Push(r)
		if e.onResults != nil {
			e.dispatcher.Post(func() {
				if e.ctx.Err() == nil {
					e.onResults(r)
				}
			})
		}
	})
}

// Evaluate runs query under mode against the current snapshot. A failing
// source contributes nothing; Evaluate itself never fails.
func (e *Engine) Evaluate(ctx context.Context, query string, mode model.SearchMode) []model.Result {
	defer metrics.Timer(metrics.SearchQuery)()

	e.mu.Lock()
	snap := e.snap
	e.mu.Unlock()

	q := strings.TrimSpace(query)
	if q == "" {
		out := make([]model.Result, 0, len(snap.display))
		for _, entry := range snap.display {
			label := snap.labels[entry.PackageID]
			if label == "" {
				label = entry.PackageID
			}
			out = append(out, appResult(entry, label))
		}
		return out
	}

	key := cacheKey(snap.gen, mode, q)
	if cached, ok := e.cache.get(key); ok {
		return cached
	}
	out, complete := e.evaluate(ctx, snap, q, mode)
	if ctx.Err() != nil || !complete {
		return out
	}
	e.cache.put(key, out)
	return out
}

// evaluate reports complete=false when any source failed, so the partial
// result is not cached and the next query asks that source again.
func (e *Engine) evaluate(ctx context.Context, snap snapshot, q string, mode model.SearchMode) (out []model.Result, complete bool) {
	if v, err := EvalExpression(q); err == nil {
		return []model.Result{{
			Kind:     model.ResultMath,
			Title:    FormatNumber(v),
			Subtitle: q,
			Value:    FormatNumber(v),
		}}, true
	}

	var failed bool

	if mode.Includes(model.SearchApps) {
		out = append(out, e.guard("apps", &failed, func() []model.Result {
			return matchApps(snap.apps, q, snap.labels, snap.excl, e.sorter)
		})...)
		if mode == model.SearchApps {
			return out, !failed
		}
		out = append(out, e.guard("settings", &failed, func() []model.Result {
			return matchSettings(e.settings, q)
		})...)
	}
	if ctx.Err() != nil {
		return out, !failed
	}

	if mode.Includes(model.SearchContacts) {
		limit := MaxContactResults
		if mode == model.SearchContacts {
			limit = MaxStrictContactResults
		}
		out = append(out, e.guard("contacts", &failed, func() []model.Result {
			contacts, ok := e.contacts(ctx, snap)
			failed = failed || !ok
			return matchContacts(contacts, q, limit)
		})...)
		if mode == model.SearchContacts {
			return out, !failed
		}
	}
	if ctx.Err() != nil {
		return out, !failed
	}

	if mode.Includes(model.SearchFiles) {
		out = append(out, e.guard("files", &failed, func() []model.Result {
			hits, ok := e.files(ctx, q)
			failed = failed || !ok
			return fileResults(hits)
		})...)
		if mode == model.SearchFiles {
			return out, !failed
		}
	}

	for _, m := range actionModes {
		if mode != model.SearchAll && mode != m {
			continue
		}
		if r, ok := e.actions.result(m, q); ok {
			out = append(out, r)
		}
	}
	return out, !failed
}

func (e *Engine) contacts(ctx context.Context, snap snapshot) ([]model.Contact, bool) {
	if e.contactSource == nil {
		return snap.contacts, true
	}
	contacts, err := e.contactSource.Contacts(ctx)
	if err != nil {
		e.logger.Debug("contact source failed", zap.Error(err))
		return snap.contacts, false
	}
	return contacts, true
}

// files asks the index first and walks the roots when the index fails or
// has no hit. ok is false when either lookup errored.
func (e *Engine) files(ctx context.Context, q string) (hits []model.FileHit, ok bool) {
	ok = true
	if e.fileIndex != nil {
		hits, err := e.fileIndex.SearchFiles(ctx, q, MaxFileResults)
		if err == nil && len(hits) > 0 {
			return hits, true
		}
		if err != nil {
			ok = false
			e.logger.Debug("file index failed, walking roots", zap.Error(err))
		}
	}
	if len(e.fileRoots) == 0 {
		return nil, ok
	}
	hits, err := walkFiles(ctx, e.fileRoots, q, MaxFileResults)
	if err != nil {
		e.logger.Debug("file walk failed", zap.Error(err))
		return nil, false
	}
	return hits, ok
}

// guard runs one result source, turning a panic into an empty contribution
// and setting *failed.
func (e *Engine) guard(name string, failed *bool, fn func() []model.Result) (out []model.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("search source panicked",
				zap.String("source", name),
				zap.String("panic", fmt.Sprint(r)))
			*failed = true
			out = nil
		}
	}()
	return fn()
}

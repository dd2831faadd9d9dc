// Package watcher observes the package registry and turns installs, removals
// and updates into forced app-list refreshes.
//
// Watcher reports changes to one registry file (and its SQLite sidecars)
// using fsnotify, falling back to stat polling when notifications are not
// available. PackageWatcher sits on top and decides whether the change
// actually altered the installed package set.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/vanderheijden86/appdrawer/pkg/logging"
	"github.com/vanderheijden86/appdrawer/pkg/worker"
)

const (
	DefaultPollInterval     = 2 * time.Second
	DefaultDebounceDuration = 200 * time.Millisecond
)

// EnvForcePoll forces polling mode when set to a true value.
const EnvForcePoll = "DRAWER_FORCE_POLL"

var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// sidecars are the files SQLite writes next to a database.
var sidecars = []string{"-wal", "-journal", "-shm"}

// Option configures a Watcher.
type Option func(*Watcher)

func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) { w.debounceDuration = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithOnChange sets the callback invoked after a debounced change.
func WithOnChange(fn func()) Option {
	return func(w *Watcher) { w.onChange = fn }
}

func WithOnError(fn func(error)) Option {
	return func(w *Watcher) { w.onError = fn }
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = logging.OrNop(l) }
}

// fileState is the polled identity of the registry and its sidecars.
type fileState struct {
	mtime time.Time
	size  int64
}

// Watcher monitors a registry file for changes.
type Watcher struct {
	path             string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool
	logger           *zap.Logger

	fsWatcher   *fsnotify.Watcher
	debouncer   *worker.Debouncer
	useFallback bool
	last        map[string]fileState

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for path. The file does not need to exist.
func NewWatcher(path string, opts ...Option) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:             absPath,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
		logger:           logging.NewNop(),
		changeCh:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = worker.NewDebouncer(w.debounceDuration)
	return w, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}
	if _, err := os.Stat(w.path); err != nil && os.IsPermission(err) {
		return ErrPermission
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.last = w.statAll()
	w.useFallback = w.forcePoll || envBool(EnvForcePoll)

	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			// Watching the directory catches atomic renames over the file.
			err = fsw.Add(filepath.Dir(w.path))
			if err != nil {
				fsw.Close()
			}
		}
		if err != nil {
			w.logger.Info("fsnotify unavailable, polling", zap.String("path", w.path), zap.Error(err))
			w.useFallback = true
		} else {
			w.fsWatcher = fsw
			w.wg.Add(1)
			go w.watchFsnotify(fsw)
		}
	}
	if w.useFallback {
		w.wg.Add(1)
		go w.watchPolling()
	}

	w.started = true
	return nil
}

// Stop stops watching and waits for the watch goroutine to exit. The
// Changed channel stays open.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.cancel()
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.started = false
	w.mu.Unlock()
	w.wg.Wait()
}

// IsPolling reports whether the watcher fell back to polling.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed receives after each debounced change.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

func (w *Watcher) Path() string {
	return w.path
}

func (w *Watcher) PollInterval() time.Duration {
	return w.pollInterval
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// relevant reports whether name is the watched file or one of its sidecars.
func (w *Watcher) relevant(name string) bool {
	base := filepath.Base(w.path)
	got := filepath.Base(name)
	if got == base {
		return true
	}
	for _, s := range sidecars {
		if got == base+s {
			return true
		}
	}
	return false
}

func (w *Watcher) watchFsnotify(fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	base := filepath.Base(w.path)
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}
			switch {
			case event.Op&fsnotify.Remove != 0 && filepath.Base(event.Name) == base:
				w.onError(ErrFileRemoved)
			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0:
				w.debouncer.Trigger(w.notifyChange)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify error", zap.Error(err))
			w.onError(err)
		}
	}
}

func (w *Watcher) statAll() map[string]fileState {
	states := make(map[string]fileState, len(sidecars)+1)
	for _, p := range append([]string{w.path}, sidecarPaths(w.path)...) {
		if info, err := os.Stat(p); err == nil {
			states[p] = fileState{mtime: info.ModTime(), size: info.Size()}
		}
	}
	return states
}

func sidecarPaths(path string) []string {
	out := make([]string, len(sidecars))
	for i, s := range sidecars {
		out[i] = path + s
	}
	return out
}

func (w *Watcher) watchPolling() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := os.Stat(w.path); err != nil {
			switch {
			case os.IsNotExist(err):
				w.mu.RLock()
				_, hadFile := w.last[w.path]
				w.mu.RUnlock()
				if hadFile {
					w.onError(ErrFileRemoved)
				}
			case os.IsPermission(err):
				w.onError(ErrPermission)
			default:
				w.onError(err)
			}
		}

		current := w.statAll()
		w.mu.Lock()
		changed := !sameStates(w.last, current)
		w.last = current
		w.mu.Unlock()
		if changed {
			w.debouncer.Trigger(w.notifyChange)
		}
	}
}

func sameStates(a, b map[string]fileState) bool {
	if len(a) != len(b) {
		return false
	}
	for p, s := range a {
		o, ok := b[p]
		if !ok || !o.mtime.Equal(s.mtime) || o.size != s.size {
			return false
		}
	}
	return true
}

func (w *Watcher) notifyChange() {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if !started {
		return
	}

	w.onChange()
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}

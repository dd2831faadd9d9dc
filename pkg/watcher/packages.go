package watcher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vanderheijden86/appdrawer/internal/datasource"
	"github.com/vanderheijden86/appdrawer/pkg/logging"
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// Refresher is what PackageWatcher drives; *loader.Loader satisfies it.
type Refresher interface {
	LoadApps(ctx context.Context, force bool)
}

// StampSource reports the installed packages and their update times.
type StampSource interface {
	PackageStamps(ctx context.Context) ([]model.PackageStamp, error)
}

// PackageOption configures a PackageWatcher.
type PackageOption func(*PackageWatcher)

// WithOnPackagesChanged is called with each diff that triggered a refresh.
func WithOnPackagesChanged(fn func(datasource.StampDiff)) PackageOption {
	return func(p *PackageWatcher) { p.onDiff = fn }
}

func WithPackageLogger(l *zap.Logger) PackageOption {
	return func(p *PackageWatcher) { p.logger = logging.OrNop(l) }
}

// WithWatcherOptions passes options to the underlying file Watcher.
func WithWatcherOptions(opts ...Option) PackageOption {
	return func(p *PackageWatcher) { p.fileOpts = append(p.fileOpts, opts...) }
}

// PackageWatcher forces an app-list refresh when the installed package set
// changes. File events that leave every package stamp untouched are ignored.
type PackageWatcher struct {
	source    StampSource
	refresher Refresher
	onDiff    func(datasource.StampDiff)
	logger    *zap.Logger
	fileOpts  []Option

	file *Watcher

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	stamps []model.PackageStamp
}

// NewPackageWatcher watches the registry at path.
func NewPackageWatcher(path string, source StampSource, refresher Refresher, opts ...PackageOption) (*PackageWatcher, error) {
	p := &PackageWatcher{
		source:    source,
		refresher: refresher,
		onDiff:    func(datasource.StampDiff) {},
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	fileOpts := append([]Option{WithLogger(p.logger)}, p.fileOpts...)
	fileOpts = append(fileOpts, WithOnChange(p.check), WithOnError(p.fileError))
	w, err := NewWatcher(path, fileOpts...)
	if err != nil {
		return nil, err
	}
	p.file = w
	return p, nil
}

// Start records the current package stamps and begins watching. ctx bounds
// every refresh the watcher triggers.
func (p *PackageWatcher) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.ctx != nil {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	stamps, err := p.source.PackageStamps(p.ctx)
	if err != nil {
		p.logger.Debug("initial package stamps unavailable", zap.Error(err))
	}
	p.stamps = stamps
	p.mu.Unlock()

	if err := p.file.Start(); err != nil {
		p.mu.Lock()
		p.cancel()
		p.ctx, p.cancel = nil, nil
		p.mu.Unlock()
		return err
	}
	return nil
}

// Stop stops watching. Refreshes already handed to the Refresher are not
// cancelled beyond the context passed to Start.
func (p *PackageWatcher) Stop() {
	p.file.Stop()
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.ctx, p.cancel = nil, nil
	p.mu.Unlock()
}

// Watcher returns the underlying file watcher.
func (p *PackageWatcher) Watcher() *Watcher {
	return p.file
}

// Check compares current stamps with the last seen ones and refreshes on
// any difference. It runs automatically on file changes.
func (p *PackageWatcher) Check() {
	p.check()
}

func (p *PackageWatcher) check() {
	p.mu.Lock()
	ctx := p.ctx
	prev := p.stamps
	p.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	current, err := p.source.PackageStamps(ctx)
	if err != nil {
		// Without stamps there is nothing to compare; refresh to be safe.
		p.logger.Warn("reading package stamps failed, forcing refresh", zap.Error(err))
		p.refresher.LoadApps(ctx, true)
		return
	}

	diff := datasource.DiffStamps(prev, current)
	p.mu.Lock()
	p.stamps = current
	p.mu.Unlock()
	if !diff.HasChanges() {
		p.logger.Debug("registry touched without package changes")
		return
	}

	p.logger.Info("installed packages changed", zap.String("summary", diff.Summary()))
	p.refresher.LoadApps(ctx, true)
	p.onDiff(diff)
}

func (p *PackageWatcher) fileError(err error) {
	p.logger.Debug("registry watch error", zap.Error(err))
}

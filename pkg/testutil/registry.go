package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vanderheijden86/appdrawer/internal/datasource"
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// Registry is an in-memory package registry with call counters and
// injectable failures.
type Registry struct {
	mu       sync.RWMutex
	pkgs     []datasource.Package
	queryErr error
	labelErr error
	stampErr error
	delay    time.Duration
	// failQueries makes the next n Launchable calls fail or return empty.
	failQueries int

	LaunchableCalls atomic.Int64
	LabelCalls      atomic.Int64
	StampCalls      atomic.Int64
}

// NewRegistry returns a registry holding pkgs.
func NewRegistry(pkgs []datasource.Package) *Registry {
	r := &Registry{}
	r.SetPackages(pkgs)
	return r
}

// SetPackages replaces the installed packages.
func (r *Registry) SetPackages(pkgs []datasource.Package) {
	cp := make([]datasource.Package, len(pkgs))
	copy(cp, pkgs)
	r.mu.Lock()
	r.pkgs = cp
	r.mu.Unlock()
}

// Install adds or replaces one package.
func (r *Registry) Install(p datasource.Package) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.pkgs {
		if r.pkgs[i].PackageID == p.PackageID {
			r.pkgs[i] = p
			return
		}
	}
	r.pkgs = append(r.pkgs, p)
}

// SetQueryError makes Launchable fail with err until cleared with nil.
func (r *Registry) SetQueryError(err error) {
	r.mu.Lock()
	r.queryErr = err
	r.mu.Unlock()
}

// FailQueries makes the next n Launchable calls fail with err, or return an
// empty list when err is nil.
func (r *Registry) FailQueries(n int, err error) {
	r.mu.Lock()
	r.failQueries = n
	r.queryErr = err
	r.mu.Unlock()
}

// SetLabelError makes ResolveLabel fail with err.
func (r *Registry) SetLabelError(err error) {
	r.mu.Lock()
	r.labelErr = err
	r.mu.Unlock()
}

// SetStampError makes PackageStamps fail with err.
func (r *Registry) SetStampError(err error) {
	r.mu.Lock()
	r.stampErr = err
	r.mu.Unlock()
}

// SetDelay adds latency to every call.
func (r *Registry) SetDelay(d time.Duration) {
	r.mu.Lock()
	r.delay = d
	r.mu.Unlock()
}

func (r *Registry) wait(ctx context.Context) error {
	r.mu.RLock()
	d := r.delay
	r.mu.RUnlock()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) Launchable(ctx context.Context) ([]model.AppEntry, error) {
	r.LaunchableCalls.Add(1)
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	if r.failQueries > 0 {
		r.failQueries--
		err := r.queryErr
		if r.failQueries == 0 {
			r.queryErr = nil
		}
		r.mu.Unlock()
		return nil, err
	}
	if r.queryErr != nil {
		err := r.queryErr
		r.mu.Unlock()
		return nil, err
	}
	entries := Entries(r.pkgs)
	r.mu.Unlock()
	return entries, nil
}

func (r *Registry) ResolveLabel(ctx context.Context, entry model.AppEntry) (string, error) {
	r.LabelCalls.Add(1)
	if err := r.wait(ctx); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.labelErr != nil {
		return "", r.labelErr
	}
	for _, p := range r.pkgs {
		if p.PackageID == entry.PackageID && p.Label != "" {
			return p.Label, nil
		}
	}
	return "", fmt.Errorf("%s: %w", entry.PackageID, datasource.ErrNoLabel)
}

func (r *Registry) PackageStamps(ctx context.Context) ([]model.PackageStamp, error) {
	r.StampCalls.Add(1)
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stampErr != nil {
		return nil, r.stampErr
	}
	return Stamps(r.pkgs), nil
}

// Close is a no-op.
func (r *Registry) Close() error { return nil }

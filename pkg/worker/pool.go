package worker

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultPoolSize bounds concurrent background tasks.
const DefaultPoolSize = 4

// Pool runs fire-and-forget background tasks with bounded concurrency.
// Go never blocks the caller; tasks beyond the limit wait for a slot.
type Pool struct {
	ctx      context.Context
	cancel   context.CancelFunc
	g        errgroup.Group
	inflight sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool whose tasks receive a context derived from parent.
// The context is cancelled by Close.
func NewPool(parent context.Context, limit int) *Pool {
	if limit <= 0 {
		limit = DefaultPoolSize
	}
	ctx, cancel := context.WithCancel(parent)
	p := &Pool{ctx: ctx, cancel: cancel}
	p.g.SetLimit(limit)
	return p
}

// Go schedules fn. A task may schedule further tasks; Wait covers them.
// Tasks submitted after Close are dropped.
func (p *Pool) Go(fn func(ctx context.Context)) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.inflight.Add(1)
	p.mu.Unlock()
	go p.g.Go(func() error {
		defer p.inflight.Done()
		runGuarded(func() { fn(p.ctx) })
		return nil
	})
}

// Context returns the pool context.
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Wait blocks until every scheduled task, including tasks scheduled by other
// tasks, has finished.
func (p *Pool) Wait() {
	p.inflight.Wait()
}

// Close cancels the pool context and waits for running tasks.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.inflight.Wait()
}

package worker

import (
	"sync"

	"github.com/vanderheijden86/appdrawer/pkg/debug"
)

// Dispatcher runs callbacks on a caller-chosen execution context, typically
// the goroutine that owns the display.
type Dispatcher interface {
	Post(fn func())
}

// Inline is a Dispatcher that runs fn on the posting goroutine.
type Inline struct{}

// Post runs fn immediately.
func (Inline) Post(fn func()) { fn() }

// Serial executes submitted tasks one at a time, in submission order, on a
// single goroutine. It implements Dispatcher. Submit never blocks.
type Serial struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewSerial starts a serial executor.
func NewSerial() *Serial {
	s := &Serial{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Submit queues fn. Tasks submitted after Close are dropped.
func (s *Serial) Submit(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Post implements Dispatcher.
func (s *Serial) Post(fn func()) { s.Submit(fn) }

// Close stops the executor after the task in progress. Queued tasks that have
// not started are dropped.
func (s *Serial) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	close(s.done)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Serial) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if s.closed || len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			fn := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			runGuarded(fn)
		}
	}
}

// runGuarded runs fn and swallows a panic so one bad task cannot kill the
// executor.
func runGuarded(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			debug.Log("worker: task panicked: %v", r)
		}
	}()
	fn()
}

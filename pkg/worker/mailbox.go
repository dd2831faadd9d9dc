package worker

import "sync"

// Mailbox is a single-consumer queue of capacity one where a push overwrites
// an unread value. Consumers therefore only ever see the latest value, which
// is what list and search updates need: each one fully replaces the last.
type Mailbox[T any] struct {
	mu       sync.Mutex
	ch       chan T
	dropped  uint64
	received uint64
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, 1)}
}

// Push stores v, replacing any unread value. It never blocks.
func (m *Mailbox[T]) Push(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.ch:
		m.dropped++
	default:
	}
	m.ch <- v
	m.received++
}

// C returns the receive side of the mailbox.
func (m *Mailbox[T]) C() <-chan T {
	return m.ch
}

// TryRecv returns the pending value, if any, without blocking.
func (m *Mailbox[T]) TryRecv() (T, bool) {
	select {
	case v := <-m.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Stats returns how many values were pushed and how many were overwritten
// before being read.
func (m *Mailbox[T]) Stats() (pushed, overwritten uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received, m.dropped
}

package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var callCount atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() {
			callCount.Add(1)
		})
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)

	if count := callCount.Load(); count != 1 {
		t.Errorf("expected 1 callback invocation, got %d", count)
	}
}

func TestDebouncer_LastTriggerWins(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var got atomic.Value
	for _, q := range []string{"f", "fi", "fir", "fire"} {
		q := q
		d.Trigger(func() { got.Store(q) })
	}
	time.Sleep(100 * time.Millisecond)

	if v, _ := got.Load().(string); v != "fire" {
		t.Errorf("expected last trigger to win, got %q", v)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool
	d.Trigger(func() {
		called.Store(true)
	})
	if !d.Pending() {
		t.Error("expected a pending call")
	}
	d.Cancel()

	time.Sleep(100 * time.Millisecond)

	if called.Load() {
		t.Error("callback should not have been invoked after cancel")
	}
	if d.Pending() {
		t.Error("nothing should be pending after cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	d := NewDebouncer(0)
	if d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected default duration %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

func TestMailbox_OverwritesUnread(t *testing.T) {
	m := NewMailbox[int]()
	m.Push(1)
	m.Push(2)
	m.Push(3)

	v, ok := m.TryRecv()
	if !ok || v != 3 {
		t.Fatalf("TryRecv = %d, %v; want 3, true", v, ok)
	}
	if _, ok := m.TryRecv(); ok {
		t.Error("mailbox should be empty after one receive")
	}
	pushed, overwritten := m.Stats()
	if pushed != 3 || overwritten != 2 {
		t.Errorf("stats = %d/%d, want 3/2", pushed, overwritten)
	}
}

func TestMailbox_ConcurrentPushNeverBlocks(t *testing.T) {
	m := NewMailbox[int]()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Push(i)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent pushes blocked")
	}

	select {
	case <-m.C():
	default:
		t.Error("expected one value to be readable")
	}
}

func TestSerial_PreservesOrder(t *testing.T) {
	s := NewSerial()
	defer s.Close()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		i := i
		s.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			if i == 49 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestSerial_NeverRunsConcurrently(t *testing.T) {
	s := NewSerial()
	defer s.Close()

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		s.Submit(func() {
			defer wg.Done()
			n := active.Add(1)
			for {
				old := maxActive.Load()
				if n <= old || maxActive.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		})
	}
	wg.Wait()
	if maxActive.Load() != 1 {
		t.Errorf("max concurrent tasks = %d, want 1", maxActive.Load())
	}
}

func TestSerial_SurvivesPanic(t *testing.T) {
	s := NewSerial()
	defer s.Close()

	done := make(chan struct{})
	s.Submit(func() { panic("boom") })
	s.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("executor died after panic")
	}
}

func TestSerial_SubmitAfterCloseIsDropped(t *testing.T) {
	s := NewSerial()
	s.Close()
	s.Close()

	var ran atomic.Bool
	s.Submit(func() { ran.Store(true) })
	time.Sleep(20 * time.Millisecond)
	if ran.Load() {
		t.Error("task ran after Close")
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(context.Background(), 2)
	defer p.Close()

	var active, maxActive, total atomic.Int32
	for i := 0; i < 10; i++ {
		p.Go(func(ctx context.Context) {
			n := active.Add(1)
			for {
				old := maxActive.Load()
				if n <= old || maxActive.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
			total.Add(1)
		})
	}
	p.Wait()

	if total.Load() != 10 {
		t.Errorf("ran %d tasks, want 10", total.Load())
	}
	if maxActive.Load() > 2 {
		t.Errorf("max concurrency %d exceeds limit 2", maxActive.Load())
	}
}

func TestPool_WaitCoversNestedTasks(t *testing.T) {
	p := NewPool(context.Background(), 1)
	defer p.Close()

	var nested atomic.Bool
	p.Go(func(ctx context.Context) {
		p.Go(func(ctx context.Context) {
			time.Sleep(10 * time.Millisecond)
			nested.Store(true)
		})
	})
	p.Wait()
	if !nested.Load() {
		t.Error("Wait returned before nested task finished")
	}
}

func TestPool_CloseCancelsContext(t *testing.T) {
	p := NewPool(context.Background(), 1)
	p.Close()
	if p.Context().Err() == nil {
		t.Error("expected cancelled context after Close")
	}
}

func TestPool_GoAfterCloseIsDropped(t *testing.T) {
	p := NewPool(context.Background(), 2)
	p.Close()

	var ran atomic.Bool
	p.Go(func(context.Context) { ran.Store(true) })
	p.Wait()
	time.Sleep(20 * time.Millisecond)
	if ran.Load() {
		t.Error("task ran after Close")
	}
}

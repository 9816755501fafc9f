package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"blendlink/internal/logging"
)

func TestWatcherFiresOnChange(t *testing.T) {
	var mu sync.Mutex
	state := "a"

	fired := make(chan struct{}, 1)
	w := New(5*time.Millisecond, time.Millisecond,
		func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			return state, nil
		},
		func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		},
		logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// Let the baseline settle, then change the fingerprint.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	state = "b"
	mu.Unlock()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never fired after a change")
	}
}

func TestWatcherQuietWhenUnchanged(t *testing.T) {
	var fires int32
	w := New(5*time.Millisecond, time.Millisecond,
		func() (string, error) { return "same", nil },
		func() { atomic.AddInt32(&fires, 1) },
		logging.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx)

	if n := atomic.LoadInt32(&fires); n != 0 {
		t.Errorf("handler fired %d times with an unchanged tree", n)
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	w := New(time.Millisecond, time.Millisecond,
		func() (string, error) { return "x", nil },
		func() {},
		logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestDebouncerCoalescesBursts(t *testing.T) {
	var fires int32
	d := NewDebouncer(20 * time.Millisecond)

	for i := 0; i < 5; i++ {
		d.Trigger(func() { atomic.AddInt32(&fires, 1) })
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(60 * time.Millisecond)
	if n := atomic.LoadInt32(&fires); n != 1 {
		t.Errorf("handler fired %d times, want the burst coalesced into 1", n)
	}
}

func TestDebouncerCancel(t *testing.T) {
	var fires int32
	d := NewDebouncer(10 * time.Millisecond)

	d.Trigger(func() { atomic.AddInt32(&fires, 1) })
	d.Cancel()

	time.Sleep(40 * time.Millisecond)
	if n := atomic.LoadInt32(&fires); n != 0 {
		t.Errorf("handler fired %d times after Cancel", n)
	}
}

func TestDebouncerFlush(t *testing.T) {
	var fires int32
	d := NewDebouncer(time.Hour)

	d.Trigger(func() { atomic.AddInt32(&fires, 1) })
	d.Flush()

	if n := atomic.LoadInt32(&fires); n != 1 {
		t.Errorf("handler fired %d times, want immediate flush", n)
	}
}

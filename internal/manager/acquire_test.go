package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAcquireSingleFlight(t *testing.T) {
	rt := newFakeRuntime()
	rt.loadDelay = 50 * time.Millisecond
	m, w, _, p := testManager(rt)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	handles := make([]ModelHandle, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = m.acquire(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: acquire failed: %v", i, errs[i])
		}
		if handles[i] != rt.handle {
			t.Fatalf("caller %d: got a different handle", i)
		}
	}
	if got := rt.loads.Load(); got != 1 {
		t.Errorf("runtime loads = %d, want 1", got)
	}
	if got := w.calls.Load(); got != 1 {
		t.Errorf("weight fetches = %d, want 1", got)
	}
	if got := p.Count("load_start"); got != 1 {
		t.Errorf("load_start events = %d, want 1", got)
	}
	if got := p.Count("load_ready"); got != 1 {
		t.Errorf("load_ready events = %d, want 1", got)
	}
	if s := m.Snapshot(); s.State != StateReady {
		t.Errorf("state = %s, want %s", s.State, StateReady)
	}
}

func TestAcquireLoadFailureLatches(t *testing.T) {
	rt := newFakeRuntime()
	rt.loadErr = errors.New("cuda init failed")
	m, w, _, p := testManager(rt)

	_, err := m.acquire(context.Background())
	if !IsLoadFailed(err) {
		t.Fatalf("first acquire: got %v, want load failure", err)
	}
	if s := m.Snapshot(); s.State != StateFailed || s.Err == "" {
		t.Fatalf("snapshot = %+v, want failed with error", s)
	}

	// Latched: the second caller fails fast without a new load attempt.
	_, err2 := m.acquire(context.Background())
	if !IsLoadFailed(err2) {
		t.Fatalf("second acquire: got %v, want load failure", err2)
	}
	if got := rt.loads.Load(); got != 1 {
		t.Errorf("runtime loads = %d, want 1 (failure must latch)", got)
	}
	if h := m.Health(); h.LastError == "" {
		t.Error("health should carry the latched load error")
	}

	// Explicit unload clears the latch and re-arms the lazy load.
	if err := m.Unload(); err != nil {
		t.Fatalf("unload from failed: %v", err)
	}
	if s := m.Snapshot(); s.State != StateUnloaded || s.Err != "" {
		t.Fatalf("snapshot after unload = %+v, want clean unloaded", s)
	}
	rt.loadErr = nil
	if _, err := m.acquire(context.Background()); err != nil {
		t.Fatalf("acquire after retry: %v", err)
	}
	if got := rt.loads.Load(); got != 2 {
		t.Errorf("runtime loads = %d, want 2 after retry", got)
	}
	if got := w.calls.Load(); got != 2 {
		t.Errorf("weight fetches = %d, want 2 after retry", got)
	}
	if got := p.Count("load_error"); got != 1 {
		t.Errorf("load_error events = %d, want 1", got)
	}
}

func TestAcquireFetchErrorPropagates(t *testing.T) {
	rt := newFakeRuntime()
	m, w, _, _ := testManager(rt)
	w.err = errors.New("connection reset mid-download")

	_, err := m.acquire(context.Background())
	if !errors.Is(err, w.err) {
		t.Fatalf("got %v, want the fetch error verbatim", err)
	}
	if IsLoadFailed(err) {
		t.Error("fetch failure must not be reported as a runtime load failure")
	}
	if got := rt.loads.Load(); got != 0 {
		t.Errorf("runtime loads = %d, want 0 when fetch fails", got)
	}
	if s := m.Snapshot(); s.State != StateFailed {
		t.Errorf("state = %s, want %s", s.State, StateFailed)
	}
}

func TestAcquireWaiterHonorsContext(t *testing.T) {
	rt := newFakeRuntime()
	rt.loadDelay = 200 * time.Millisecond
	m, _, _, _ := testManager(rt)

	started := make(chan struct{})
	loaded := make(chan error, 1)
	go func() {
		close(started)
		_, err := m.acquire(context.Background())
		loaded <- err
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled waiter: got %v, want context.Canceled", err)
	}

	// The in-flight load is unaffected by the abandoned waiter.
	if err := <-loaded; err != nil {
		t.Fatalf("original load failed: %v", err)
	}
	if s := m.Snapshot(); s.State != StateReady {
		t.Errorf("state = %s, want %s", s.State, StateReady)
	}
}

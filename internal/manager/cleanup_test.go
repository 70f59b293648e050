package manager

import (
	"context"
	"testing"
	"time"

	"pixeld/pkg/types"
)

func TestReleaseCacheWithoutModel(t *testing.T) {
	rt := newFakeRuntime()
	m, _, _, _ := testManager(rt)

	resp := m.ReleaseCache()
	if resp.State != string(StateUnloaded) {
		t.Errorf("state = %q, want unloaded", resp.State)
	}
	if got := rt.handle.released.Load(); got != 0 {
		t.Errorf("release calls = %d, want 0 when nothing is loaded", got)
	}
}

func TestReleaseCacheKeepsModelResident(t *testing.T) {
	rt := newFakeRuntime()
	m, _, _, p := testManager(rt)

	if _, err := m.Generate(context.Background(), types.GenerateRequest{Prompt: "warmup"}); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	resp := m.ReleaseCache()
	if resp.State != string(StateReady) {
		t.Errorf("state = %q, want ready", resp.State)
	}
	if got := rt.handle.released.Load(); got != 1 {
		t.Errorf("release calls = %d, want 1", got)
	}
	if got := p.Count("cache_released"); got != 1 {
		t.Errorf("cache_released events = %d, want 1", got)
	}
	if !m.Ready() {
		t.Error("cache release must not change lifecycle state")
	}
}

func TestUnloadFromReady(t *testing.T) {
	rt := newFakeRuntime()
	m, _, _, p := testManager(rt)

	if _, err := m.Generate(context.Background(), types.GenerateRequest{Prompt: "warmup"}); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	if err := m.Unload(); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if !rt.handle.closed.Load() {
		t.Error("handle was not closed")
	}
	if s := m.Snapshot(); s.State != StateUnloaded {
		t.Errorf("state = %s, want %s", s.State, StateUnloaded)
	}
	if got := p.Count("unload_start"); got != 1 {
		t.Errorf("unload_start events = %d, want 1", got)
	}
	if got := p.Count("unload_done"); got != 1 {
		t.Errorf("unload_done events = %d, want 1", got)
	}
}

func TestUnloadIsIdempotentWhenUnloaded(t *testing.T) {
	rt := newFakeRuntime()
	m, _, _, _ := testManager(rt)
	if err := m.Unload(); err != nil {
		t.Fatalf("unload on fresh manager: %v", err)
	}
}

func TestUnloadWhileLoadingIsBusy(t *testing.T) {
	rt := newFakeRuntime()
	rt.loadDelay = 200 * time.Millisecond
	m, _, _, _ := testManager(rt)

	loaded := make(chan error, 1)
	go func() {
		_, err := m.acquire(context.Background())
		loaded <- err
	}()
	time.Sleep(30 * time.Millisecond)

	if err := m.Unload(); !IsTooBusy(err) {
		t.Fatalf("unload during load: got %v, want busy", err)
	}
	if err := <-loaded; err != nil {
		t.Fatalf("load interrupted: %v", err)
	}
}

func TestUnloadDrainsInflightGeneration(t *testing.T) {
	rt := newFakeRuntime()
	m, _, _, _ := testManager(rt)

	if _, err := m.Generate(context.Background(), types.GenerateRequest{Prompt: "warmup"}); err != nil {
		t.Fatalf("warmup: %v", err)
	}

	rt.handle.genDelay = 150 * time.Millisecond
	genErr := make(chan error, 1)
	go func() {
		_, err := m.Generate(context.Background(), types.GenerateRequest{Prompt: "a red cube"})
		genErr <- err
	}()
	time.Sleep(40 * time.Millisecond)

	if err := m.Unload(); err != nil {
		t.Fatalf("unload: %v", err)
	}
	// The unload waited: the in-flight request finished cleanly rather than
	// failing against a released handle.
	select {
	case err := <-genErr:
		if err != nil {
			t.Fatalf("in-flight generation: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("in-flight generation never completed")
	}
	if !rt.handle.closed.Load() {
		t.Error("handle was not closed after drain")
	}
}

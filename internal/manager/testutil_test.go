package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pixeld/internal/config"
	"pixeld/pkg/types"
)

// fakeWeights counts fetches and hands back a fixed path.
type fakeWeights struct {
	calls atomic.Int32
	err   error
}

func (f *fakeWeights) EnsureLocal(ctx context.Context, modelID string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "/fake/cache/" + modelID + "/model.safetensors", nil
}

// fakeArtifacts records saves in memory.
type fakeArtifacts struct {
	mu    sync.Mutex
	saves []string
}

func (f *fakeArtifacts) Save(prompt string, png []byte) (types.ArtifactRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, prompt)
	name := fmt.Sprintf("img-%d.png", len(f.saves))
	return types.ArtifactRef{URL: "http://test/images/" + name, Path: "/tmp/" + name}, nil
}

// fakeHandle is an injectable generation capability. It tracks the peak
// number of concurrent Generate calls so slot-guard properties are checkable.
type fakeHandle struct {
	active    atomic.Int32
	maxActive atomic.Int32
	genDelay  time.Duration

	mu      sync.Mutex
	nextErr error

	mem      MemoryStats
	released atomic.Int32
	closed   atomic.Bool
}

func (h *fakeHandle) failNext(err error) {
	h.mu.Lock()
	h.nextErr = err
	h.mu.Unlock()
}

func (h *fakeHandle) takeErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	err := h.nextErr
	h.nextErr = nil
	return err
}

func (h *fakeHandle) Generate(ctx context.Context, job Job) ([]byte, error) {
	cur := h.active.Add(1)
	defer h.active.Add(-1)
	for {
		max := h.maxActive.Load()
		if cur <= max || h.maxActive.CompareAndSwap(max, cur) {
			break
		}
	}
	if h.genDelay > 0 {
		select {
		case <-time.After(h.genDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := h.takeErr(); err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("png(%s/%d)", job.Prompt, job.Seed)), nil
}

func (h *fakeHandle) MemoryStats() MemoryStats { return h.mem }
func (h *fakeHandle) ReleaseCache()            { h.released.Add(1) }
func (h *fakeHandle) Close() error             { h.closed.Store(true); return nil }

// fakeRuntime counts loads and returns its single handle.
type fakeRuntime struct {
	loads     atomic.Int32
	loadDelay time.Duration
	loadErr   error
	handle    *fakeHandle
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{handle: &fakeHandle{mem: MemoryStats{AllocatedMB: 4096, ReservedMB: 5120, TotalMB: 8192}}}
}

func (r *fakeRuntime) Load(ctx context.Context, path string, opts LoadOptions) (ModelHandle, error) {
	r.loads.Add(1)
	if r.loadDelay > 0 {
		select {
		case <-time.After(r.loadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.handle, nil
}

// testManager wires a Manager with fakes and short timeouts.
func testManager(rt *fakeRuntime, mutate ...func(*config.ModelConfig)) (*Manager, *fakeWeights, *fakeArtifacts, *MemoryPublisher) {
	mc, err := config.Resolve(config.Config{Device: "cpu"})
	if err != nil {
		panic(err)
	}
	mc.SlotWait = 200 * time.Millisecond
	mc.GenTimeout = 2 * time.Second
	mc.DrainTimeout = time.Second
	for _, f := range mutate {
		f(&mc)
	}
	w := &fakeWeights{}
	a := &fakeArtifacts{}
	p := NewMemoryPublisher()
	m := NewWithConfig(ManagerConfig{
		Model:     mc,
		Weights:   w,
		Runtime:   rt,
		Artifacts: a,
		Publisher: p,
		Logger:    zerolog.Nop(),
	})
	return m, w, a, p
}

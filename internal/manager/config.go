package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pixeld/internal/config"
	"pixeld/pkg/types"
)

// WeightsFetcher resolves model weights to a local path, fetching on demand.
// Satisfied by *store.Store.
type WeightsFetcher interface {
	EnsureLocal(ctx context.Context, modelID string) (string, error)
}

// ArtifactWriter persists generated image bytes. Satisfied by *artifacts.Store.
type ArtifactWriter interface {
	Save(prompt string, png []byte) (types.ArtifactRef, error)
}

// ManagerConfig encapsulates all collaborators and tunables for construction.
type ManagerConfig struct {
	Model     config.ModelConfig
	Weights   WeightsFetcher
	Runtime   Runtime
	Artifacts ArtifactWriter
	Publisher EventPublisher
	Logger    zerolog.Logger
}

// NewWithConfig constructs a Manager. Weights and Artifacts are required by
// any caller that will generate; Runtime and Publisher default to the
// fail-fast stub and a no-op publisher.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:     StateUnloaded,
		cfg:       cfg.Model,
		weights:   cfg.Weights,
		runtime:   cfg.Runtime,
		artifacts: cfg.Artifacts,
		publisher: cfg.Publisher,
		log:       cfg.Logger,
	}
	if m.runtime == nil {
		m.runtime = NewStubRuntime()
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	conc := m.cfg.MaxConcurrency
	if conc <= 0 {
		conc = config.DefaultMaxConcurrency
	}
	depth := m.cfg.MaxQueueDepth
	if depth <= 0 {
		depth = config.DefaultMaxQueueDepth
	}
	m.genCh = make(chan struct{}, conc)
	m.queueCh = make(chan struct{}, depth)
	if m.cfg.SlotWait <= 0 {
		m.cfg.SlotWait = config.DefaultSlotWait
	}
	if m.cfg.DrainTimeout <= 0 {
		m.cfg.DrainTimeout = config.DefaultDrainTimeout
	}
	m.startTime = time.Now()
	return m
}

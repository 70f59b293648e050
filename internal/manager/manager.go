package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pixeld/internal/config"
)

// Manager is the process-wide model lifecycle manager. Exactly one instance
// exists; it is constructed at startup and passed by reference to the HTTP
// layer, never looked up ambiently.
type Manager struct {
	mu       sync.RWMutex
	state    State
	handle   ModelHandle
	loadErr  error         // latched while state == StateFailed
	loadDone chan struct{} // non-nil while state == StateLoading
	draining bool

	cfg       config.ModelConfig
	weights   WeightsFetcher
	runtime   Runtime
	artifacts ArtifactWriter
	publisher EventPublisher
	log       zerolog.Logger

	// Execution-slot guard: queueCh bounds waiters, genCh bounds in-flight.
	genCh   chan struct{}
	queueCh chan struct{}

	startTime        time.Time
	loadsTotal       atomic.Uint64
	generationsTotal atomic.Uint64
}

// Config returns the immutable resolved configuration.
func (m *Manager) Config() config.ModelConfig { return m.cfg }

// Ready reports whether the model is loaded and accepting work.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady && !m.draining
}

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{State: m.state, Inflight: len(m.genCh), QueueLen: len(m.queueCh)}
	if m.loadErr != nil {
		s.Err = m.loadErr.Error()
	}
	return s
}

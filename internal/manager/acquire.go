package manager

import (
	"context"
	"time"
)

// acquire returns the ready model handle, loading it first if necessary.
// Single-flight: however many callers arrive while the model is unloaded,
// the fetch+load sequence runs exactly once; late callers suspend on the
// load-done channel and receive the same handle or the same error. A failed
// load latches until an explicit Unload.
func (m *Manager) acquire(ctx context.Context) (ModelHandle, error) {
	for {
		m.mu.Lock()
		switch m.state {
		case StateReady:
			h := m.handle
			m.mu.Unlock()
			return h, nil

		case StateFailed:
			err := m.loadErr
			m.mu.Unlock()
			return nil, err

		case StateLoading:
			done := m.loadDone
			m.mu.Unlock()
			select {
			case <-done:
				// Re-check: the load settled into ready or failed.
			case <-ctx.Done():
				return nil, ctx.Err()
			}

		case StateUnloaded:
			done := make(chan struct{})
			m.state = StateLoading
			m.loadDone = done
			m.mu.Unlock()

			h, err := m.load(ctx)

			m.mu.Lock()
			if err != nil {
				m.state = StateFailed
				m.loadErr = err
			} else {
				m.state = StateReady
				m.handle = h
				m.loadErr = nil
			}
			m.loadDone = nil
			m.mu.Unlock()
			close(done)

			if err != nil {
				return nil, err
			}
			return h, nil
		}
	}
}

// load runs the fetch+load+optimize sequence. Fetch failures propagate
// verbatim (store's fetch error); runtime failures are wrapped as load
// errors. Unsupported optimization combinations are the runtime's to reject
// and surface here unmodified inside the load error.
func (m *Manager) load(ctx context.Context) (ModelHandle, error) {
	start := time.Now()
	m.log.Info().Str("model", m.cfg.ModelID).Str("device", m.cfg.Device).Msg("model load started")
	m.publisher.Publish(Event{Name: "load_start", ModelID: m.cfg.ModelID})

	path, err := m.weights.EnsureLocal(ctx, m.cfg.ModelID)
	if err != nil {
		m.log.Error().Err(err).Str("model", m.cfg.ModelID).Msg("weights fetch failed")
		m.publisher.Publish(Event{Name: "load_error", ModelID: m.cfg.ModelID, Fields: map[string]any{"error": err.Error()}})
		return nil, err
	}
	m.publisher.Publish(Event{Name: "fetch_done", ModelID: m.cfg.ModelID})

	opts := LoadOptions{
		Device:           m.cfg.Device,
		Precision:        m.cfg.Precision,
		AttentionSlicing: m.cfg.AttentionSlicing,
		VAESlicing:       m.cfg.VAESlicing,
		CPUOffload:       m.cfg.CPUOffload,
		QuantizedLoad:    m.cfg.QuantizedLoad,
	}
	h, err := m.runtime.Load(ctx, path, opts)
	if err != nil {
		m.log.Error().Err(err).Str("model", m.cfg.ModelID).Msg("model load failed")
		m.publisher.Publish(Event{Name: "load_error", ModelID: m.cfg.ModelID, Fields: map[string]any{"error": err.Error()}})
		return nil, ErrLoad(err)
	}

	m.loadsTotal.Add(1)
	modelLoadsTotal.Inc()
	dur := time.Since(start)
	m.log.Info().Str("model", m.cfg.ModelID).Dur("dur", dur).Msg("model ready")
	m.publisher.Publish(Event{Name: "load_ready", ModelID: m.cfg.ModelID, Fields: map[string]any{"dur_ms": int(dur / time.Millisecond)}})
	return h, nil
}

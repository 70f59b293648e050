package manager

import (
	"time"

	"pixeld/pkg/types"
)

// ReleaseCache frees cached-but-unused device memory without changing the
// lifecycle state. No-op when no model is resident.
func (m *Manager) ReleaseCache() types.CleanupResponse {
	m.mu.RLock()
	state := m.state
	handle := m.handle
	m.mu.RUnlock()

	if state == StateReady && handle != nil {
		handle.ReleaseCache()
		m.publisher.Publish(Event{Name: "cache_released", ModelID: m.cfg.ModelID})
		m.log.Info().Msg("device cache released")
		return types.CleanupResponse{Message: "cache released", State: string(state)}
	}
	return types.CleanupResponse{Message: "no model loaded, nothing to release", State: string(state)}
}

// Unload returns the manager to its initial lazy state. From ready it drains
// first: new work is rejected, then it waits up to the drain timeout for
// in-flight and queued requests so device memory is never freed under a
// running generation. From failed it simply clears the latched error, which
// is the explicit retry path. Unloading while a load is in progress is
// rejected as busy.
func (m *Manager) Unload() error {
	m.mu.Lock()
	switch m.state {
	case StateUnloaded:
		m.mu.Unlock()
		return nil

	case StateLoading:
		m.mu.Unlock()
		return tooBusyError{}

	case StateFailed:
		m.state = StateUnloaded
		m.loadErr = nil
		m.mu.Unlock()
		m.publisher.Publish(Event{Name: "unload_done", ModelID: m.cfg.ModelID})
		return nil
	}

	// StateReady: drain, then release.
	m.draining = true
	handle := m.handle
	m.mu.Unlock()
	m.publisher.Publish(Event{Name: "unload_start", ModelID: m.cfg.ModelID})

	deadline := time.Now().Add(m.cfg.DrainTimeout)
	for {
		if len(m.genCh) == 0 && len(m.queueCh) == 0 {
			break
		}
		if time.Now().After(deadline) {
			m.publisher.Publish(Event{Name: "unload_timeout", ModelID: m.cfg.ModelID, Fields: map[string]any{
				"inflight": len(m.genCh), "queue": len(m.queueCh),
			}})
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	err := handle.Close()
	m.mu.Lock()
	m.state = StateUnloaded
	m.handle = nil
	m.draining = false
	m.mu.Unlock()

	m.publisher.Publish(Event{Name: "unload_done", ModelID: m.cfg.ModelID})
	m.log.Info().Msg("model unloaded")
	return err
}

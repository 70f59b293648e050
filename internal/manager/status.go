package manager

import (
	"time"

	"pixeld/pkg/types"
)

// Health builds the response for GET /api/v1/health. Read-only; never blocks
// on the execution slot.
func (m *Manager) Health() types.HealthResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp := types.HealthResponse{
		State:            string(m.state),
		ModelID:          m.cfg.ModelID,
		Device:           m.cfg.Device,
		Inflight:         len(m.genCh),
		QueueLen:         len(m.queueCh),
		UptimeSeconds:    int64(time.Since(m.startTime) / time.Second),
		LoadsTotal:       m.loadsTotal.Load(),
		GenerationsTotal: m.generationsTotal.Load(),
	}
	if m.loadErr != nil {
		resp.LastError = m.loadErr.Error()
	}
	return resp
}

// Info reports the active model configuration for GET /api/v1/info.
func (m *Manager) Info() types.InfoResponse {
	return types.InfoResponse{
		ModelID:          m.cfg.ModelID,
		Device:           m.cfg.Device,
		Precision:        m.cfg.Precision,
		Width:            m.cfg.Width,
		Height:           m.cfg.Height,
		Steps:            m.cfg.Steps,
		GuidanceScale:    m.cfg.GuidanceScale,
		NegativePrompt:   m.cfg.NegativePrompt,
		AttentionSlicing: m.cfg.AttentionSlicing,
		VAESlicing:       m.cfg.VAESlicing,
		CPUOffload:       m.cfg.CPUOffload,
		QuantizedLoad:    m.cfg.QuantizedLoad,
	}
}

package manager

import (
	"runtime"

	"pixeld/pkg/types"
)

const mb = 1024 * 1024

// MemorySnapshot reads current device and host memory usage. It takes only
// the state read-lock and never touches the execution slot, so it stays
// responsive while a generation is in flight.
func (m *Manager) MemorySnapshot() types.MemoryResponse {
	m.mu.RLock()
	state := m.state
	handle := m.handle
	m.mu.RUnlock()

	out := types.MemoryResponse{State: string(state)}
	if state == StateReady && handle != nil {
		dev := handle.MemoryStats()
		out.DeviceAllocatedMB = dev.AllocatedMB
		out.DeviceReservedMB = dev.ReservedMB
		out.DeviceTotalMB = dev.TotalMB
		deviceMemoryAllocated.Set(float64(dev.AllocatedMB * mb))
	} else {
		deviceMemoryAllocated.Set(0)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	out.HostAllocMB = int64(ms.Alloc / mb)
	out.HostSysMB = int64(ms.Sys / mb)
	out.NumGC = ms.NumGC
	return out
}

package manager

import (
	"context"
	"errors"
)

// ErrDeviceOOM is the sentinel a runtime returns (possibly wrapped) when the
// accelerator ran out of memory mid-generation. The pipeline converts it to a
// resource-exhausted result instead of crashing or unloading.
var ErrDeviceOOM = errors.New("device out of memory")

// Runtime abstracts the diffusion engine that actually loads weights and
// renders images. Concrete implementations bind a native library or spawn a
// sidecar; the manager never looks inside.
type Runtime interface {
	// Load makes the model at path resident on the device and applies the
	// requested memory optimizations. Called at most once concurrently.
	Load(ctx context.Context, path string, opts LoadOptions) (ModelHandle, error)
}

// ModelHandle is the loaded generation capability. Safe for shared read-only
// use; the guard serializes calls to Generate on the accelerator.
type ModelHandle interface {
	// Generate renders one image and returns encoded PNG bytes.
	Generate(ctx context.Context, job Job) ([]byte, error)
	// MemoryStats reads current device allocator numbers. Non-blocking.
	MemoryStats() MemoryStats
	// ReleaseCache frees cached-but-unused device memory.
	ReleaseCache()
	// Close releases the model's device memory entirely.
	Close() error
}

// LoadOptions selects the device placement and memory-saving techniques for
// a load. The toggles are independent; unsupported combinations are the
// runtime's to reject.
type LoadOptions struct {
	Device           string
	Precision        string
	AttentionSlicing bool
	VAESlicing       bool
	CPUOffload       bool
	QuantizedLoad    bool
}

// Job carries the fully-defaulted parameters of one generation.
type Job struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	GuidanceScale  float64
	Seed           int64
}

// MemoryStats is a point-in-time read of device memory, in MB.
type MemoryStats struct {
	AllocatedMB int64
	ReservedMB  int64
	TotalMB     int64
}

package manager

import (
	"context"
	"errors"
)

var errDiffusionUnavailable = errors.New("diffusion runtime not built into this binary")

// stubRuntime is the default Runtime when no native diffusion binding is
// linked in. It refuses to load rather than mock generation, so a production
// binary without a device backend fails fast and visibly. Tests inject a fake
// runtime through ManagerConfig instead.
type stubRuntime struct{}

// NewStubRuntime returns the fail-fast default runtime.
func NewStubRuntime() Runtime { return stubRuntime{} }

func (stubRuntime) Load(ctx context.Context, path string, opts LoadOptions) (ModelHandle, error) {
	return nil, errDiffusionUnavailable
}

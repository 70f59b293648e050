// Package manager owns the single in-process diffusion model and everything
// that arbitrates access to it. It is structured into small files by concern:
//
//   - manager.go: core Manager type and constructor plumbing.
//   - config.go: ManagerConfig and package defaults.
//   - types.go: lifecycle states and read-only snapshots.
//   - errors.go: typed errors and predicates for HTTP status mapping.
//   - runtime_iface.go: the opaque diffusion runtime boundary.
//   - acquire.go: single-flight model acquisition state machine.
//   - guard.go: execution-slot admission for the accelerator.
//   - generate.go: request validation and the generation pipeline.
//   - memory.go: non-blocking memory snapshots.
//   - cleanup.go: cache release and drain-then-unload.
//   - status.go: health/info reporting.
//
// The model handle, once ready, is logically shareable, but the guard ensures
// at most the configured number of generations ever touch the accelerator at
// once: the device's memory envelope is sized for a single generation in
// flight. External packages should use the public methods only (Generate,
// Health, Info, MemorySnapshot, ReleaseCache, Unload, Ready).
package manager

package manager

// State represents the lifecycle state of the managed model.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateFailed   State = "failed"
)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State    State
	Err      string
	Inflight int
	QueueLen int
}

package manager

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then an execution slot, each
// bounded by the configured slot wait. Returns a release func to be deferred.
// A caller whose context is canceled while waiting leaves the wait set with
// no side effects; a caller whose timer fires first fails with the busy
// error. The accelerator never sees more than cap(genCh) generations at once.
func (m *Manager) beginGeneration(ctx context.Context) (func(), error) {
	m.mu.RLock()
	draining := m.draining
	m.mu.RUnlock()
	if draining {
		return func() {}, tooBusyError{}
	}

	// Fast path: respect an already-canceled context.
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(m.cfg.SlotWait)
	defer timer.Stop()
	select {
	case m.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		overloadedTotal.Inc()
		return func() {}, tooBusyError{}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-m.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := time.NewTimer(m.cfg.SlotWait)
	defer timer2.Stop()
	select {
	case m.genCh <- struct{}{}:
		acquired = true
		return func() { <-m.genCh; <-m.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		overloadedTotal.Inc()
		return func() {}, tooBusyError{}
	}
}

package worker

import (
	"sync"

	"thinkchat/pkg/types"
)

var statusRank = map[types.SessionStatus]int{
	types.StatusInitializing: 0,
	types.StatusLoading:      1,
	types.StatusReady:        2,
}

// statusTracker holds the worker lifecycle. Transitions only move forward and
// ERROR is absorbing.
type statusTracker struct {
	mu      sync.RWMutex
	status  types.SessionStatus
	lastErr string
}

func newStatusTracker() *statusTracker {
	t := &statusTracker{status: types.StatusInitializing}
	setStatusGauge(t.status)
	return t
}

func (t *statusTracker) get() types.SessionStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *statusTracker) lastError() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastErr
}

// advance moves to next when it is strictly later than the current status.
func (t *statusTracker) advance(next types.SessionStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == types.StatusError || statusRank[next] <= statusRank[t.status] {
		return false
	}
	t.status = next
	setStatusGauge(next)
	return true
}

func (t *statusTracker) fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = types.StatusError
	t.lastErr = msg
	setStatusGauge(types.StatusError)
}

package worker

import (
	"sync"

	"thinkchat/pkg/types"
)

// MemoryPublisher stores events in-memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []types.Event
	notify chan struct{}
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{notify: make(chan struct{}, 1)}
}

func (p *MemoryPublisher) Publish(e types.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *MemoryPublisher) Events() []types.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Event, len(p.events))
	copy(out, p.events)
	return out
}

// Changed is signaled (coalesced) after each Publish.
func (p *MemoryPublisher) Changed() <-chan struct{} { return p.notify }

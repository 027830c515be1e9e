package worker

import (
	"sync"

	"thinkchat/pkg/types"
)

// EventPublisher receives worker events in emission order. Publish must not
// panic.
type EventPublisher interface {
	Publish(types.Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(types.Event) {}

// ChanPublisher delivers events on a channel for in-process controllers.
// Publish blocks until the event is received or the publisher is closed, so
// no event is dropped or reordered.
type ChanPublisher struct {
	ch   chan types.Event
	done chan struct{}
	once sync.Once
}

func NewChanPublisher(buffer int) *ChanPublisher {
	return &ChanPublisher{ch: make(chan types.Event, buffer), done: make(chan struct{})}
}

func (p *ChanPublisher) Publish(e types.Event) {
	select {
	case p.ch <- e:
	case <-p.done:
	}
}

// Events is the receive side. It is never closed; stop reading after Close.
func (p *ChanPublisher) Events() <-chan types.Event { return p.ch }

// Close unblocks pending and future Publish calls.
func (p *ChanPublisher) Close() { p.once.Do(func() { close(p.done) }) }

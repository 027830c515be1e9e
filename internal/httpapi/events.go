package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/tmaxmax/go-sse"

	"thinkchat/pkg/types"
)

// EventHub fans worker events out to /events clients as server-sent events.
// Each event is sent with the SSE event type set to its status and the JSON
// encoded event as data. It implements worker.EventPublisher.
type EventHub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	ch   chan frame
	gone chan struct{}
	once sync.Once
}

// frame is an encoded event ready to be written.
type frame struct {
	status types.EventStatus
	msg    *sse.Message
}

func (s *subscriber) drop() { s.once.Do(func() { close(s.gone) }) }

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[*subscriber]struct{})}
}

// Publish queues e for every connected client. A client whose queue is full
// is disconnected rather than blocking the worker.
func (h *EventHub) Publish(e types.Event) {
	b, err := json.Marshal(e)
	if err != nil {
		zlog.Error().Err(err).Str("status", string(e.Status)).Msg("encode event")
		return
	}
	msg := &sse.Message{Type: sse.Type(string(e.Status))}
	msg.AppendData(string(b))

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- frame{status: e.Status, msg: msg}:
		default:
			sseDropped.Inc()
			s.drop()
			delete(h.subs, s)
			sseSubscribers.Dec()
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *EventHub) subscribe() (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	s := &subscriber{ch: make(chan frame, subscriberBuffer), gone: make(chan struct{})}
	h.subs[s] = struct{}{}
	sseSubscribers.Inc()
	return s, true
}

func (h *EventHub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		sseSubscribers.Dec()
	}
}

// Close disconnects every client and rejects new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		s.drop()
		delete(h.subs, s)
		sseSubscribers.Dec()
	}
}

// ServeHTTP streams events until the client goes away, the hub closes, or the
// server base context is canceled. The client is registered before the
// response headers are flushed, so a caller that has seen the headers will
// receive every event published afterwards.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s, ok := h.subscribe()
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "event stream closed")
		return
	}
	defer h.unsubscribe(s)

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if err := sess.Flush(); err != nil {
		return
	}
	if ev := requestEvent(r, LevelInfo); ev != nil {
		ev.Msg("events subscribed")
	}

	ctx, cancel := streamContext(r)
	defer cancel()
	streamEvents(ctx, r, sess, s)
}

func streamEvents(ctx context.Context, r *http.Request, sess *sse.Session, s *subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.gone:
			return
		case f := <-s.ch:
			if err := sess.Send(f.msg); err != nil {
				return
			}
			if err := sess.Flush(); err != nil {
				return
			}
			if ev := requestEvent(r, LevelDebug); ev != nil {
				ev.Str("event", string(f.status)).Msg("event sent")
			}
		}
	}
}

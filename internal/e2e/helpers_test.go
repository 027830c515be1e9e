package e2e

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"thinkchat/internal/apiclient"
	"thinkchat/internal/engine"
	"thinkchat/internal/httpapi"
	"thinkchat/internal/worker"
	"thinkchat/pkg/types"
)

// stack is a worker served over HTTP, with a client subscribed to /events.
type stack struct {
	srv    *httptest.Server
	worker *worker.Worker
	client *apiclient.Client
	events <-chan types.Event
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newStack(t *testing.T, provider engine.Provider, modelID string) *stack {
	t.Helper()
	ctx := testCtx(t)
	hub := httpapi.NewEventHub()
	w := worker.New(provider, worker.Config{
		ModelID:   modelID,
		Logger:    zerolog.Nop(),
		Publisher: hub,
	})
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- w.Run(runCtx) }()

	srv := httptest.NewServer(httpapi.NewMux(w, hub))
	c := apiclient.New(srv.URL, nil)
	events, _, err := c.Events(runCtx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() {
		stop()
		hub.Close()
		srv.Close()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("worker run: %v", err)
		}
	})
	return &stack{srv: srv, worker: w, client: c, events: events}
}

func (s *stack) send(t *testing.T, cmd types.Command) string {
	t.Helper()
	id, err := s.client.Send(cmd)
	if err != nil {
		t.Fatalf("send %s: %v", cmd.Type, err)
	}
	return id
}

// collect reads events until stop returns true, returning everything seen.
func (s *stack) collect(t *testing.T, stop func(types.Event) bool) []types.Event {
	t.Helper()
	ctx := testCtx(t)
	var got []types.Event
	for {
		select {
		case e, ok := <-s.events:
			if !ok {
				t.Fatalf("event stream closed after %d events", len(got))
			}
			got = append(got, e)
			if stop(e) {
				return got
			}
		case <-ctx.Done():
			t.Fatalf("timed out after %d events: %+v", len(got), got)
		}
	}
}

func (s *stack) load(t *testing.T) []types.Event {
	t.Helper()
	s.send(t, types.Command{Type: types.CommandLoad})
	return s.collect(t, func(e types.Event) bool {
		if e.Status == types.EventError {
			t.Fatalf("load failed: %s", e.Message)
		}
		return e.Status == types.EventReady
	})
}

func terminalFor(id string) func(types.Event) bool {
	return func(e types.Event) bool { return e.ID == id && e.Status.Terminal() }
}

func user(text string) []types.ChatTurn {
	return []types.ChatTurn{{Role: types.RoleUser, Content: text}}
}

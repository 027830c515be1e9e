package engine

import (
	"context"
	"sync"
	"testing"
	"time"
)

// recordingStreamer captures streamer callbacks.
type recordingStreamer struct {
	mu     sync.Mutex
	tokens []Token
	texts  []string
}

func (r *recordingStreamer) OnToken(t Token) {
	r.mu.Lock()
	r.tokens = append(r.tokens, t)
	r.mu.Unlock()
}

func (r *recordingStreamer) OnText(s string) {
	r.mu.Lock()
	r.texts = append(r.texts, s)
	r.mu.Unlock()
}

// stopAfter interrupts stop once n tokens were streamed.
type stopAfter struct {
	recordingStreamer
	n    int
	stop *StoppingCriteria
}

func (s *stopAfter) OnToken(t Token) {
	s.recordingStreamer.OnToken(t)
	if len(s.tokens) >= s.n {
		s.stop.Interrupt()
	}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

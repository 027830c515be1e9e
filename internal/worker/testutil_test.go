package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"thinkchat/internal/engine"
	"thinkchat/pkg/types"
)

// fakeProvider is an in-memory provider with scripted behavior.
type fakeProvider struct {
	probeErr      error
	unavailable   bool
	tokErr        error
	modelErr      error
	tokProgress   []engine.Progress
	modelProgress []engine.Progress
	model         *fakeModel
	probeDown     atomic.Bool

	tokCalls   atomic.Int32
	modelCalls atomic.Int32
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Probe(ctx context.Context) (engine.AdapterInfo, error) {
	if p.probeErr != nil {
		return engine.AdapterInfo{}, p.probeErr
	}
	if p.probeDown.Load() {
		return engine.AdapterInfo{}, errors.New("heartbeat timeout")
	}
	return engine.AdapterInfo{Available: !p.unavailable, Name: "fake", Detail: "no adapter found"}, nil
}

func (p *fakeProvider) LoadTokenizer(ctx context.Context, id string, progress engine.ProgressFunc) (engine.Tokenizer, error) {
	p.tokCalls.Add(1)
	for _, pr := range p.tokProgress {
		progress(pr)
	}
	if p.tokErr != nil {
		return nil, p.tokErr
	}
	return fakeTokenizer{}, nil
}

func (p *fakeProvider) LoadModel(ctx context.Context, id string, cfg engine.ModelConfig, progress engine.ProgressFunc) (engine.Model, error) {
	p.modelCalls.Add(1)
	for _, pr := range p.modelProgress {
		progress(pr)
	}
	if p.modelErr != nil {
		return nil, p.modelErr
	}
	if p.model == nil {
		p.model = &fakeModel{}
	}
	return p.model, nil
}

type fakeTokenizer struct{}

func (fakeTokenizer) ApplyChatTemplate(turns []types.ChatTurn, opts engine.TemplateOptions) (engine.Inputs, error) {
	return engine.Inputs{Turns: turns}, nil
}

func (fakeTokenizer) Encode(text string) (engine.Inputs, error) {
	return engine.Inputs{Prompt: text}, nil
}

func (fakeTokenizer) BatchDecode(seqs []engine.Sequence, opts engine.DecodeOptions) ([]string, error) {
	out := make([]string, len(seqs))
	for i, s := range seqs {
		var b strings.Builder
		for _, t := range s {
			if t.Special && opts.SkipSpecialTokens {
				continue
			}
			b.WriteString(t.Text)
		}
		out[i] = b.String()
	}
	return out, nil
}

// fakeModel streams chunks one token each. When gate is set every chunk
// waits for a value on it.
type fakeModel struct {
	chunks  []string
	header  string
	err     error
	warmErr error
	gate    chan struct{}

	mu     sync.Mutex
	calls  []engine.GenerateParams
	inputs []engine.Inputs
}

func (m *fakeModel) Generate(ctx context.Context, in engine.Inputs, params engine.GenerateParams, streamer engine.Streamer, stop *engine.StoppingCriteria) (engine.Output, error) {
	m.mu.Lock()
	m.calls = append(m.calls, params)
	m.inputs = append(m.inputs, in)
	m.mu.Unlock()
	if streamer == nil {
		return engine.Output{}, m.warmErr
	}
	header := m.header
	if header == "" {
		header = "assistant\n"
	}
	seq := engine.Sequence{{Text: "<|im_start|>", Special: true}, {Text: header}}
	for i, c := range m.chunks {
		if m.gate != nil {
			select {
			case <-m.gate:
			case <-ctx.Done():
				return engine.Output{}, ctx.Err()
			}
		}
		if stop.Interrupted() {
			break
		}
		tok := engine.Token{ID: i, Text: c}
		seq = append(seq, tok)
		streamer.OnToken(tok)
		streamer.OnText(c)
	}
	if m.err != nil {
		return engine.Output{}, m.err
	}
	return engine.Output{Sequences: []engine.Sequence{seq}, Cache: len(m.calls)}, nil
}

func (m *fakeModel) params() []engine.GenerateParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]engine.GenerateParams(nil), m.calls...)
}

func (m *fakeModel) lastInputs() engine.Inputs {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs[len(m.inputs)-1]
}

// stepClock advances by step on every call.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

// startWorker runs a worker until the test ends.
func startWorker(t *testing.T, p engine.Provider, cfg Config) (*Worker, *MemoryPublisher) {
	t.Helper()
	pub := NewMemoryPublisher()
	cfg.Publisher = pub
	if cfg.ModelID == "" {
		cfg.ModelID = "test-model"
	}
	w := New(p, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w, pub
}

func send(t *testing.T, w *Worker, cmd types.Command) string {
	t.Helper()
	id, err := w.Send(cmd)
	if err != nil {
		t.Fatalf("send %s: %v", cmd.Type, err)
	}
	return id
}

// waitFor blocks until pred holds for the published events.
func waitFor(t *testing.T, pub *MemoryPublisher, what string, pred func([]types.Event) bool) []types.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		evs := pub.Events()
		if pred(evs) {
			return evs
		}
		select {
		case <-pub.Changed():
		case <-deadline:
			t.Fatalf("timed out waiting for %s; events: %+v", what, evs)
		}
	}
}

func has(status types.EventStatus, id string) func([]types.Event) bool {
	return func(evs []types.Event) bool {
		for _, e := range evs {
			if e.Status == status && (id == "" || e.ID == id) {
				return true
			}
		}
		return false
	}
}

func hasError(evs []types.Event) bool { return has(types.EventError, "")(evs) }

func loadReady(t *testing.T, w *Worker, pub *MemoryPublisher) {
	t.Helper()
	send(t, w, types.Command{Type: types.CommandLoad})
	waitFor(t, pub, "ready", has(types.EventReady, ""))
}

// forID returns the events carrying id, in order.
func forID(evs []types.Event, id string) []types.Event {
	var out []types.Event
	for _, e := range evs {
		if e.ID == id {
			out = append(out, e)
		}
	}
	return out
}

func statuses(evs []types.Event) []types.EventStatus {
	out := make([]types.EventStatus, len(evs))
	for i, e := range evs {
		out[i] = e.Status
	}
	return out
}

func userTurn(s string) []types.ChatTurn {
	return []types.ChatTurn{{Role: types.RoleUser, Content: s}}
}

// eventually polls cond for state that does not publish events.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"thinkchat/internal/engine"
	"thinkchat/internal/splitter"
	"thinkchat/pkg/types"
)

// resources yields loaded model instances; *Loader implements it.
type resources interface {
	Resources() (engine.Tokenizer, engine.Model, bool)
}

// StreamState is the live state of the one active generation. It is the
// engine.Streamer handed to the model.
type StreamState struct {
	id   string
	req  types.GenerationRequest
	emit func(types.Event)
	stop *engine.StoppingCriteria
	now  func() time.Time

	mu      sync.Mutex
	raw     strings.Builder
	split   splitter.Result
	tokens  int
	started time.Time
	tps     *float64
	closed  bool
}

func (s *StreamState) OnToken(engine.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.tokens == 0 {
		s.started = now
	}
	s.tokens++
	if s.tokens > 1 {
		ms := float64(now.Sub(s.started)) / float64(time.Millisecond)
		if ms > 0 {
			v := float64(s.tokens) / ms * 1000
			s.tps = &v
		}
	}
}

// OnText accumulates the delta, re-splits the whole buffer and emits a full
// replacement update. Nothing is emitted once interrupted or closed.
func (s *StreamState) OnText(delta string) {
	s.mu.Lock()
	s.raw.WriteString(delta)
	s.split = splitter.Stable(s.raw.String())
	if s.closed || s.stop.Interrupted() {
		s.mu.Unlock()
		return
	}
	ev := types.Event{
		Status:    types.EventUpdate,
		ID:        s.id,
		Output:    s.split.Answer,
		Thought:   s.split.Reasoning,
		NumTokens: s.tokens,
		State:     string(s.split.Phase),
	}
	if s.tps != nil {
		v := *s.tps
		ev.TPS = &v
	}
	s.mu.Unlock()
	s.emit(ev)
}

// close stops further updates and returns the counters for metrics.
func (s *StreamState) close() (tokens int, tps *float64, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.tokens, s.tps, s.raw.String()
}

// Session owns the single active generation, the incremental cache and the
// stopping criteria.
type Session struct {
	res          resources
	status       *statusTracker
	emit         func(types.Event)
	log          zerolog.Logger
	maxNewTokens int
	window       int
	now          func() time.Time

	mu           sync.Mutex
	active       *StreamState
	cache        engine.Cache
	resetPending bool
	stop         *engine.StoppingCriteria
}

func newSession(res resources, status *statusTracker, emit func(types.Event), log zerolog.Logger, maxNewTokens, window int, now func() time.Time) *Session {
	return &Session{
		res:          res,
		status:       status,
		emit:         emit,
		log:          log,
		maxNewTokens: maxNewTokens,
		window:       window,
		now:          now,
		stop:         engine.NewStoppingCriteria(),
	}
}

// Start validates req and reserves the active slot. Only the last window
// turns are kept. It emits start on success; the caller must then invoke Run.
func (s *Session) Start(req types.GenerationRequest) error {
	if st := s.status.get(); st != types.StatusReady {
		return ErrInvalidRequest("model is not ready (status " + string(st) + ")")
	}
	req.Turns = lastTurns(req.Turns, s.window)
	if err := req.Validate(); err != nil {
		return ErrInvalidRequest(err.Error())
	}
	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return ErrInvalidRequest("a generation is already in progress")
	}
	s.stop.Reset()
	s.active = &StreamState{id: req.ID, req: req, emit: s.emit, stop: s.stop, now: s.now}
	s.mu.Unlock()
	s.emit(types.Event{Status: types.EventStart, ID: req.ID})
	return nil
}

// lastTurns returns the trailing n turns. A non-positive n keeps them all.
func lastTurns(turns []types.ChatTurn, n int) []types.ChatTurn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// Run performs the reserved generation and emits exactly one complete or
// error event for it.
func (s *Session) Run(ctx context.Context) {
	s.mu.Lock()
	st, cache := s.active, s.cache
	s.mu.Unlock()
	if st == nil {
		return
	}
	ctx, span := tracer.Start(ctx, "worker.generate")
	span.SetAttributes(attribute.String("generation.id", st.id), attribute.Int("turns", len(st.req.Turns)))
	defer span.End()

	tok, model, ok := s.res.Resources()
	if !ok {
		err := ErrResourceFailure(errors.New("model resources are not loaded"))
		s.status.fail(err.Error())
		failSpan(span, err)
		s.failGeneration(st, err)
		return
	}

	in, err := tok.ApplyChatTemplate(st.req.Turns, engine.TemplateOptions{AddGenerationPrompt: true})
	if err != nil {
		failSpan(span, err)
		s.failGeneration(st, ErrGenerationFailure(err))
		return
	}
	params := engine.GenerateParams{MaxNewTokens: s.maxNewTokens, DoSample: false, PastKeyValues: cache}
	out, genErr := model.Generate(ctx, in, params, st, s.stop)
	interrupted := s.stop.Interrupted() || ctx.Err() != nil
	if genErr != nil && !interrupted {
		failSpan(span, genErr)
		s.failGeneration(st, ErrGenerationFailure(genErr))
		return
	}

	var final string
	if genErr != nil {
		// Canceled without output; fall back to what was streamed.
		_, _, raw := st.close()
		final = strings.TrimSpace(raw)
		out.Cache = nil
	} else {
		texts, err := tok.BatchDecode(out.Sequences, engine.DecodeOptions{SkipSpecialTokens: true})
		if err != nil {
			failSpan(span, err)
			s.failGeneration(st, ErrGenerationFailure(err))
			return
		}
		if len(texts) > 0 {
			final = CleanFinal(texts[0])
		}
	}

	tokens, tps, _ := st.close()
	s.end(out.Cache)
	outcome := "complete"
	if interrupted {
		outcome = "interrupted"
	}
	generationsTotal.WithLabelValues(outcome).Inc()
	tokensTotal.Add(float64(tokens))
	if tps != nil {
		tokensPerSecond.Observe(*tps)
	}
	span.SetAttributes(attribute.Int("tokens", tokens), attribute.String("outcome", outcome))
	s.log.Debug().Str("id", st.id).Int("tokens", tokens).Str("outcome", outcome).Msg("generation finished")
	s.emit(types.Event{Status: types.EventComplete, ID: st.id, Output: final})
}

func (s *Session) failGeneration(st *StreamState, err error) {
	st.close()
	s.end(nil)
	generationsTotal.WithLabelValues("error").Inc()
	s.log.Error().Err(err).Str("id", st.id).Msg("generation failed")
	s.emit(types.Event{Status: types.EventError, ID: st.id, Message: err.Error(), Class: Classify(err)})
}

// end releases the active slot before the terminal event is emitted so a
// controller reacting to it can start the next generation immediately.
func (s *Session) end(cache engine.Cache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
	s.cache = cache
	if s.resetPending {
		s.resetPending = false
		s.cache = nil
		s.stop.Reset()
	}
}

// Interrupt asks the active generation to stop at the next token boundary.
// It is a no-op when idle.
func (s *Session) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.stop.Interrupt()
	}
}

// Reset drops the incremental cache. While a generation is active the reset
// is applied when that generation ends.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.resetPending = true
		return
	}
	s.cache = nil
	s.stop.Reset()
}

type sessionSnapshot struct {
	generating bool
	activeID   string
	cacheWarm  bool
}

func (s *Session) snapshot() sessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := sessionSnapshot{cacheWarm: s.cache != nil}
	if s.active != nil {
		snap.generating = true
		snap.activeID = s.active.id
	}
	return snap
}

// CleanFinal drops the first line of a decoded sequence (the echoed
// generation header) and trims the rest.
func CleanFinal(decoded string) string {
	i := strings.IndexByte(decoded, '\n')
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(decoded[i+1:])
}

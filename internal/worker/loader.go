package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"thinkchat/internal/engine"
	"thinkchat/pkg/types"
)

// Loader acquires the tokenizer and model once per worker and warms the
// model up. Acquired instances are kept on the Loader for its lifetime.
type Loader struct {
	provider engine.Provider
	modelID  string
	cfg      engine.ModelConfig
	log      zerolog.Logger
	emit     func(types.Event)
	status   *statusTracker
	progress *progressTracker

	mu        sync.Mutex
	started   bool
	tokenizer engine.Tokenizer
	model     engine.Model
}

func newLoader(p engine.Provider, modelID string, cfg engine.ModelConfig, log zerolog.Logger, emit func(types.Event), status *statusTracker) *Loader {
	return &Loader{
		provider: p,
		modelID:  modelID,
		cfg:      cfg,
		log:      log,
		emit:     emit,
		status:   status,
		progress: newProgressTracker(emit),
	}
}

// begin reserves the single load. It returns false when a load already started.
func (l *Loader) begin() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return false
	}
	l.started = true
	return true
}

// Resources returns the loaded instances once both are available.
func (l *Loader) Resources() (engine.Tokenizer, engine.Model, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokenizer, l.model, l.tokenizer != nil && l.model != nil
}

// Check probes the compute capability without loading anything. A failure
// is reported as an error event but leaves the session status untouched.
func (l *Loader) Check(ctx context.Context) error {
	if _, err := l.probe(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.log.Warn().Err(err).Msg("capability check failed")
		l.emit(types.Event{Status: types.EventError, Message: err.Error(), Class: Classify(err)})
		return err
	}
	return nil
}

// probe asks the provider for its capability.
func (l *Loader) probe(ctx context.Context) (engine.AdapterInfo, error) {
	info, err := l.provider.Probe(ctx)
	if err == nil && !info.Available {
		err = errors.New(info.Detail)
	}
	if err != nil {
		return info, ErrCapabilityUnavailable(fmt.Sprintf("%s is not available: %v", l.provider.Name(), err), err)
	}
	return info, nil
}

// Load runs the full sequence: probe, tokenizer, model, warm-up. Failures are
// reported as error events and move the status to ERROR.
func (l *Loader) Load(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "worker.load")
	span.SetAttributes(attribute.String("model.id", l.modelID), attribute.String("provider", l.provider.Name()))
	defer span.End()
	start := time.Now()

	l.emit(types.Event{Status: types.EventLoading, Message: "Checking compute device support..."})
	info, err := l.probe(ctx)
	if err != nil {
		failSpan(span, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return l.fail(err)
	}
	l.status.advance(types.StatusLoading)
	l.log.Info().Str("model", l.modelID).Str("provider", l.provider.Name()).Str("device", info.Detail).Msg("loading model")

	tok, model, err := l.acquire(ctx)
	if err != nil {
		failSpan(span, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return l.fail(ErrResourceFailure(err))
	}

	l.emit(types.Event{Status: types.EventLoading, Message: "Compiling and warming up model..."})
	if err := warmUp(ctx, tok, model); err != nil {
		failSpan(span, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return l.fail(ErrResourceFailure(fmt.Errorf("warm-up: %w", err)))
	}

	l.status.advance(types.StatusReady)
	loadDuration.Observe(time.Since(start).Seconds())
	l.log.Info().Str("model", l.modelID).Dur("took", time.Since(start)).Msg("model ready")
	l.emit(types.Event{Status: types.EventReady})
	return nil
}

// acquire loads whichever of tokenizer and model is still missing.
func (l *Loader) acquire(ctx context.Context) (engine.Tokenizer, engine.Model, error) {
	l.mu.Lock()
	tok, model := l.tokenizer, l.model
	l.mu.Unlock()

	if tok == nil {
		l.emit(types.Event{Status: types.EventLoading, Message: "Loading tokenizer..."})
		t, err := l.provider.LoadTokenizer(ctx, l.modelID, l.progress.observe)
		if err != nil {
			return nil, nil, fmt.Errorf("tokenizer: %w", err)
		}
		l.mu.Lock()
		l.tokenizer = t
		l.mu.Unlock()
		tok = t
	}
	if model == nil {
		l.emit(types.Event{Status: types.EventLoading, Message: fmt.Sprintf("Loading model %s...", l.modelID)})
		m, err := l.provider.LoadModel(ctx, l.modelID, l.cfg, l.progress.observe)
		if err != nil {
			return nil, nil, fmt.Errorf("model: %w", err)
		}
		l.mu.Lock()
		l.model = m
		l.mu.Unlock()
		model = m
	}
	return tok, model, nil
}

// warmUp generates a single token so one-time compilation happens before
// the first user request.
func warmUp(ctx context.Context, tok engine.Tokenizer, model engine.Model) error {
	in, err := tok.Encode("a")
	if err != nil {
		return err
	}
	_, err = model.Generate(ctx, in, engine.GenerateParams{MaxNewTokens: 1}, nil, nil)
	return err
}

func (l *Loader) fail(err error) error {
	l.status.fail(err.Error())
	l.log.Error().Err(err).Str("class", string(Classify(err))).Msg("load failed")
	l.emit(types.Event{Status: types.EventError, Message: err.Error(), Class: Classify(err)})
	return err
}

package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"thinkchat/internal/engine"
	"thinkchat/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxNewTokens      = 2048
	defaultContextWindowSize = 10
	defaultQueueDepth        = 64
)

// Config encapsulates all tunables for Worker construction.
type Config struct {
	ModelID           string
	Precision         string
	Device            string
	MaxNewTokens      int
	ContextWindowSize int
	// QueueDepth bounds the command channel; Send blocks when it is full.
	QueueDepth int
	Logger     zerolog.Logger
	Publisher  EventPublisher
	// Now is the clock used for tokens/sec; defaults to time.Now.
	Now func() time.Time
}

// Worker owns the model and processes commands one at a time in send order.
// Loads and generations run on tracked goroutines so interrupt and reset are
// observed while they run.
type Worker struct {
	cfg      Config
	provider engine.Provider
	log      zerolog.Logger

	pubMu sync.RWMutex
	pub   EventPublisher

	cmds      chan types.Command
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	status    *statusTracker
	loader    *Loader
	session   *Session
	startTime time.Time
}

// New constructs a Worker for provider, applying Config defaults.
func New(provider engine.Provider, cfg Config) *Worker {
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = defaultMaxNewTokens
	}
	if cfg.ContextWindowSize <= 0 {
		cfg.ContextWindowSize = defaultContextWindowSize
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	w := &Worker{
		cfg:       cfg,
		provider:  provider,
		log:       cfg.Logger.With().Str("component", "worker").Logger(),
		pub:       cfg.Publisher,
		cmds:      make(chan types.Command, cfg.QueueDepth),
		closed:    make(chan struct{}),
		status:    newStatusTracker(),
		startTime: time.Now(),
	}
	if w.pub == nil {
		w.pub = noopPublisher{}
	}
	mc := engine.ModelConfig{
		Precision:         cfg.Precision,
		Device:            cfg.Device,
		MaxNewTokens:      cfg.MaxNewTokens,
		ContextWindowSize: cfg.ContextWindowSize,
	}
	w.loader = newLoader(provider, cfg.ModelID, mc, w.log, w.emit, w.status)
	w.session = newSession(w.loader, w.status, w.emit, w.log, cfg.MaxNewTokens, cfg.ContextWindowSize, cfg.Now)
	return w
}

// SetEventPublisher swaps the publisher. A nil publisher drops events.
func (w *Worker) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	w.pubMu.Lock()
	w.pub = p
	w.pubMu.Unlock()
}

func (w *Worker) emit(e types.Event) {
	w.pubMu.RLock()
	p := w.pub
	w.pubMu.RUnlock()
	w.log.Trace().Str("status", string(e.Status)).Str("id", e.ID).Msg("event")
	p.Publish(e)
}

// ContextWindowSize is the number of recent turns controllers should send.
func (w *Worker) ContextWindowSize() int { return w.cfg.ContextWindowSize }

// Send enqueues cmd and returns its correlation id, assigning one when empty.
func (w *Worker) Send(cmd types.Command) (string, error) {
	if !cmd.Type.Valid() {
		return "", ErrInvalidRequest("unknown command type " + string(cmd.Type))
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	select {
	case <-w.closed:
		return "", ErrClosed
	default:
	}
	select {
	case w.cmds <- cmd:
		return cmd.ID, nil
	case <-w.closed:
		return "", ErrClosed
	}
}

// Close stops the command loop. Run interrupts any active generation and
// waits for it before returning.
func (w *Worker) Close() {
	w.closeOnce.Do(func() { close(w.closed) })
}

// Run consumes commands until ctx is canceled or Close is called.
func (w *Worker) Run(ctx context.Context) error {
	defer w.shutdown()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.closed:
			return nil
		case cmd := <-w.cmds:
			w.handle(ctx, cmd)
		}
	}
}

func (w *Worker) shutdown() {
	w.Close()
	w.session.Interrupt()
	w.wg.Wait()
}

func (w *Worker) handle(ctx context.Context, cmd types.Command) {
	w.log.Debug().Str("type", string(cmd.Type)).Str("id", cmd.ID).Msg("command")
	switch cmd.Type {
	case types.CommandLoad:
		if !w.loader.begin() {
			w.log.Debug().Msg("load already started; ignoring")
			return
		}
		w.spawn(func() { _ = w.loader.Load(ctx) })
	case types.CommandGenerate:
		req := types.GenerationRequest{ID: cmd.ID, Turns: cmd.Turns}
		if err := w.session.Start(req); err != nil {
			generationsTotal.WithLabelValues("rejected").Inc()
			w.log.Warn().Err(err).Str("id", cmd.ID).Msg("generate rejected")
			w.emit(types.Event{Status: types.EventError, ID: cmd.ID, Message: err.Error(), Class: Classify(err)})
			return
		}
		w.spawn(func() { w.session.Run(ctx) })
	case types.CommandInterrupt:
		w.session.Interrupt()
	case types.CommandReset:
		w.session.Reset()
	case types.CommandCheck:
		w.spawn(func() { _ = w.loader.Check(ctx) })
	}
}

func (w *Worker) spawn(fn func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

// Ready reports whether the model is loaded and warmed up.
func (w *Worker) Ready() bool { return w.status.get() == types.StatusReady }

// Status reports the worker state for observers.
func (w *Worker) Status() types.StatusResponse {
	snap := w.session.snapshot()
	return types.StatusResponse{
		Status:         w.status.get(),
		ModelID:        w.cfg.ModelID,
		Provider:       w.provider.Name(),
		Generating:     snap.generating,
		ActiveID:       snap.activeID,
		CacheWarm:      snap.cacheWarm,
		Progress:       w.loader.progress.inFlight(),
		LastError:      w.status.lastError(),
		UptimeSeconds:  int64(time.Since(w.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
}

// Package controller is the UI-side client of the worker protocol. It folds
// worker events into displayable state and keeps the transcript in sync.
package controller

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"thinkchat/internal/transcript"
	"thinkchat/pkg/types"
)

var (
	ErrNotReady     = errors.New("model is not ready")
	ErrBusy         = errors.New("a response is still being generated")
	ErrEmptyMessage = errors.New("message is empty")
)

// Sender delivers commands to a worker; *worker.Worker implements it.
type Sender interface {
	Send(types.Command) (string, error)
}

// Progress is the most recent asset download report.
type Progress struct {
	File    string
	Percent int
}

// Generation is the live view of the running generation. Response and
// Thought are full replacements from the latest update.
type Generation struct {
	Active    bool
	ID        string
	Response  string
	Thought   string
	State     string
	TPS       *float64
	NumTokens int
}

// State is everything a UI renders.
type State struct {
	Status     types.SessionStatus
	Progress   *Progress
	Generation Generation
	Error      string
}

// Options configures a Controller.
type Options struct {
	// Window is the number of recent turns sent with each request.
	Window int
	Logger zerolog.Logger
}

type Controller struct {
	sender Sender
	store  *transcript.Store
	window int
	log    zerolog.Logger

	mu         sync.Mutex
	state      State
	pending    string
	onComplete func(string)
	onChange   func(State)
}

func New(sender Sender, store *transcript.Store, opts Options) *Controller {
	if opts.Window <= 0 {
		opts.Window = 10
	}
	return &Controller{
		sender: sender,
		store:  store,
		window: opts.Window,
		log:    opts.Logger,
		state:  State{Status: types.StatusInitializing},
	}
}

// OnComplete registers a callback receiving each finished response.
func (c *Controller) OnComplete(fn func(string)) {
	c.mu.Lock()
	c.onComplete = fn
	c.mu.Unlock()
}

// OnChange registers a callback invoked after every handled event.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run handles events until ctx ends or events is closed.
func (c *Controller) Run(ctx context.Context, events <-chan types.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			c.Handle(e)
		}
	}
}

// Handle folds one worker event into the state.
func (c *Controller) Handle(e types.Event) {
	c.mu.Lock()
	var completed *string
	st := &c.state
	switch e.Status {
	case types.EventLoading:
		if st.Status != types.StatusError {
			st.Status = types.StatusLoading
		}
	case types.EventInitiate:
		st.Progress = &Progress{File: e.File}
	case types.EventProgress:
		if e.Progress != nil {
			st.Progress = &Progress{File: e.File, Percent: *e.Progress}
		}
	case types.EventDone:
		st.Progress = nil
	case types.EventReady:
		st.Status = types.StatusReady
		st.Progress = nil
	case types.EventStart:
		if e.ID == c.pending {
			c.pending = ""
		}
		st.Generation = Generation{Active: true, ID: e.ID}
	case types.EventUpdate:
		if e.ID == st.Generation.ID {
			g := &st.Generation
			g.Response, g.Thought, g.State = e.Output, e.Thought, e.State
			g.TPS, g.NumTokens = e.TPS, e.NumTokens
		}
	case types.EventComplete:
		if e.ID == st.Generation.ID {
			st.Generation = Generation{}
			if _, err := c.store.Append(types.RoleAssistant, e.Output); err != nil {
				c.log.Warn().Err(err).Msg("append assistant turn")
			}
			out := e.Output
			completed = &out
		}
	case types.EventError:
		st.Error = e.Message
		switch {
		case e.ID == "":
			st.Status = types.StatusError
			st.Generation.Active = false
		case e.ID == c.pending:
			c.pending = ""
		case e.ID == st.Generation.ID:
			st.Generation = Generation{}
		}
	}
	snap := c.state
	onComplete, onChange := c.onComplete, c.onChange
	c.mu.Unlock()

	if completed != nil && onComplete != nil {
		onComplete(*completed)
	}
	if onChange != nil {
		onChange(snap)
	}
}

// Load asks the worker to load the model.
func (c *Controller) Load() error {
	_, err := c.sender.Send(types.Command{Type: types.CommandLoad})
	return err
}

// Submit appends a user turn and requests a response over the last Window
// turns. It only works when the model is ready and nothing is generating.
func (c *Controller) Submit(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	id := uuid.NewString()
	c.mu.Lock()
	switch {
	case c.state.Status != types.StatusReady:
		c.mu.Unlock()
		return "", ErrNotReady
	case c.state.Generation.Active || c.pending != "":
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.pending = id
	c.state.Error = ""
	c.mu.Unlock()

	if _, err := c.store.Append(types.RoleUser, text); err != nil {
		c.clearPending(id)
		return "", err
	}
	if _, err := c.sender.Send(types.Command{Type: types.CommandGenerate, ID: id, Turns: c.store.Window(c.window)}); err != nil {
		c.clearPending(id)
		return "", err
	}
	return id, nil
}

func (c *Controller) clearPending(id string) {
	c.mu.Lock()
	if c.pending == id {
		c.pending = ""
	}
	c.mu.Unlock()
}

// Interrupt stops the running generation; its partial text still arrives
// through complete.
func (c *Controller) Interrupt() error {
	_, err := c.sender.Send(types.Command{Type: types.CommandInterrupt})
	return err
}

// Reset starts a new conversation.
func (c *Controller) Reset() error {
	c.store.Clear()
	_, err := c.sender.Send(types.Command{Type: types.CommandReset})
	return err
}

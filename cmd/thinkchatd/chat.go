package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"unicode"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"thinkchat/internal/apiclient"
	"thinkchat/internal/config"
	"thinkchat/internal/controller"
	"thinkchat/internal/telemetry"
	"thinkchat/internal/transcript"
	"thinkchat/internal/worker"
	"thinkchat/pkg/types"
)

const chatHelp = "Commands: /stop interrupts the answer, /reset starts over, /quit exits."

func newChatCmd(opts *rootOptions) *cobra.Command {
	var server string
	var showThinking bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal, in-process or against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return chat(ctx, cfg, server, showThinking, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&server, "server", "", "Base URL of a running thinkchatd; empty runs the model in-process")
	fs.BoolVar(&showThinking, "show-thinking", true, "Print the model's reasoning as it streams")
	addModelFlags(fs)
	return cmd
}

func chat(ctx context.Context, cfg config.Config, server string, showThinking bool, in io.Reader, out io.Writer) error {
	// Keep the terminal for the conversation; logs go to the file if any.
	logOut := io.Discard
	if cfg.LogFile == "" {
		logOut = os.Stderr
		if cfg.LogLevel == config.Defaults().LogLevel {
			cfg.LogLevel = "warn"
		}
	}
	log, closer := telemetry.NewLogger(logOut, cfg.LogLevel, cfg.LogFile)
	defer closer.Close()

	g, gctx := errgroup.WithContext(ctx)
	var sender controller.Sender
	var events <-chan types.Event

	if server != "" {
		c := apiclient.New(server, nil)
		ev, errc, err := c.Events(gctx)
		if err != nil {
			return err
		}
		g.Go(func() error {
			select {
			case err := <-errc:
				return err
			case <-gctx.Done():
				return nil
			}
		})
		sender, events = c, ev
	} else {
		provider, err := newProvider(cfg)
		if err != nil {
			return err
		}
		pub := worker.NewChanPublisher(256)
		w := worker.New(provider, worker.Config{
			ModelID:           cfg.ModelID,
			Precision:         cfg.Precision,
			Device:            cfg.Device,
			MaxNewTokens:      cfg.MaxNewTokens,
			ContextWindowSize: cfg.ContextWindowSize,
			Logger:            log,
			Publisher:         pub,
		})
		// Unblock publishes once nobody reads events anymore.
		go func() {
			<-gctx.Done()
			pub.Close()
		}()
		g.Go(func() error {
			if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		sender, events = w, pub.Events()
	}

	ctl := controller.New(sender, transcript.New(), controller.Options{Window: cfg.ContextWindowSize, Logger: log})
	view := &terminalView{out: out, showThinking: showThinking}
	ctl.OnChange(view.render)
	g.Go(func() error {
		err := ctl.Run(gctx, events)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case err == nil && gctx.Err() == nil:
			return errStreamClosed
		}
		return err
	})

	fmt.Fprintln(out, chatHelp)
	if server != "" {
		st, err := apiclient.New(server, nil).Status(gctx)
		if err == nil {
			ctl.Handle(statusEvent(st))
		}
		if err != nil || st.Status == types.StatusInitializing {
			if err := ctl.Load(); err != nil {
				return err
			}
		}
	} else if err := ctl.Load(); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-gctx.Done():
				return
			}
		}
	}()

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return errQuit
				}
				if err := view.command(ctl, line); err != nil {
					return err
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

var (
	errQuit         = errors.New("quit")
	errStreamClosed = errors.New("event stream closed by server")
)

// statusEvent turns a polled server status into the event a controller would
// have seen had it been connected from the start.
func statusEvent(st types.StatusResponse) types.Event {
	switch st.Status {
	case types.StatusReady:
		return types.Event{Status: types.EventReady}
	case types.StatusError:
		return types.Event{Status: types.EventError, Message: st.LastError}
	case types.StatusLoading:
		return types.Event{Status: types.EventLoading}
	}
	return types.Event{}
}

// terminalView prints controller state changes as streaming text.
type terminalView struct {
	out          io.Writer
	showThinking bool

	mu        sync.Mutex
	status    types.SessionStatus
	genID     string
	thought   string // reasoning text already on screen
	response  string // answer text already on screen
	progress  string
	lastError string
}

func (v *terminalView) render(s controller.State) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s.Progress != nil {
		if p := fmt.Sprintf("%s %d%%", s.Progress.File, s.Progress.Percent); p != v.progress {
			v.progress = p
			fmt.Fprintf(v.out, "\rloading %s", p)
		}
	}
	if s.Status != v.status {
		v.status = s.Status
		switch s.Status {
		case types.StatusReady:
			fmt.Fprintln(v.out, "\nready.")
			fmt.Fprint(v.out, "> ")
		case types.StatusLoading:
			fmt.Fprintln(v.out, "loading model...")
		}
	}
	if s.Error != "" && s.Error != v.lastError {
		v.lastError = s.Error
		fmt.Fprintf(v.out, "\nerror: %s\n", s.Error)
	}

	g := s.Generation
	switch {
	case g.Active && g.ID != v.genID:
		v.genID, v.thought, v.response = g.ID, "", ""
	case !g.Active && v.genID != "":
		v.genID = ""
		fmt.Fprint(v.out, "\n> ")
		return
	}
	if !g.Active {
		return
	}
	if v.showThinking && v.response == "" && g.Thought != v.thought {
		if v.thought == "" {
			fmt.Fprint(v.out, "[thinking] ")
		}
		v.thought = v.advance(v.thought, g.Thought)
	}
	if g.Response != v.response {
		if v.response == "" && v.thought != "" {
			fmt.Fprint(v.out, "\n\n")
		}
		v.response = v.advance(v.response, g.Response)
	}
}

// advance prints whatever moves the screen from shown to next and returns
// next. Reasoning is trimmed once its block closes, so a next that only
// drops surrounding whitespace prints nothing. Any other rewrite is
// reprinted on a fresh line.
func (v *terminalView) advance(shown, next string) string {
	switch core := strings.TrimLeftFunc(shown, unicode.IsSpace); {
	case strings.HasPrefix(next, shown):
		fmt.Fprint(v.out, next[len(shown):])
	case strings.HasPrefix(next, core):
		fmt.Fprint(v.out, next[len(core):])
	case strings.HasPrefix(core, next):
	default:
		fmt.Fprint(v.out, "\n", next)
	}
	return next
}

func (v *terminalView) command(ctl *controller.Controller, line string) error {
	switch strings.TrimSpace(line) {
	case "":
		return nil
	case "/quit", "/exit":
		return errQuit
	case "/stop":
		return ctl.Interrupt()
	case "/reset":
		if err := ctl.Reset(); err != nil {
			return err
		}
		fmt.Fprint(v.out, "conversation cleared.\n> ")
		return nil
	case "/help":
		fmt.Fprintln(v.out, chatHelp)
		return nil
	}
	if _, err := ctl.Submit(line); err != nil {
		switch {
		case errors.Is(err, controller.ErrNotReady), errors.Is(err, controller.ErrBusy):
			fmt.Fprintf(v.out, "%v\n> ", err)
			return nil
		}
		return err
	}
	return nil
}

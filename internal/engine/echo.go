package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"thinkchat/pkg/types"
)

// Echo is a deterministic provider for demos and tests. It reports two
// synthetic downloads and answers with a short reasoning block followed by
// the last user message.
type Echo struct {
	delay time.Duration
}

func NewEcho(delay time.Duration) *Echo { return &Echo{delay: delay} }

func (e *Echo) Name() string { return ProviderEcho }

func (e *Echo) Probe(ctx context.Context) (AdapterInfo, error) {
	return AdapterInfo{Available: true, Name: ProviderEcho, Detail: "deterministic echo"}, nil
}

func (e *Echo) LoadTokenizer(ctx context.Context, modelID string, progress ProgressFunc) (Tokenizer, error) {
	if err := e.download(ctx, "tokenizer.json", 4096, progress); err != nil {
		return nil, err
	}
	return chatTokenizer{}, nil
}

func (e *Echo) LoadModel(ctx context.Context, modelID string, cfg ModelConfig, progress ProgressFunc) (Model, error) {
	precision := cfg.Precision
	if precision == "" {
		precision = "q4f16"
	}
	if err := e.download(ctx, fmt.Sprintf("onnx/model_%s.onnx", precision), 8192, progress); err != nil {
		return nil, err
	}
	return &echoModel{delay: e.delay}, nil
}

// download reports total in two equal steps.
func (e *Echo) download(ctx context.Context, asset string, total int64, progress ProgressFunc) error {
	for _, n := range []int64{0, total / 2, total} {
		if err := sleepCtx(ctx, e.delay); err != nil {
			return err
		}
		if progress != nil {
			progress(Progress{Asset: asset, Loaded: n, Total: total})
		}
	}
	return nil
}

type echoModel struct {
	delay time.Duration
}

func (m *echoModel) Generate(ctx context.Context, in Inputs, params GenerateParams, streamer Streamer, stop *StoppingCriteria) (Output, error) {
	col := newCollector(streamer, stop, params.MaxNewTokens)
	for _, piece := range echoPieces(EchoReply(in)) {
		if err := sleepCtx(ctx, m.delay); err != nil {
			return Output{}, err
		}
		if !col.push(piece) {
			break
		}
	}
	return col.output(len(in.Turns)), nil
}

// EchoReply is the full text the echo provider produces for in.
func EchoReply(in Inputs) string {
	if len(in.Turns) == 0 {
		return in.Prompt
	}
	last := ""
	for i := len(in.Turns) - 1; i >= 0; i-- {
		if in.Turns[i].Role == types.RoleUser {
			last = in.Turns[i].Content
			break
		}
	}
	return fmt.Sprintf("<think>\nThe user wrote %d characters.\n</think>\n\nYou said: %s", len(last), last)
}

// echoPieces splits s into word-sized tokens that keep their trailing
// whitespace. Markers are split in two so they cross token boundaries.
func echoPieces(s string) []string {
	var out []string
	for _, w := range strings.SplitAfter(s, " ") {
		if w == "" {
			continue
		}
		for _, marker := range []string{"<think>", "</think>"} {
			if i := strings.Index(w, marker); i >= 0 {
				cut := i + len(marker)/2
				out = append(out, w[:cut])
				w = w[cut:]
			}
		}
		out = append(out, w)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

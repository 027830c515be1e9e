package engine

import (
	"context"

	"thinkchat/pkg/types"
)

// Token is one generated unit. Remote backends do not expose vocabulary ids,
// so ID is the position in the output sequence for them.
type Token struct {
	ID      int
	Text    string
	Special bool
}

// Sequence is an ordered run of tokens.
type Sequence []Token

// Inputs are the encoded prompt handed to Model.Generate. Providers that
// speak a chat protocol use Turns; raw completion backends use Prompt.
type Inputs struct {
	Turns  []types.ChatTurn
	Prompt string
	Tokens Sequence
}

// TemplateOptions controls chat template rendering.
type TemplateOptions struct {
	AddGenerationPrompt bool
}

// DecodeOptions controls batch decoding.
type DecodeOptions struct {
	SkipSpecialTokens bool
}

// Cache is an opaque incremental key/value cache owned by the caller between
// generations. Its concrete type is provider specific.
type Cache any

// GenerateParams are per-call generation parameters.
type GenerateParams struct {
	MaxNewTokens  int
	DoSample      bool
	Temperature   float32
	PastKeyValues Cache
}

// Output is the result of one generation. Sequences[0] starts with the
// generation header followed by the generated tokens.
type Output struct {
	Sequences    []Sequence
	Cache        Cache
	FinishReason string
}

// Streamer receives incremental output. OnToken is called once per generated
// token, OnText with the decoded delta for that token.
type Streamer interface {
	OnToken(Token)
	OnText(string)
}

// Tokenizer converts between chat turns and model inputs.
type Tokenizer interface {
	ApplyChatTemplate(turns []types.ChatTurn, opts TemplateOptions) (Inputs, error)
	Encode(text string) (Inputs, error)
	BatchDecode(seqs []Sequence, opts DecodeOptions) ([]string, error)
}

// Model runs autoregressive generation. Implementations poll stop once per
// token and return the partial output with a nil error when it is set.
// streamer may be nil.
type Model interface {
	Generate(ctx context.Context, in Inputs, params GenerateParams, streamer Streamer, stop *StoppingCriteria) (Output, error)
}

// Progress reports bytes received for one downloaded asset.
type Progress struct {
	Asset  string
	Loaded int64
	Total  int64
}

// ProgressFunc is invoked from the loading goroutine.
type ProgressFunc func(Progress)

// ModelConfig carries load-time options.
type ModelConfig struct {
	Precision         string
	Device            string
	MaxNewTokens      int
	ContextWindowSize int
}

// AdapterInfo describes the compute capability found by Probe.
type AdapterInfo struct {
	Available bool
	Name      string
	Detail    string
}

// Provider is an inference backend.
type Provider interface {
	Name() string
	Probe(ctx context.Context) (AdapterInfo, error)
	LoadTokenizer(ctx context.Context, modelID string, progress ProgressFunc) (Tokenizer, error)
	LoadModel(ctx context.Context, modelID string, cfg ModelConfig, progress ProgressFunc) (Model, error)
}

// Finish reasons reported in Output.
const (
	FinishStop        = "stop"
	FinishLength      = "length"
	FinishInterrupted = "interrupted"
)

// collector accumulates the output sequence for a provider and forwards each
// piece to the streamer. It enforces the interrupt flag and the token ceiling.
type collector struct {
	streamer Streamer
	stop     *StoppingCriteria
	limit    int
	n        int
	seq      Sequence
}

func newCollector(streamer Streamer, stop *StoppingCriteria, limit int) *collector {
	return &collector{streamer: streamer, stop: stop, limit: limit, seq: header()}
}

// push records one generated piece. It returns false when the provider
// should stop producing output.
func (c *collector) push(text string) bool {
	if c.done() {
		return false
	}
	tok := Token{ID: len(c.seq), Text: text}
	c.seq = append(c.seq, tok)
	c.n++
	if c.streamer != nil {
		c.streamer.OnToken(tok)
		if text != "" {
			c.streamer.OnText(text)
		}
	}
	return !c.done()
}

func (c *collector) done() bool {
	return c.stop.Interrupted() || (c.limit > 0 && c.n >= c.limit)
}

func (c *collector) output(cache Cache) Output {
	reason := FinishStop
	switch {
	case c.stop.Interrupted():
		reason = FinishInterrupted
	case c.limit > 0 && c.n >= c.limit:
		reason = FinishLength
	}
	seq := c.seq
	if reason == FinishStop {
		seq = append(seq, Token{ID: len(seq), Text: imEnd, Special: true})
	}
	return Output{Sequences: []Sequence{seq}, Cache: cache, FinishReason: reason}
}

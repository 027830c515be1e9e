//go:build llama

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// Llama runs GGUF models in-process through go-llama.cpp.
type Llama struct {
	dir     string
	resolve func(dir, id string) (string, error)
	ctxSize int
	threads int
}

func NewLlama(dir string, resolve func(dir, id string) (string, error), ctxSize, threads int) *Llama {
	return &Llama{dir: dir, resolve: resolve, ctxSize: ctxSize, threads: threads}
}

func (l *Llama) Name() string { return ProviderLlama }

// Probe reports the host resources; in-process inference runs on the CPU.
func (l *Llama) Probe(ctx context.Context) (AdapterInfo, error) {
	host, err := ProbeHost(ctx)
	if err != nil {
		return AdapterInfo{Name: ProviderLlama, Detail: err.Error()}, err
	}
	return AdapterInfo{Available: true, Name: ProviderLlama, Detail: host.String()}, nil
}

// LoadTokenizer renders ChatML; the vocabulary lives in the model file.
func (l *Llama) LoadTokenizer(ctx context.Context, modelID string, progress ProgressFunc) (Tokenizer, error) {
	return chatTokenizer{}, nil
}

func (l *Llama) LoadModel(ctx context.Context, modelID string, cfg ModelConfig, progress ProgressFunc) (Model, error) {
	path, err := l.path(modelID)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	m, err := llama.New(path, llama.SetContext(zn(l.ctxSize, 2048)))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	// The file is mapped in one step; report it as a single finished asset.
	if progress != nil {
		progress(Progress{Asset: filepath.Base(path), Loaded: fi.Size(), Total: fi.Size()})
	}
	return &llamaModel{model: m, threads: l.threads}, nil
}

func (l *Llama) path(modelID string) (string, error) {
	if strings.TrimSpace(modelID) == "" {
		return "", errors.New("model id is empty")
	}
	if l.resolve == nil {
		return modelID, nil
	}
	return l.resolve(l.dir, modelID)
}

type llamaModel struct {
	model   *llama.LLama
	threads int
}

// Generate renders the chat template itself and predicts. The token callback
// returns false to stop prediction once interrupted or canceled.
func (m *llamaModel) Generate(ctx context.Context, in Inputs, params GenerateParams, streamer Streamer, stop *StoppingCriteria) (Output, error) {
	if m.model == nil {
		return Output{}, errors.New("llama model not initialized")
	}
	col := newCollector(streamer, stop, params.MaxNewTokens)
	m.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		return col.push(tok)
	})
	prompt := in.Prompt
	if len(in.Turns) > 0 {
		prompt = RenderChatML(in.Turns, true)
	}
	opts := []llama.PredictOption{
		llama.SetTokens(max(1, params.MaxNewTokens)),
		llama.SetThreads(max(1, m.threads)),
		llama.SetStopWords(imEnd),
	}
	if params.DoSample {
		opts = append(opts, llama.SetTemperature(zf(params.Temperature, llama.DefaultOptions.Temperature)))
	} else {
		opts = append(opts, llama.SetTemperature(0))
	}
	if _, err := m.model.Predict(prompt, opts...); err != nil {
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		if !stop.Interrupted() {
			return Output{}, err
		}
	}
	return col.output(params.PastKeyValues), nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"thinkchat/pkg/types"
)

const defaultOllamaHost = "http://127.0.0.1:11434"

// Ollama serves models through a local or remote Ollama daemon. Model ids are
// Ollama tags such as "qwen3:0.6b".
type Ollama struct {
	host   string
	client *api.Client
}

// NewOllama creates a provider for the daemon at host. An empty host selects
// the default local address.
func NewOllama(host string) (*Ollama, error) {
	if strings.TrimSpace(host) == "" {
		host = defaultOllamaHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	return &Ollama{host: host, client: api.NewClient(u, &http.Client{})}, nil
}

func (o *Ollama) Name() string { return ProviderOllama }

func (o *Ollama) Probe(ctx context.Context) (AdapterInfo, error) {
	if err := o.client.Heartbeat(ctx); err != nil {
		return AdapterInfo{Name: ProviderOllama, Detail: err.Error()},
			ErrDependencyUnavailable(fmt.Sprintf("ollama not reachable at %s: %v", o.host, err))
	}
	detail := o.host
	if v, err := o.client.Version(ctx); err == nil && v != "" {
		detail = fmt.Sprintf("%s (ollama %s)", o.host, v)
	}
	return AdapterInfo{Available: true, Name: ProviderOllama, Detail: detail}, nil
}

// LoadTokenizer reads the model's template metadata, pulling the model first
// when the daemon does not have it yet.
func (o *Ollama) LoadTokenizer(ctx context.Context, modelID string, progress ProgressFunc) (Tokenizer, error) {
	resp, err := o.client.Show(ctx, &api.ShowRequest{Model: modelID})
	var se api.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		if err := o.pull(ctx, modelID, progress); err != nil {
			return nil, err
		}
		resp, err = o.client.Show(ctx, &api.ShowRequest{Model: modelID})
	}
	if err != nil {
		return nil, fmt.Errorf("show %s: %w", modelID, err)
	}
	return chatTokenizer{template: resp.Template}, nil
}

// LoadModel ensures all layers are present and loads the model into memory.
func (o *Ollama) LoadModel(ctx context.Context, modelID string, cfg ModelConfig, progress ProgressFunc) (Model, error) {
	if err := o.pull(ctx, modelID, progress); err != nil {
		return nil, err
	}
	// An empty prompt only loads the model.
	err := o.client.Generate(ctx, &api.GenerateRequest{Model: modelID}, func(api.GenerateResponse) error { return nil })
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", modelID, err)
	}
	return &ollamaModel{client: o.client, id: modelID}, nil
}

func (o *Ollama) pull(ctx context.Context, modelID string, progress ProgressFunc) error {
	err := o.client.Pull(ctx, &api.PullRequest{Model: modelID}, func(r api.ProgressResponse) error {
		if r.Digest != "" && progress != nil {
			progress(Progress{Asset: r.Digest, Loaded: r.Completed, Total: r.Total})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pull %s: %w", modelID, err)
	}
	return nil
}

type ollamaModel struct {
	client *api.Client
	id     string
}

// Generate streams a chat completion when turns are given and a raw
// completion otherwise. Raw completions carry the returned context as cache.
func (m *ollamaModel) Generate(ctx context.Context, in Inputs, params GenerateParams, streamer Streamer, stop *StoppingCriteria) (Output, error) {
	col := newCollector(streamer, stop, params.MaxNewTokens)
	opts := map[string]any{}
	if params.MaxNewTokens > 0 {
		opts["num_predict"] = params.MaxNewTokens
	}
	switch {
	case !params.DoSample:
		opts["temperature"] = 0
	case params.Temperature > 0:
		opts["temperature"] = params.Temperature
	}
	stream := true
	cache := params.PastKeyValues

	var err error
	if len(in.Turns) > 0 {
		req := &api.ChatRequest{
			Model:    m.id,
			Messages: ollamaMessages(in.Turns),
			Stream:   &stream,
			Options:  opts,
		}
		err = m.client.Chat(ctx, req, func(r api.ChatResponse) error {
			if r.Message.Content != "" && !col.push(r.Message.Content) {
				return errStopped
			}
			return nil
		})
	} else {
		prior, _ := params.PastKeyValues.([]int)
		req := &api.GenerateRequest{
			Model:   m.id,
			Prompt:  in.Prompt,
			Raw:     true,
			Context: prior,
			Stream:  &stream,
			Options: opts,
		}
		err = m.client.Generate(ctx, req, func(r api.GenerateResponse) error {
			if r.Done && len(r.Context) > 0 {
				cache = r.Context
			}
			if r.Response != "" && !col.push(r.Response) {
				return errStopped
			}
			return nil
		})
	}
	if err != nil && !errors.Is(err, errStopped) {
		return Output{}, err
	}
	return col.output(cache), nil
}

func ollamaMessages(turns []types.ChatTurn) []api.Message {
	msgs := make([]api.Message, len(turns))
	for i, t := range turns {
		msgs[i] = api.Message{Role: string(t.Role), Content: t.Content}
	}
	return msgs
}

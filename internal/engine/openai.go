package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"thinkchat/pkg/types"
)

const defaultOpenAIURL = "http://127.0.0.1:8081"

// OpenAI talks to any server implementing the OpenAI chat completions API,
// such as llama.cpp's llama-server or vLLM.
type OpenAI struct {
	baseURL string
	client  *goopenai.Client
}

// NewOpenAI creates a provider for the server at baseURL (without the /v1
// suffix). apiKey may be empty for local servers.
func NewOpenAI(baseURL, apiKey string) *OpenAI {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/v1") + "/v1"
	return &OpenAI{baseURL: baseURL, client: goopenai.NewClientWithConfig(cfg)}
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

func (o *OpenAI) Probe(ctx context.Context) (AdapterInfo, error) {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return AdapterInfo{Name: ProviderOpenAI, Detail: err.Error()},
			ErrDependencyUnavailable(fmt.Sprintf("openai server not reachable at %s: %v", o.baseURL, err))
	}
	return AdapterInfo{
		Available: true,
		Name:      ProviderOpenAI,
		Detail:    fmt.Sprintf("%s (%d models)", o.baseURL, len(list.Models)),
	}, nil
}

func (o *OpenAI) LoadTokenizer(ctx context.Context, modelID string, progress ProgressFunc) (Tokenizer, error) {
	return chatTokenizer{}, nil
}

// LoadModel verifies the server lists modelID. Servers that host a single
// model under another name are accepted when they list exactly one model.
func (o *OpenAI) LoadModel(ctx context.Context, modelID string, cfg ModelConfig, progress ProgressFunc) (Model, error) {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	found := len(list.Models) == 1
	for _, m := range list.Models {
		if m.ID == modelID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrModelNotFound(modelID)
	}
	return &openAIModel{client: o.client, id: modelID}, nil
}

type openAIModel struct {
	client *goopenai.Client
	id     string
}

func (m *openAIModel) Generate(ctx context.Context, in Inputs, params GenerateParams, streamer Streamer, stop *StoppingCriteria) (Output, error) {
	turns := in.Turns
	if len(turns) == 0 {
		turns = []types.ChatTurn{{Role: types.RoleUser, Content: in.Prompt}}
	}
	msgs := make([]goopenai.ChatCompletionMessage, len(turns))
	for i, t := range turns {
		msgs[i] = goopenai.ChatCompletionMessage{Role: string(t.Role), Content: t.Content}
	}
	req := goopenai.ChatCompletionRequest{
		Model:     m.id,
		Messages:  msgs,
		MaxTokens: params.MaxNewTokens,
		Stream:    true,
	}
	if params.DoSample {
		req.Temperature = params.Temperature
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return Output{}, fmt.Errorf("create stream: %w", err)
	}
	defer stream.Close()

	col := newCollector(streamer, stop, params.MaxNewTokens)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Output{}, fmt.Errorf("receive: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		if !col.push(resp.Choices[0].Delta.Content) {
			break
		}
	}
	return col.output(params.PastKeyValues), nil
}

//go:build !llama

package engine

import "context"

// Llama is a stub compiled when the 'llama' build tag is not set. It keeps
// default builds CGO-free and reports the capability as unavailable.
type Llama struct {
	dir string
}

func NewLlama(dir string, resolve func(dir, id string) (string, error), ctxSize, threads int) *Llama {
	return &Llama{dir: dir}
}

func (l *Llama) Name() string { return ProviderLlama }

func (l *Llama) Probe(ctx context.Context) (AdapterInfo, error) {
	return AdapterInfo{Name: ProviderLlama, Detail: "llama support not built"},
		ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

func (l *Llama) LoadTokenizer(ctx context.Context, modelID string, progress ProgressFunc) (Tokenizer, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

func (l *Llama) LoadModel(ctx context.Context, modelID string, cfg ModelConfig, progress ProgressFunc) (Model, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

package engine

import (
	"fmt"
	"strings"
	"time"
)

// Provider names accepted by NewProvider.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderLlama  = "llama"
	ProviderEcho   = "echo"
)

// Options configures provider construction. Fields irrelevant to a given
// provider are ignored.
type Options struct {
	// URL is the backend base URL for ollama/openai.
	URL    string
	APIKey string
	// ModelsDir holds *.gguf files for the in-process provider.
	ModelsDir   string
	Threads     int
	ContextSize int
	// Resolve maps a model id to a local file for the in-process provider.
	Resolve func(dir, id string) (string, error)
	// EchoDelay spaces tokens of the echo provider.
	EchoDelay time.Duration
}

// NewProvider builds the named provider. An empty name selects ollama.
func NewProvider(name string, opts Options) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProviderOllama:
		return NewOllama(opts.URL)
	case ProviderOpenAI:
		return NewOpenAI(opts.URL, opts.APIKey), nil
	case ProviderLlama:
		return NewLlama(opts.ModelsDir, opts.Resolve, opts.ContextSize, opts.Threads), nil
	case ProviderEcho:
		return NewEcho(opts.EchoDelay), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr              string   `json:"addr" yaml:"addr" toml:"addr"`
	Provider          string   `json:"provider" yaml:"provider" toml:"provider"`
	ProviderURL       string   `json:"provider_url" yaml:"provider_url" toml:"provider_url"`
	APIKey            string   `json:"api_key" yaml:"api_key" toml:"api_key"`
	ModelID           string   `json:"model_id" yaml:"model_id" toml:"model_id"`
	ModelsDir         string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Precision         string   `json:"precision" yaml:"precision" toml:"precision"`
	Device            string   `json:"device" yaml:"device" toml:"device"`
	Threads           int      `json:"threads" yaml:"threads" toml:"threads"`
	ContextSize       int      `json:"context_size" yaml:"context_size" toml:"context_size"`
	MaxNewTokens      int      `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`
	ContextWindowSize int      `json:"context_window_size" yaml:"context_window_size" toml:"context_window_size"`
	LogLevel          string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFile           string   `json:"log_file" yaml:"log_file" toml:"log_file"`
	TraceFile         string   `json:"trace_file" yaml:"trace_file" toml:"trace_file"`
	CORSOrigins       []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes      int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	SubscriberBuffer  int      `json:"subscriber_buffer" yaml:"subscriber_buffer" toml:"subscriber_buffer"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

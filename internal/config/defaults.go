package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"thinkchat/internal/common/fsutil"
)

// Defaults returns the configuration used when nothing is specified.
func Defaults() Config {
	return Config{
		Addr:              ":8080",
		Provider:          "ollama",
		ModelID:           "qwen3:0.6b",
		ModelsDir:         "~/models/llm",
		Precision:         "q4f16",
		Device:            "gpu",
		ContextSize:       4096,
		MaxNewTokens:      2048,
		ContextWindowSize: 10,
		LogLevel:          "info",
		MaxBodyBytes:      1 << 20,
		SubscriberBuffer:  256,
	}
}

// ApplyDefaults fills zero fields of cfg from Defaults and expands '~' in
// path fields.
func ApplyDefaults(cfg Config) (Config, error) {
	d := Defaults()
	setStr(&cfg.Addr, d.Addr)
	setStr(&cfg.Provider, d.Provider)
	setStr(&cfg.ModelID, d.ModelID)
	setStr(&cfg.ModelsDir, d.ModelsDir)
	setStr(&cfg.Precision, d.Precision)
	setStr(&cfg.Device, d.Device)
	setStr(&cfg.LogLevel, d.LogLevel)
	setInt(&cfg.ContextSize, d.ContextSize)
	setInt(&cfg.MaxNewTokens, d.MaxNewTokens)
	setInt(&cfg.ContextWindowSize, d.ContextWindowSize)
	setInt(&cfg.SubscriberBuffer, d.SubscriberBuffer)
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = d.MaxBodyBytes
	}
	for _, p := range []*string{&cfg.ModelsDir, &cfg.LogFile, &cfg.TraceFile} {
		exp, err := fsutil.ExpandHome(*p)
		if err != nil {
			return cfg, err
		}
		*p = exp
	}
	return cfg, nil
}

// Environment variables read by FromEnv.
const envPrefix = "THINKCHAT_"

// FromEnv overrides cfg with THINKCHAT_* variables that are set and
// non-empty, e.g. THINKCHAT_MODEL_ID or THINKCHAT_MAX_NEW_TOKENS.
func FromEnv(cfg Config) (Config, error) {
	strs := map[string]*string{
		"ADDR":         &cfg.Addr,
		"PROVIDER":     &cfg.Provider,
		"PROVIDER_URL": &cfg.ProviderURL,
		"API_KEY":      &cfg.APIKey,
		"MODEL_ID":     &cfg.ModelID,
		"MODELS_DIR":   &cfg.ModelsDir,
		"PRECISION":    &cfg.Precision,
		"DEVICE":       &cfg.Device,
		"LOG_LEVEL":    &cfg.LogLevel,
		"LOG_FILE":     &cfg.LogFile,
		"TRACE_FILE":   &cfg.TraceFile,
	}
	for k, p := range strs {
		if v := strings.TrimSpace(os.Getenv(envPrefix + k)); v != "" {
			*p = v
		}
	}
	ints := map[string]*int{
		"THREADS":             &cfg.Threads,
		"CONTEXT_SIZE":        &cfg.ContextSize,
		"MAX_NEW_TOKENS":      &cfg.MaxNewTokens,
		"CONTEXT_WINDOW_SIZE": &cfg.ContextWindowSize,
		"SUBSCRIBER_BUFFER":   &cfg.SubscriberBuffer,
	}
	for k, p := range ints {
		v := strings.TrimSpace(os.Getenv(envPrefix + k))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%s%s: %w", envPrefix, k, err)
		}
		*p = n
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "MAX_BODY_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("%sMAX_BODY_BYTES: %w", envPrefix, err)
		}
		cfg.MaxBodyBytes = n
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "CORS_ORIGINS")); v != "" {
		cfg.CORSOrigins = SplitCSV(v)
	}
	return cfg, nil
}

// SplitCSV splits a comma-separated list, trimming blanks.
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setStr(p *string, def string) {
	if strings.TrimSpace(*p) == "" {
		*p = def
	}
}

func setInt(p *int, def int) {
	if *p <= 0 {
		*p = def
	}
}

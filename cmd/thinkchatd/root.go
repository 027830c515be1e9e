package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"thinkchat/internal/config"
	"thinkchat/internal/engine"
	"thinkchat/internal/registry"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "thinkchatd",
		Short:         "Reasoning chat worker with streamed thinking and answers",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before reading THINKCHAT_* variables")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error, off")

	root.AddCommand(newServeCmd(opts), newChatCmd(opts))
	return root
}

// modelFlags are shared by serve and chat.
func addModelFlags(fs *pflag.FlagSet) {
	fs.String("provider", "", "Inference provider: ollama, openai, llama, echo")
	fs.String("provider-url", "", "Provider base URL")
	fs.String("model", "", "Model id to load")
	fs.String("models-dir", "", "Directory of *.gguf files for the llama provider")
	fs.String("precision", "", "Requested weight precision")
	fs.String("device", "", "Requested compute device")
	fs.Int("max-new-tokens", 0, "Maximum tokens per response")
	fs.Int("window", 0, "Number of recent turns sent with each request")
}

// loadConfig layers the config file, dotenv/THINKCHAT_* variables, and
// explicitly set flags, then applies defaults.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	var cfg config.Config
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", opts.envFile, err)
		}
	}
	if opts.configPath != "" {
		c, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	cfg, err := config.FromEnv(cfg)
	if err != nil {
		return cfg, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	applyFlags(cmd.Flags(), &cfg)
	return config.ApplyDefaults(cfg)
}

func applyFlags(fs *pflag.FlagSet, cfg *config.Config) {
	str := func(name string, dst *string) {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			*dst, _ = fs.GetInt(name)
		}
	}
	str("addr", &cfg.Addr)
	str("provider", &cfg.Provider)
	str("provider-url", &cfg.ProviderURL)
	str("model", &cfg.ModelID)
	str("models-dir", &cfg.ModelsDir)
	str("precision", &cfg.Precision)
	str("device", &cfg.Device)
	num("max-new-tokens", &cfg.MaxNewTokens)
	num("window", &cfg.ContextWindowSize)
	if fs.Lookup("cors-origins") != nil && fs.Changed("cors-origins") {
		v, _ := fs.GetString("cors-origins")
		cfg.CORSOrigins = config.SplitCSV(v)
	}
}

// newProvider builds the configured inference provider.
func newProvider(cfg config.Config) (engine.Provider, error) {
	return engine.NewProvider(strings.ToLower(cfg.Provider), engine.Options{
		URL:         cfg.ProviderURL,
		APIKey:      cfg.APIKey,
		ModelsDir:   cfg.ModelsDir,
		Threads:     cfg.Threads,
		ContextSize: cfg.ContextSize,
		Resolve:     registry.Resolve,
	})
}

package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyDefaults_FillsZeroFields(t *testing.T) {
	cfg, err := ApplyDefaults(Config{ModelsDir: "/m"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	d := Defaults()
	if cfg.Addr != d.Addr || cfg.Provider != "ollama" || cfg.ModelID != "qwen3:0.6b" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.MaxNewTokens != 2048 || cfg.ContextWindowSize != 10 || cfg.Precision != "q4f16" {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if cfg.ModelsDir != "/m" {
		t.Fatalf("explicit models dir overwritten: %q", cfg.ModelsDir)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	in := Config{Addr: ":1", Provider: "echo", MaxNewTokens: 5, ContextWindowSize: 2, MaxBodyBytes: 7}
	cfg, err := ApplyDefaults(in)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Addr != ":1" || cfg.Provider != "echo" || cfg.MaxNewTokens != 5 || cfg.ContextWindowSize != 2 || cfg.MaxBodyBytes != 7 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestApplyDefaults_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg, err := ApplyDefaults(Config{LogFile: "~/logs/thinkchat.log"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if want := filepath.Join(home, "logs", "thinkchat.log"); cfg.LogFile != want {
		t.Fatalf("log file = %q want %q", cfg.LogFile, want)
	}
	if want := filepath.Join(home, "models", "llm"); cfg.ModelsDir != want {
		t.Fatalf("models dir = %q want %q", cfg.ModelsDir, want)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("THINKCHAT_ADDR", ":5555")
	t.Setenv("THINKCHAT_MODEL_ID", "  llama3  ")
	t.Setenv("THINKCHAT_MAX_NEW_TOKENS", "64")
	t.Setenv("THINKCHAT_CORS_ORIGINS", "http://a, ,http://b")
	t.Setenv("THINKCHAT_MAX_BODY_BYTES", "2048")
	cfg, err := FromEnv(Config{Addr: ":1", Provider: "echo"})
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Addr != ":5555" || cfg.ModelID != "llama3" || cfg.MaxNewTokens != 64 || cfg.Provider != "echo" || cfg.MaxBodyBytes != 2048 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "http://a" || cfg.CORSOrigins[1] != "http://b" {
		t.Fatalf("cors: %v", cfg.CORSOrigins)
	}
}

func TestFromEnv_BadNumbers(t *testing.T) {
	for _, key := range []string{
		"THINKCHAT_CONTEXT_WINDOW_SIZE",
		"THINKCHAT_SUBSCRIBER_BUFFER",
		"THINKCHAT_MAX_BODY_BYTES",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "ten")
			_, err := FromEnv(Config{})
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("want error naming %s, got %v", key, err)
			}
		})
	}
}

func TestApplyDefaults_BadHome(t *testing.T) {
	t.Setenv("HOME", "")
	t.Setenv("USERPROFILE", "")
	if _, err := ApplyDefaults(Config{LogFile: "~/thinkchat.log"}); err == nil {
		t.Fatalf("expected error expanding ~ without a home directory")
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := SplitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	return home
}

func TestExpandHome(t *testing.T) {
	home := setHome(t)
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	p, err := ExpandHome("~")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p != home {
		t.Fatalf("expected %q, got %q", home, p)
	}
	exp, err := ExpandHome("~/models")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if want := filepath.Join(home, "models"); exp != want {
		t.Fatalf("expected %q, got %q", want, exp)
	}
}

func TestResolvePath(t *testing.T) {
	home := setHome(t)
	got, err := ResolvePath("~/a/../b")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := filepath.Join(home, "b"); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	rel, err := ResolvePath("x")
	if err != nil || !filepath.IsAbs(rel) {
		t.Fatalf("relative path not made absolute: %q err=%v", rel, err)
	}
	if _, err := ResolvePath(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	if PathExists(p) {
		t.Fatalf("missing file reported as existing")
	}
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !PathExists(p) {
		t.Fatalf("file not found")
	}
}

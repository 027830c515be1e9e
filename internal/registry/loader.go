// Package registry discovers local GGUF model files for the in-process
// llama provider.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"thinkchat/internal/common/fsutil"
	"thinkchat/internal/engine"
	"thinkchat/pkg/types"
)

const ggufExt = ".gguf"

// GGUFScanner lists *.gguf files in a directory.
type GGUFScanner struct{}

func NewGGUFScanner() GGUFScanner { return GGUFScanner{} }

// Scan builds models from filenames. ID is the full filename (including
// extension); Path is the absolute file path.
func (GGUFScanner) Scan(dir string) ([]types.Model, error) {
	abs, err := fsutil.ResolvePath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !isGGUF(name) {
			continue
		}
		models = append(models, types.Model{
			ID:   name,
			Name: strings.TrimSuffix(name, filepath.Ext(name)),
			Path: filepath.Join(abs, name),
		})
	}
	return models, nil
}

// LoadDir scans dir with the default scanner.
func LoadDir(dir string) ([]types.Model, error) {
	return NewGGUFScanner().Scan(dir)
}

// Resolve maps a model id to a file. An id that already names an existing
// .gguf file is used as is; otherwise dir is scanned and the id is matched
// against the filename with or without its extension, case-insensitively.
func Resolve(dir, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", engine.ErrModelNotFound(id)
	}
	if isGGUF(id) {
		if p, err := fsutil.ResolvePath(id); err == nil && fsutil.PathExists(p) {
			return p, nil
		}
	}
	models, err := LoadDir(dir)
	if err != nil {
		return "", err
	}
	for _, m := range models {
		if strings.EqualFold(m.ID, id) || strings.EqualFold(m.Name, id) {
			return m.Path, nil
		}
	}
	return "", engine.ErrModelNotFound(id)
}

func isGGUF(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ggufExt)
}

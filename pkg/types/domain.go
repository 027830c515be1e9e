package types

import "fmt"

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ChatTurn is one message in a conversation. Turns are values; once appended
// to a transcript they are never mutated.
type ChatTurn struct {
	// Author of the turn.
	// example: user
	Role Role `json:"role" example:"user"`
	// Raw text content.
	// example: What is 2+2?
	Content string `json:"content" example:"What is 2+2?"`
}

// GenerationRequest is the ordered window of recent turns sent to the worker.
type GenerationRequest struct {
	ID    string
	Turns []ChatTurn
}

// Validate checks roles and that a non-empty request ends with a user turn.
func (r GenerationRequest) Validate() error {
	for i, t := range r.Turns {
		if !t.Role.Valid() {
			return fmt.Errorf("turn %d: unknown role %q", i, t.Role)
		}
	}
	if n := len(r.Turns); n > 0 && r.Turns[n-1].Role != RoleUser {
		return fmt.Errorf("last turn must be from %s, got %s", RoleUser, r.Turns[n-1].Role)
	}
	return nil
}

// SessionStatus is the worker-wide lifecycle state.
type SessionStatus string

const (
	StatusInitializing SessionStatus = "initializing"
	StatusLoading      SessionStatus = "loading"
	StatusReady        SessionStatus = "ready"
	StatusError        SessionStatus = "error"
)

// LoadPhase is the lifecycle of one downloaded asset.
type LoadPhase string

const (
	LoadInitiated  LoadPhase = "initiate"
	LoadInProgress LoadPhase = "progress"
	LoadDone       LoadPhase = "done"
)

// LoadProgress tracks the download of a single asset.
type LoadProgress struct {
	// Asset identifier (file URL, layer digest, ...).
	AssetID string `json:"asset_id"`
	// Bytes received so far.
	BytesLoaded int64 `json:"bytes_loaded"`
	// Total size in bytes.
	BytesTotal int64 `json:"bytes_total"`
	// Integer percent last reported.
	Percent int `json:"percent"`
	// Current phase.
	Phase LoadPhase `json:"phase"`
}

// Model represents a loadable model file on disk.
type Model struct {
	// Stable identifier for the model.
	// example: qwen3-0.6b-q4_k_m.gguf
	ID string `json:"id" example:"qwen3-0.6b-q4_k_m.gguf"`
	// Human-friendly name.
	Name string `json:"name"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/qwen3-0.6b-q4_k_m.gguf
	Path string `json:"path" example:"/home/user/models/qwen3-0.6b-q4_k_m.gguf"`
}

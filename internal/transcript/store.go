// Package transcript holds the ordered chat history on the controller side.
package transcript

import (
	"errors"
	"sync"

	"thinkchat/pkg/types"
)

// ErrEmptyContent is returned when appending a user turn without text.
// Assistant turns may be empty when a generation was interrupted early.
var ErrEmptyContent = errors.New("turn content is empty")

// Store is an append-only list of turns. Turns are never mutated after
// they are appended; Clear starts a new conversation.
type Store struct {
	mu    sync.RWMutex
	turns []types.ChatTurn
}

func New() *Store { return &Store{} }

// Append adds a turn and returns it.
func (s *Store) Append(role types.Role, content string) (types.ChatTurn, error) {
	if !role.Valid() {
		return types.ChatTurn{}, errors.New("unknown role " + string(role))
	}
	if content == "" && role == types.RoleUser {
		return types.ChatTurn{}, ErrEmptyContent
	}
	t := types.ChatTurn{Role: role, Content: content}
	s.mu.Lock()
	s.turns = append(s.turns, t)
	s.mu.Unlock()
	return t, nil
}

// Turns returns a copy of the whole history.
func (s *Store) Turns() []types.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Window returns a copy of the last n turns (all turns when n <= 0).
func (s *Store) Window(n int) []types.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && len(s.turns) > n {
		start = len(s.turns) - n
	}
	out := make([]types.ChatTurn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.turns = nil
	s.mu.Unlock()
}

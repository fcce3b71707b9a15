package genai

import (
	"fmt"
	"sync"
)

// Sessions hands out backend session ids per (user, handler kind). Ids are created
// lazily on first use and reused for the lifetime of the process.
type Sessions struct {
	mu      sync.Mutex
	counter int
	ids     map[string]map[string]string
}

// NewSessions creates an empty registry.
func NewSessions() *Sessions {
	return &Sessions{ids: make(map[string]map[string]string)}
}

// ID returns the session id of user for kind, formatted "{user}-{kind}-{counter}".
func (s *Sessions) ID(user, kind string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKind, ok := s.ids[user]
	if !ok {
		byKind = make(map[string]string)
		s.ids[user] = byKind
	}
	if id, ok := byKind[kind]; ok {
		return id
	}
	id := fmt.Sprintf("%s-%s-%d", user, kind, s.counter)
	s.counter++
	byKind[kind] = id
	return id
}

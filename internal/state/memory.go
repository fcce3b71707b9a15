package state

import (
	"context"
	"sync"
	"time"

	"github.com/BTreeMap/CareRouter/internal/models"
)

// MemoryStore is an unbounded in-process store.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*models.ConversationState
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOpts(opts)
	return &MemoryStore{users: make(map[string]*models.ConversationState), now: o.Now}
}

func (m *MemoryStore) Load(_ context.Context, userID string) (*models.ConversationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.users[userID]
	if !ok {
		s = models.NewConversationState(userID, m.now())
		m.users[userID] = s
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Get(_ context.Context, userID string) (*models.ConversationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *models.ConversationState) error {
	c := s.Clone()
	c.UpdatedAt = m.now()
	m.mu.Lock()
	m.users[s.UserID] = c
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.users, userID)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored users.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/BTreeMap/CareRouter/internal/models"
)

// LRUStore bounds the number of users kept in memory and expires idle ones.
type LRUStore struct {
	mu    sync.Mutex // makes get-or-insert atomic
	cache *expirable.LRU[string, *models.ConversationState]
	now   func() time.Time
}

// NewLRUStore creates a store holding at most MaxUsers users for TTL each.
func NewLRUStore(opts ...Option) *LRUStore {
	o := buildOpts(opts)
	onEvict := func(userID string, _ *models.ConversationState) {
		slog.Debug("LRUStore: evicted conversation state", "user_id", userID)
	}
	return &LRUStore{
		cache: expirable.NewLRU[string, *models.ConversationState](o.MaxUsers, onEvict, o.TTL),
		now:   o.Now,
	}
}

func (l *LRUStore) Load(_ context.Context, userID string) (*models.ConversationState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.cache.Get(userID)
	if !ok {
		s = models.NewConversationState(userID, l.now())
		l.cache.Add(userID, s)
	}
	return s.Clone(), nil
}

func (l *LRUStore) Get(_ context.Context, userID string) (*models.ConversationState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.cache.Peek(userID)
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (l *LRUStore) Save(_ context.Context, s *models.ConversationState) error {
	c := s.Clone()
	c.UpdatedAt = l.now()
	l.mu.Lock()
	l.cache.Add(s.UserID, c)
	l.mu.Unlock()
	return nil
}

func (l *LRUStore) Delete(_ context.Context, userID string) error {
	l.mu.Lock()
	l.cache.Remove(userID)
	l.mu.Unlock()
	return nil
}

// Len reports the number of live users.
func (l *LRUStore) Len() int {
	return l.cache.Len()
}

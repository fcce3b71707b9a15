// Package store provides persistence backends for CareRouter conversation records.
//
// Records are an append-only log of user messages and agent responses. Routing state is
// kept separately by the state package; nothing here is read back during a turn.
package store

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// ErrUnsupportedDSN is returned by Open for a DSN no backend accepts.
var ErrUnsupportedDSN = errors.New("unsupported database DSN")

// RecordType classifies a conversation record.
type RecordType string

const (
	RecordUserMessage   RecordType = "user_message"
	RecordAgentResponse RecordType = "agent_response"
)

// Record is one persisted conversation event.
type Record struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Type      RecordType `json:"type"`
	Handler   string     `json:"handler,omitempty"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
}

// Store persists conversation records.
type Store interface {
	SaveRecord(ctx context.Context, r Record) error
	// ListRecords returns up to limit of the user's most recent records, oldest first.
	// A non-positive limit returns all of them.
	ListRecords(ctx context.Context, userID string, limit int) ([]Record, error)
	// PruneRecords deletes every record older than before and returns how many went.
	PruneRecords(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Opts holds configuration for the SQL backends.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string or SQLite file path.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for Postgres URLs and key/value DSNs, "sqlite" for
// file paths and file: URIs, and "" for anything else.
func DetectDSNType(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	lower := strings.ToLower(dsn)
	switch {
	case dsn == "":
		return ""
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.Contains(lower, "host=") && strings.Contains(lower, "dbname="):
		return "postgres"
	case strings.HasPrefix(lower, "file:"):
		return "sqlite"
	case strings.Contains(lower, "://"):
		return ""
	case strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"),
		filepath.IsAbs(dsn), strings.HasPrefix(dsn, "."):
		return "sqlite"
	}
	return ""
}

// Open returns the backend matching dsn. An empty dsn yields an InMemoryStore.
func Open(dsn string) (Store, error) {
	switch DetectDSNType(dsn) {
	case "postgres":
		return NewPostgresStore(WithDSN(dsn))
	case "sqlite":
		return NewSQLiteStore(WithDSN(dsn))
	}
	if strings.TrimSpace(dsn) == "" {
		slog.Info("store.Open: no DSN configured, records kept in memory")
		return NewInMemoryStore(), nil
	}
	return nil, ErrUnsupportedDSN
}

// InMemoryStore keeps records in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) SaveRecord(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *InMemoryStore) ListRecords(_ context.Context, userID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return slices.Clone(out), nil
}

func (s *InMemoryStore) PruneRecords(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	s.records = slices.DeleteFunc(s.records, func(r Record) bool { return r.Timestamp.Before(before) })
	return int64(n - len(s.records)), nil
}

func (s *InMemoryStore) Close() error { return nil }

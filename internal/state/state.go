// Package state stores the per-user conversation state and serialises turns per user.
//
// Every backend hands out working copies: Load returns a clone the caller may mutate
// freely, and nothing is visible to other turns until Save commits it.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BTreeMap/CareRouter/internal/models"
)

// ErrNotFound is returned by Get when no state exists for a user.
var ErrNotFound = errors.New("conversation state not found")

// Store persists ConversationState per user id.
type Store interface {
	// Load atomically returns the user's state, inserting a fresh one on first contact.
	Load(ctx context.Context, userID string) (*models.ConversationState, error)
	// Get returns the state without inserting. It returns ErrNotFound if none exists.
	Get(ctx context.Context, userID string) (*models.ConversationState, error)
	// Save commits a working copy.
	Save(ctx context.Context, s *models.ConversationState) error
	// Delete forgets a user.
	Delete(ctx context.Context, userID string) error
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendLRU    Backend = "lru"
	BackendRedis  Backend = "redis"
)

const (
	DefaultMaxUsers = 10000
	DefaultTTL      = 24 * time.Hour
)

// Opts configures the stores.
type Opts struct {
	MaxUsers  int
	TTL       time.Duration
	RedisAddr string
	Redis     *redis.Client
	Now       func() time.Time
}

// Option configures a Store.
type Option func(*Opts)

// WithMaxUsers bounds the LRU store.
func WithMaxUsers(n int) Option {
	return func(o *Opts) {
		if n > 0 {
			o.MaxUsers = n
		}
	}
}

// WithTTL sets the idle expiry of the LRU and Redis stores.
func WithTTL(d time.Duration) Option {
	return func(o *Opts) {
		if d > 0 {
			o.TTL = d
		}
	}
}

// WithRedisAddr sets the address used when no client is supplied.
func WithRedisAddr(addr string) Option {
	return func(o *Opts) { o.RedisAddr = addr }
}

// WithRedisClient supplies a ready Redis client.
func WithRedisClient(c *redis.Client) Option {
	return func(o *Opts) { o.Redis = c }
}

// WithClock overrides the time source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) {
		if now != nil {
			o.Now = now
		}
	}
}

func buildOpts(opts []Option) Opts {
	o := Opts{MaxUsers: DefaultMaxUsers, TTL: DefaultTTL, Now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open creates the store for backend.
func Open(backend Backend, opts ...Option) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(opts...), nil
	case BackendLRU:
		return NewLRUStore(opts...), nil
	case BackendRedis:
		o := buildOpts(opts)
		client := o.Redis
		if client == nil {
			if o.RedisAddr == "" {
				return nil, fmt.Errorf("redis state backend requires an address")
			}
			client = redis.NewClient(&redis.Options{Addr: o.RedisAddr})
		}
		return NewRedisStore(client, opts...), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/BTreeMap/CareRouter/internal/models"
)

// RedisStore keeps conversation state as JSON documents with an idle TTL.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	now    func() time.Time
	tracer trace.Tracer
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	if client == nil {
		panic("state: redis client cannot be nil")
	}
	o := buildOpts(opts)
	return &RedisStore{
		redis:  client,
		ttl:    o.TTL,
		now:    o.Now,
		tracer: otel.Tracer("github.com/BTreeMap/CareRouter/internal/state"),
	}
}

func stateKey(userID string) string {
	return fmt.Sprintf("carerouter:state:%s", userID)
}

// Load reads the state, inserting a new document with SETNX when the key is absent.
func (r *RedisStore) Load(ctx context.Context, userID string) (*models.ConversationState, error) {
	ctx, span := r.tracer.Start(ctx, "state.redis.load")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	s, err := r.get(ctx, userID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		return nil, err
	}

	fresh := models.NewConversationState(userID, r.now())
	data, err := json.Marshal(fresh)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("state: failed to marshal state: %w", err)
	}
	inserted, err := r.redis.SetNX(ctx, stateKey(userID), data, r.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("state: failed to insert state: %w", err)
	}
	if inserted {
		return fresh, nil
	}
	// Lost the insert race; read the winner's document.
	return r.get(ctx, userID)
}

func (r *RedisStore) Get(ctx context.Context, userID string) (*models.ConversationState, error) {
	ctx, span := r.tracer.Start(ctx, "state.redis.get")
	defer span.End()
	return r.get(ctx, userID)
}

func (r *RedisStore) get(ctx context.Context, userID string) (*models.ConversationState, error) {
	data, err := r.redis.Get(ctx, stateKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("state: failed to load state: %w", err)
	}
	var s models.ConversationState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("state: failed to decode state: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *models.ConversationState) error {
	ctx, span := r.tracer.Start(ctx, "state.redis.save")
	defer span.End()

	c := s.Clone()
	c.UpdatedAt = r.now()
	data, err := json.Marshal(c)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("state: failed to marshal state: %w", err)
	}
	if err := r.redis.Set(ctx, stateKey(s.UserID), data, r.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("state: failed to persist state: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := r.redis.Del(ctx, stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("state: failed to delete state: %w", err)
	}
	return nil
}

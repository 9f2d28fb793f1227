package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	backend "github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis list per thread. Each turn is
// one JSON-encoded message pushed to the tail, so Resume reads the
// whole thread in append order.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets an idle expiration for threads; each Append refreshes it.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for threads.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a checkpoint store from an existing client.
func NewRedisStore(client *backend.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: "parlor:checkpoint:",
		ttl:    0,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) key(threadKey string) string {
	return s.prefix + threadKey
}

// Resume loads every turn recorded for the thread. An unknown thread
// yields no turns and no error.
func (s *RedisStore) Resume(ctx context.Context, threadKey string) ([]*schema.Message, error) {
	raw, err := s.client.LRange(ctx, s.key(threadKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", threadKey, err)
	}

	turns := make([]*schema.Message, 0, len(raw))
	for _, item := range raw {
		var msg schema.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint turn: %w", err)
		}
		turns = append(turns, &msg)
	}
	return turns, nil
}

// Append pushes turns to the tail of the thread in one pipeline, so a
// user/assistant pair lands atomically.
func (s *RedisStore) Append(ctx context.Context, threadKey string, turns ...*schema.Message) error {
	if len(turns) == 0 {
		return nil
	}

	encoded := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("failed to encode checkpoint turn: %w", err)
		}
		encoded = append(encoded, data)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.key(threadKey), encoded...)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(threadKey), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append checkpoint %s: %w", threadKey, err)
	}
	return nil
}

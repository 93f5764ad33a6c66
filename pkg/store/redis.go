package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cpunion/molt-bot/pkg/policy"
)

// DefaultRedisKey is the key holding the state document.
const DefaultRedisKey = "molt-bot:state"

// RedisStore keeps the state as a single JSON value in Redis.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore connects to the Redis instance at redisURL (e.g. "redis://localhost:6379/0").
func NewRedisStore(redisURL, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{rdb: redis.NewClient(opts), key: key}, nil
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Load reads the state document.
func (s *RedisStore) Load(ctx context.Context) (policy.PolicyState, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return policy.PolicyState{}, ErrNotFound
		}
		return policy.PolicyState{}, err
	}

	var state policy.PolicyState
	if err := json.Unmarshal(data, &state); err != nil {
		return policy.PolicyState{}, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return state.Normalize(), nil
}

// Save overwrites the state document. SET replaces atomically.
func (s *RedisStore) Save(ctx context.Context, state policy.PolicyState) error {
	data, err := json.Marshal(state.Normalize())
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key, data, 0).Err()
}

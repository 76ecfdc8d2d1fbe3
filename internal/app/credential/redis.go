package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const credentialKey = "session_credential"

// RedisStore keeps the credential in one redis key so it survives restarts
// and is shared by every instance pointed at the same cache.
type RedisStore struct {
	cache *redis.Client
	key   string
}

func NewRedisStore(cache *redis.Client) *RedisStore {
	return &RedisStore{
		cache: cache,
		key:   credentialKey,
	}
}

func (s *RedisStore) Get(ctx context.Context) (string, error) {
	value, err := s.cache.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}

	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, value string) error {
	if value == "" {
		return s.Clear(ctx)
	}

	if err := s.cache.Set(ctx, s.key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.cache.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}

	return nil
}

package checkoutlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deletes the key only while it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLock struct {
	cache *redis.Client
	ttl   time.Duration
}

func NewRedisLock(cache *redis.Client, ttl time.Duration) *RedisLock {
	return &RedisLock{
		cache: cache,
		ttl:   ttl,
	}
}

func (l *RedisLock) Acquire(ctx context.Context, key, owner string) (bool, error) {
	acquired, err := l.cache.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire checkout lock %s: %w", key, err)
	}

	return acquired, nil
}

func (l *RedisLock) Release(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, l.cache, []string{key}, owner).Err(); err != nil {
		return fmt.Errorf("failed to release checkout lock %s: %w", key, err)
	}

	return nil
}

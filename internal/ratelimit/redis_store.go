package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore is a cluster-wide fixed-window counter. The first hit within a
// window issues INCR then EXPIRE (rather than a sliding-window sorted set),
// to match the fixed-window semantics the in-memory store implements.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisStore wraps an existing redis client. ctx bounds every call made
// through the store (the caller typically passes context.Background()).
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ctx: context.Background()}
}

// Increment implements Store using INCR + EXPIRE. The window boundary is
// encoded into the key itself (bucketed by window start) so concurrent
// callers within the same window always land on the same counter.
func (s *RedisStore) Increment(key string, window time.Duration) (int, time.Duration, error) {
	bucket := time.Now().UnixNano() / int64(window)
	redisKey := "ratelimit:" + key + ":" + strconv.FormatInt(bucket, 10)

	count, err := s.client.Incr(s.ctx, redisKey).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := s.client.Expire(s.ctx, redisKey, window).Err(); err != nil {
			return 0, 0, err
		}
	}

	ttl, err := s.client.TTL(s.ctx, redisKey).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		ttl = window
	}
	return int(count), ttl, nil
}

package hitl

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/forgehq/sidecar/pkg/models"
)

// RedisConfig configures the Redis-backed pause store, the highest-priority
// backend in §4.7's chain.
type RedisConfig struct {
	URL string
}

// RedisStore persists pause state as a TTL'd JSON value per token and
// resumes via an atomic GET-then-DELETE Lua script, since plain GETDEL
// would race a concurrent sweep.
type RedisStore struct {
	client *redis.Client
}

var resumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then
	redis.call('DEL', KEYS[1])
end
return v
`)

// NewRedisStore connects to Redis per cfg.URL.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func pauseKey(token string) string {
	return "sidecar:hitl:" + token
}

// Save stores state with its TTL derived from ExpiresAt, so Redis expires
// the key itself without needing a sweeper.
func (r *RedisStore) Save(ctx context.Context, state models.HitlPauseState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode pause: %w", err)
	}
	ttl := state.ExpiresAt.Sub(state.CreatedAt)
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := r.client.Set(ctx, pauseKey(state.ResumeToken), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save pause: %w", err)
	}
	return nil
}

// Resume atomically fetches and deletes the entry for token.
func (r *RedisStore) Resume(ctx context.Context, token string) (models.HitlPauseState, error) {
	res, err := resumeScript.Run(ctx, r.client, []string{pauseKey(token)}).Result()
	if err == redis.Nil {
		return models.HitlPauseState{}, ErrNotFound
	}
	if err != nil {
		return models.HitlPauseState{}, fmt.Errorf("resume pause: %w", err)
	}
	raw, ok := res.(string)
	if !ok || raw == "" {
		return models.HitlPauseState{}, ErrNotFound
	}
	var ps models.HitlPauseState
	if err := json.Unmarshal([]byte(raw), &ps); err != nil {
		return models.HitlPauseState{}, fmt.Errorf("decode pause: %w", err)
	}
	return ps, nil
}

// Close releases the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

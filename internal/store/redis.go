package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/forgehq/sidecar/pkg/models"
)

// RedisConfig configures the Redis-backed store. TTL is applied to every
// session's turn list, unlike the SQLite/Postgres backends which never
// expire entries (§4.3).
type RedisConfig struct {
	URL        string
	TTLSeconds int
}

// RedisStore persists each session's turns as a single JSON-encoded list
// value, refreshing the TTL on every write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

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
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func sessionKey(sessionID string) string {
	return "sidecar:conversation:" + sessionID
}

// CreateSession reserves an opaque session id. Nothing is written to Redis
// until the first PersistMessage.
func (r *RedisStore) CreateSession(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

// PersistMessage appends a turn to the session's JSON-encoded list and
// refreshes its TTL.
func (r *RedisStore) PersistMessage(ctx context.Context, sessionID, stage string, role models.Role, content string) error {
	turns, err := r.readTurns(ctx, sessionID)
	if err != nil {
		return err
	}
	turns = append(turns, models.Turn{
		SessionID: sessionID,
		Stage:     stage,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
	return r.writeTurns(ctx, sessionID, turns)
}

// GetHistory returns turns in chronological order; unknown sessions yield an
// empty slice.
func (r *RedisStore) GetHistory(ctx context.Context, sessionID string) ([]models.Turn, error) {
	return r.readTurns(ctx, sessionID)
}

// GetIncompleteSessions scans the index set of known session ids maintained
// alongside each turn list.
func (r *RedisStore) GetIncompleteSessions(ctx context.Context) ([]models.IncompleteSession, error) {
	ids, err := r.client.SMembers(ctx, "sidecar:conversation:index").Result()
	if err != nil {
		return nil, fmt.Errorf("list session index: %w", err)
	}

	var out []models.IncompleteSession
	for _, id := range ids {
		turns, err := r.readTurns(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(turns) == 0 || isComplete(turns) {
			continue
		}
		out = append(out, models.IncompleteSession{
			SessionID:   id,
			Stage:       latestStage(turns),
			LastUpdated: latestUpdate(turns),
		})
	}
	return out, nil
}

// Close releases the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) readTurns(ctx context.Context, sessionID string) ([]models.Turn, error) {
	raw, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get turns: %w", err)
	}
	var turns []models.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}
	return turns, nil
}

func (r *RedisStore) writeTurns(ctx context.Context, sessionID string, turns []models.Turn) error {
	raw, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encode turns: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sessionID), raw, r.ttl)
	pipe.SAdd(ctx, "sidecar:conversation:index", sessionID)
	pipe.Expire(ctx, "sidecar:conversation:index", r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write turns: %w", err)
	}
	return nil
}

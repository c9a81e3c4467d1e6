package hitl

import "time"

// Config selects and configures the pause Store. Open tries each configured
// backend in §4.7's priority order — Redis > Postgres > SQLite > in-memory —
// and uses the first whose connection fields are populated.
type Config struct {
	TTL      time.Duration
	Redis    *RedisConfig
	Postgres *PostgresConfig
	SQLite   *SQLiteConfig
}

// Open constructs the highest-priority available Store and wraps it in an
// Engine.
func Open(cfg Config) (*Engine, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	return NewEngine(store, cfg.TTL), nil
}

func openStore(cfg Config) (Store, error) {
	if cfg.Redis != nil && cfg.Redis.URL != "" {
		return NewRedisStore(*cfg.Redis)
	}
	if cfg.Postgres != nil && cfg.Postgres.URL != "" {
		return NewPostgresStore(*cfg.Postgres)
	}
	if cfg.SQLite != nil && cfg.SQLite.Path != "" {
		return NewSQLiteStore(*cfg.SQLite)
	}
	return NewMemoryStore(), nil
}

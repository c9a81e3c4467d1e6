package agent

import "fmt"

// Kind selects which backend Open constructs.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
)

// Config is the union of backend-specific configuration consulted by Open.
// DSN is a file path for KindSQLite and a connection string for
// KindPostgres, mirroring internal/config.DatabaseConfig's single URL field.
type Config struct {
	Kind Kind
	DSN  string
}

// Open constructs the Catalog named by cfg.Kind.
func Open(cfg Config) (Catalog, error) {
	switch cfg.Kind {
	case "", KindMemory:
		return NewMemoryCatalog(), nil
	case KindSQLite:
		return NewSQLiteCatalog(cfg.DSN)
	case KindPostgres:
		return NewPostgresCatalog(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown catalog kind %q", cfg.Kind)
	}
}

package store

import (
	"context"
	_ "embed"
	"time"

	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// Connection pool settings.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

// PostgresStore stores submissions in PostgreSQL.
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore connects to the DSN and applies migrations.
func NewPostgresStore(ctx context.Context, opts ...Option) (*PostgresStore, error) {
	cfg := applyOpts(opts)
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}
	s, err := openSQL(ctx, "postgres", cfg.DSN, postgresMigrations, cfg, dollar)
	if err != nil {
		return nil, err
	}
	s.db.SetMaxOpenConns(DefaultMaxOpenConns)
	s.db.SetMaxIdleConns(DefaultMaxIdleConns)
	s.db.SetConnMaxLifetime(DefaultConnMaxLifetime)
	return &PostgresStore{sqlStore: s}, nil
}

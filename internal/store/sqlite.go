package store

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// DefaultDirPermissions is used when creating the database directory.
const DefaultDirPermissions = 0o755

// SQLiteStore stores submissions in an SQLite file.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore opens (and migrates) the database at the DSN path,
// creating its directory when needed.
func NewSQLiteStore(ctx context.Context, opts ...Option) (*SQLiteStore, error) {
	cfg := applyOpts(opts)
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}
	if path := sqlitePath(cfg.DSN); path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	s, err := openSQL(ctx, "sqlite3", cfg.DSN, sqliteMigrations, cfg, questionMark)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection avoids lock errors.
	s.db.SetMaxOpenConns(1)
	return &SQLiteStore{sqlStore: s}, nil
}

func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// Package store keeps completed profile intakes. The wizard hands records
// over through its completion callback and never sees the outcome.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kindredhq/intake/internal/config"
	"github.com/kindredhq/intake/pkg/profile"
)

// Common errors.
var (
	ErrNotFound = errors.New("profile not found")
	ErrClosed   = errors.New("store is closed")
	ErrNoDSN    = errors.New("database DSN not set")
)

// Submission is one completed intake.
type Submission struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Record    profile.Record `json:"record"`
	CreatedAt time.Time      `json:"created_at"`
}

// ProfileStore persists submissions.
type ProfileStore interface {
	// Save stores rec and returns the new submission ID.
	Save(ctx context.Context, sessionID string, rec profile.Record) (string, error)
	Get(ctx context.Context, id string) (*Submission, error)
	// List returns up to limit submissions, newest first. A limit of zero
	// or less returns all of them.
	List(ctx context.Context, limit int) ([]Submission, error)
	Ping(ctx context.Context) error
	Close() error
}

// Opts holds store options.
type Opts struct {
	DSN string
	Now func() time.Time
}

// Option configures a store.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithClock overrides the submission timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) {
		o.Now = now
	}
}

func applyOpts(opts []Option) Opts {
	cfg := Opts{Now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Open returns the store for driver, one of the config.Driver* names.
func Open(ctx context.Context, driver, dsn string) (ProfileStore, error) {
	switch driver {
	case config.DriverMemory, "":
		return NewMemoryStore(), nil
	case config.DriverSQLite:
		return NewSQLiteStore(ctx, WithDSN(dsn))
	case config.DriverPostgres:
		return NewPostgresStore(ctx, WithDSN(dsn))
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kindredhq/intake/pkg/logging"
	"github.com/kindredhq/intake/pkg/profile"
)

// sqlStore implements ProfileStore over database/sql. The record is kept as
// a JSON document; media references hold preview metadata only.
type sqlStore struct {
	db     *sql.DB
	opts   Opts
	logger logging.Logger

	// bind returns the placeholder of the n-th (1-based) parameter.
	bind func(n int) string

	closed atomic.Bool
}

func openSQL(ctx context.Context, driver, dsn, migrations string, opts Opts, bind func(int) string) (*sqlStore, error) {
	logger := logging.L(ctx).With(logging.String("driver", driver))

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Debug("profile store ready")
	return &sqlStore{db: db, opts: opts, logger: logger, bind: bind}, nil
}

func (s *sqlStore) Save(ctx context.Context, sessionID string, rec profile.Record) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	id := uuid.NewString()
	query := fmt.Sprintf(`INSERT INTO profiles (id, session_id, name, email, record, created_at) VALUES (%s, %s, %s, %s, %s, %s)`,
		s.bind(1), s.bind(2), s.bind(3), s.bind(4), s.bind(5), s.bind(6))
	_, err = s.db.ExecContext(ctx, query, id, sessionID, rec.Name, rec.Email, string(doc), s.opts.Now().UTC())
	if err != nil {
		s.logger.Error("profile insert failed", logging.String("session", sessionID), logging.Err(err))
		return "", fmt.Errorf("failed to insert profile for session %s: %w", sessionID, err)
	}
	s.logger.Debug("profile saved", logging.String("id", id))
	return id, nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (*Submission, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	query := `SELECT id, session_id, record, created_at FROM profiles WHERE id = ` + s.bind(1)
	row := s.db.QueryRowContext(ctx, query, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *sqlStore) List(ctx context.Context, limit int) ([]Submission, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	query := `SELECT id, session_id, record, created_at FROM profiles ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ` + s.bind(1)
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profile rows: %w", err)
	}
	return out, nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*Submission, error) {
	var (
		sub     Submission
		doc     string
		created time.Time
	)
	if err := row.Scan(&sub.ID, &sub.SessionID, &doc, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(doc), &sub.Record); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", sub.ID, err)
	}
	sub.CreatedAt = created.UTC()
	return &sub, nil
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

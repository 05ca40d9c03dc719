package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
)

// SQLiteOptions configures a SQLiteStore.
type SQLiteOptions struct {
	// MaxRetries bounds attempts of a write that fails because the database
	// is busy.
	MaxRetries uint
	Logger     logging.Logger
}

// SQLiteStore is a durable Store persisting each session's log as a single
// JSON document in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	opts   SQLiteOptions
	logger logging.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string, optFns ...func(o *SQLiteOptions)) (*SQLiteStore, error) {
	opts := SQLiteOptions{
		MaxRetries: 5,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.MaxRetries == 0 {
		opts.MaxRetries = 1
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, opts: opts, logger: opts.Logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		session_id TEXT PRIMARY KEY,
		log_json TEXT NOT NULL,
		message_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_updated ON checkpoints(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load returns the stored log, or an empty log for an unknown session.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (core.Log, error) {
	var data string

	err := s.db.QueryRowContext(ctx, `SELECT log_json FROM checkpoints WHERE session_id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Log{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", sessionID, err)
	}

	log, err := core.UnmarshalLog([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", sessionID, err)
	}

	return log, nil
}

// Save replaces the stored log in a single statement.
func (s *SQLiteStore) Save(ctx context.Context, sessionID string, log core.Log) error {
	data, err := core.MarshalLog(log)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", sessionID, err)
	}

	query := `
	INSERT INTO checkpoints (session_id, log_json, message_count, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		log_json = excluded.log_json,
		message_count = excluded.message_count,
		updated_at = excluded.updated_at`

	now := time.Now().UnixMilli()

	return s.withRetry(ctx, "save", func() error {
		if _, err := s.db.ExecContext(ctx, query, sessionID, string(data), len(log), now, now); err != nil {
			return fmt.Errorf("save checkpoint %s: %w", sessionID, err)
		}
		return nil
	})
}

// Delete removes a session.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	return s.withRetry(ctx, "delete", func() error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("delete checkpoint %s: %w", sessionID, err)
		}
		return nil
	})
}

// List returns the stored sessions, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, message_count, updated_at
		FROM checkpoints ORDER BY updated_at DESC, session_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var (
			info      Info
			updatedAt int64
		)
		if err := rows.Scan(&info.SessionID, &info.Messages, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		info.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		out = append(out, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withRetry retries op while SQLite reports the database as busy.
func (s *SQLiteStore) withRetry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		if err != nil && !isBusy(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.opts.MaxRetries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn("session.sqlite.retry", "op", op, "error", err, "next", next)
		}),
	)

	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

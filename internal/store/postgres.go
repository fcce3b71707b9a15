// This file implements a PostgreSQL-backed record store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}
	return newPostgresStoreWithDB(db)
}

// newPostgresStoreWithDB applies migrations on an open connection.
func newPostgresStoreWithDB(db *sql.DB) (*PostgresStore, error) {
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_records (id, user_id, record_type, handler, content, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.UserID, r.Type, nilIfEmpty(r.Handler), r.Content, r.Timestamp)
	if err != nil {
		slog.Error("PostgresStore SaveRecord failed", "error", err, "user_id", r.UserID)
		return fmt.Errorf("failed to insert record for %s: %w", r.UserID, err)
	}
	return nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, userID string, limit int) ([]Record, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, record_type, handler, content, created_at FROM conversation_records
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, lim)
	if err != nil {
		slog.Error("PostgresStore ListRecords query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	return scanRecords(rows)
}

func (s *PostgresStore) PruneRecords(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversation_records WHERE created_at < $1`, before)
	if err != nil {
		slog.Error("PostgresStore PruneRecords failed", "error", err)
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}

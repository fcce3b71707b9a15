// This file implements an SQLite-backed record store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	if DetectDSNType(dsn) == "sqlite" && filepath.Dir(dsn) != "" {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("Failed to create database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_records (id, user_id, record_type, handler, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Type, nilIfEmpty(r.Handler), r.Content, r.Timestamp.UTC())
	if err != nil {
		slog.Error("SQLiteStore SaveRecord failed", "error", err, "user_id", r.UserID)
		return fmt.Errorf("failed to insert record for %s: %w", r.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, userID string, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, record_type, handler, content, created_at FROM conversation_records
		 WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, listLimit(limit))
	if err != nil {
		slog.Error("SQLiteStore ListRecords query failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	return scanRecords(rows)
}

func (s *SQLiteStore) PruneRecords(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversation_records WHERE created_at < ?`, before.UTC())
	if err != nil {
		slog.Error("SQLiteStore PruneRecords failed", "error", err)
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// Package store provides audit storage backends for ShopperChat.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/UniversalShopper/ShopperChat/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database
// directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists transcript entries and process events in an SQLite
// database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is a
// file path; the containing directory is created when missing.
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

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("SQLiteStore ready", "path", dsn)
	return &SQLiteStore{db: db}, nil
}

// AddMessage appends a transcript entry.
func (s *SQLiteStore) AddMessage(m models.Message) error {
	_, err := s.db.Exec(`INSERT INTO messages (role, content, time) VALUES (?, ?, ?)`, m.Role, m.Content, m.Time)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "role", m.Role)
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetMessages returns all recorded transcript entries in insertion order.
func (s *SQLiteStore) GetMessages() ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT role, content, time FROM messages ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore GetMessages query failed", "error", err)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.Role, &m.Content, &m.Time); err != nil {
			slog.Error("SQLiteStore GetMessages scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	slog.Debug("SQLiteStore GetMessages succeeded", "count", len(messages))
	return messages, nil
}

// ClearMessages removes all recorded transcript entries.
func (s *SQLiteStore) ClearMessages() error {
	if _, err := s.db.Exec(`DELETE FROM messages`); err != nil {
		slog.Error("SQLiteStore ClearMessages failed", "error", err)
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}

// AddProcessEvent appends a process event.
func (s *SQLiteStore) AddProcessEvent(e models.ProcessEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO process_events (process_id, status, stage, message, screenshot_url, time) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ProcessID, e.Status, e.Stage, nilIfEmpty(e.Message), nilIfEmpty(e.ScreenshotURL), e.Time,
	)
	if err != nil {
		slog.Error("SQLiteStore AddProcessEvent failed", "error", err, "process_id", e.ProcessID)
		return fmt.Errorf("failed to insert process event for %s: %w", e.ProcessID, err)
	}
	return nil
}

// GetProcessEvents returns the recorded events for one process in insertion
// order.
func (s *SQLiteStore) GetProcessEvents(processID string) ([]models.ProcessEvent, error) {
	rows, err := s.db.Query(
		`SELECT process_id, status, stage, message, screenshot_url, time FROM process_events WHERE process_id = ? ORDER BY id`,
		processID,
	)
	if err != nil {
		slog.Error("SQLiteStore GetProcessEvents query failed", "error", err, "process_id", processID)
		return nil, fmt.Errorf("failed to query process events: %w", err)
	}
	defer rows.Close()

	events, err := scanProcessEvents(rows)
	if err != nil {
		slog.Error("SQLiteStore GetProcessEvents scan failed", "error", err, "process_id", processID)
		return nil, err
	}
	slog.Debug("SQLiteStore GetProcessEvents succeeded", "process_id", processID, "count", len(events))
	return events, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Package store provides audit storage backends for ShopperChat.
//
// This file implements the PostgreSQL-backed store for shared-database
// deployments.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/UniversalShopper/ShopperChat/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists transcript entries and process events in
// PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running PostgreSQL migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("PostgresStore ready")
	return &PostgresStore{db: db}, nil
}

// AddMessage appends a transcript entry.
func (s *PostgresStore) AddMessage(m models.Message) error {
	_, err := s.db.Exec(`INSERT INTO messages (role, content, time) VALUES ($1, $2, $3)`, m.Role, m.Content, m.Time)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "role", m.Role)
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetMessages returns all recorded transcript entries in insertion order.
func (s *PostgresStore) GetMessages() ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT role, content, time FROM messages ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore GetMessages query failed", "error", err)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.Role, &m.Content, &m.Time); err != nil {
			slog.Error("PostgresStore GetMessages scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	slog.Debug("PostgresStore GetMessages succeeded", "count", len(messages))
	return messages, nil
}

// ClearMessages removes all recorded transcript entries.
func (s *PostgresStore) ClearMessages() error {
	if _, err := s.db.Exec(`DELETE FROM messages`); err != nil {
		slog.Error("PostgresStore ClearMessages failed", "error", err)
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}

// AddProcessEvent appends a process event.
func (s *PostgresStore) AddProcessEvent(e models.ProcessEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO process_events (process_id, status, stage, message, screenshot_url, time) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ProcessID, e.Status, e.Stage, nilIfEmpty(e.Message), nilIfEmpty(e.ScreenshotURL), e.Time,
	)
	if err != nil {
		slog.Error("PostgresStore AddProcessEvent failed", "error", err, "process_id", e.ProcessID)
		return fmt.Errorf("failed to insert process event for %s: %w", e.ProcessID, err)
	}
	return nil
}

// GetProcessEvents returns the recorded events for one process in insertion
// order.
func (s *PostgresStore) GetProcessEvents(processID string) ([]models.ProcessEvent, error) {
	rows, err := s.db.Query(
		`SELECT process_id, status, stage, message, screenshot_url, time FROM process_events WHERE process_id = $1 ORDER BY id`,
		processID,
	)
	if err != nil {
		slog.Error("PostgresStore GetProcessEvents query failed", "error", err, "process_id", processID)
		return nil, fmt.Errorf("failed to query process events: %w", err)
	}
	defer rows.Close()

	events, err := scanProcessEvents(rows)
	if err != nil {
		slog.Error("PostgresStore GetProcessEvents scan failed", "error", err, "process_id", processID)
		return nil, err
	}
	slog.Debug("PostgresStore GetProcessEvents succeeded", "process_id", processID, "count", len(events))
	return events, nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

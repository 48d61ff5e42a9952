// Package store provides audit storage backends for ShopperChat.
//
// The store records the conversation transcript and the process events
// observed while polling, for post-run inspection. It is write-mostly: the
// chat controller never reads it back at startup, so every run still begins
// at session selection.
package store

import (
	"sync"

	"github.com/UniversalShopper/ShopperChat/internal/models"
)

// Store is the interface all audit storage backends implement.
type Store interface {
	AddMessage(m models.Message) error
	GetMessages() ([]models.Message, error)
	ClearMessages() error
	AddProcessEvent(e models.ProcessEvent) error
	GetProcessEvents(processID string) ([]models.ProcessEvent, error)
	Close() error
}

// Opts holds configuration options for storage backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for storage backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// NewStore creates the storage backend matching the configured DSN: SQLite
// for file paths, PostgreSQL for postgres DSNs, in-memory when no DSN is
// set.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}

// InMemoryStore is a simple in-memory store, the default when no DSN is
// configured. Safe for concurrent use.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages []models.Message
	events   []models.ProcessEvent
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// AddMessage appends a transcript entry.
func (s *InMemoryStore) AddMessage(m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

// GetMessages returns all recorded transcript entries in insertion order.
func (s *InMemoryStore) GetMessages() ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

// ClearMessages removes all recorded transcript entries.
func (s *InMemoryStore) ClearMessages() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	return nil
}

// AddProcessEvent appends a process event.
func (s *InMemoryStore) AddProcessEvent(e models.ProcessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// GetProcessEvents returns the recorded events for one process in insertion
// order.
func (s *InMemoryStore) GetProcessEvents(processID string) ([]models.ProcessEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ProcessEvent
	for _, e := range s.events {
		if e.ProcessID == processID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

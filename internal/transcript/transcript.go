// Package transcript maintains the append-only conversation log.
//
// Entry order is chronological display order and matches the causal order of
// the events that produced the entries; all appends happen under the chat
// controller's lock.
package transcript

import (
	"log/slog"
	"sync"
	"time"

	"github.com/UniversalShopper/ShopperChat/internal/models"
	"github.com/UniversalShopper/ShopperChat/internal/store"
)

// Log is the append-only ordered conversation transcript. Entries are
// optionally mirrored to an audit store; mirror failures are logged and
// never surfaced to the chat.
type Log struct {
	mu      sync.RWMutex
	entries []models.Message
	store   store.Store
}

// NewLog creates an empty transcript. st may be nil to disable mirroring.
func NewLog(st store.Store) *Log {
	return &Log{store: st}
}

// Append adds an entry with the current time and returns it.
func (l *Log) Append(role models.Role, content string) models.Message {
	m := models.Message{Role: role, Content: content, Time: time.Now()}

	l.mu.Lock()
	l.entries = append(l.entries, m)
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.AddMessage(m); err != nil {
			slog.Warn("Transcript failed to mirror entry to store", "error", err, "role", role)
		}
	}
	return m
}

// Entries returns a copy of all entries in chronological order.
func (l *Log) Entries() []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Last returns the most recent entry, or false when the log is empty.
func (l *Log) Last() (models.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return models.Message{}, false
	}
	return l.entries[len(l.entries)-1], true
}

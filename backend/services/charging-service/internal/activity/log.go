package activity

import (
	"sync"

	"chargex/backend/libs/clock"
	"chargex/backend/services/charging-service/internal/models"
)

// Mirror receives a copy of every appended entry. Offer must not block.
type Mirror interface {
	Offer(entry models.ActivityLogEntry) bool
}

// Log is the append-only, insertion-ordered audit record.
type Log struct {
	mu      sync.RWMutex
	entries []models.ActivityLogEntry
	clock   clock.Clock
	mirror  Mirror
}

// NewLog returns an empty log. mirror may be nil.
func NewLog(clk clock.Clock, mirror Mirror) *Log {
	return &Log{clock: clk, mirror: mirror}
}

// Append records an entry and returns it. It never fails.
func (l *Log) Append(kind, detail string) models.ActivityLogEntry {
	l.mu.Lock()
	entry := models.ActivityLogEntry{
		Seq:        int64(len(l.entries)) + 1,
		Timestamp:  l.clock.Now(),
		ActionKind: kind,
		Detail:     detail,
	}
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if l.mirror != nil {
		l.mirror.Offer(entry)
	}
	return entry
}

// List returns entries in insertion order. limit > 0 keeps only the most recent ones.
func (l *Log) List(limit int) []models.ActivityLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	start := 0
	if limit > 0 && limit < len(l.entries) {
		start = len(l.entries) - limit
	}
	out := make([]models.ActivityLogEntry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

package services

import (
	"context"
	"sync"

	"live-events-scraper/internal/models"
)

// ProcessedLedger is the externally owned record of identifiers this
// pipeline has already handled. Implementations must make check-then-mark
// atomic under concurrent invocations of the same scope; this core only
// consumes the interface.
type ProcessedLedger interface {
	IsProcessed(ctx context.Context, identifier, scope string) (bool, error)
	MarkProcessed(ctx context.Context, identifier, scope string) error
}

// EventSearch queries the externally owned event catalog for duplicate
// matching. Candidates expose at minimum title, venue name, and start
// date.
type EventSearch interface {
	SearchByVenueAndDate(ctx context.Context, venue, date string) ([]models.StoredEventSummary, error)
	SearchByDate(ctx context.Context, date string) ([]models.StoredEventSummary, error)
}

// MemoryLedger is an in-process ProcessedLedger for tests and one-shot
// CLI runs
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]bool
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]bool)}
}

func (l *MemoryLedger) key(identifier, scope string) string {
	return scope + "#" + identifier
}

// IsProcessed reports whether an identifier was already marked in a scope
func (l *MemoryLedger) IsProcessed(ctx context.Context, identifier, scope string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[l.key(identifier, scope)], nil
}

// MarkProcessed records an identifier in a scope. Idempotent.
func (l *MemoryLedger) MarkProcessed(ctx context.Context, identifier, scope string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.key(identifier, scope)] = true
	return nil
}

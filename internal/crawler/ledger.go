package crawler

import (
	"maps"
	"sync"
	"time"

	"github.com/alvmarrod/follow-weaver/internal/storage"
)

// Ledger is the error set: ids that failed permanently and are never
// fetched or enqueued again
type Ledger struct {
	mu      sync.RWMutex
	entries map[storage.NodeID]storage.Quarantine
	now     func() time.Time
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		entries: make(map[storage.NodeID]storage.Quarantine),
		now:     time.Now,
	}
}

// Add quarantines id. The first reason recorded wins.
// Returns true if id was not quarantined before
func (l *Ledger) Add(id storage.NodeID, reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[id]; exists {
		return false
	}
	l.entries[id] = storage.Quarantine{ID: id, Reason: reason, At: l.now().UTC()}
	return true
}

// Contains reports whether id is quarantined
func (l *Ledger) Contains(id storage.NodeID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[id]
	return ok
}

// Len returns the number of quarantined ids
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the ledger
func (l *Ledger) Entries() map[storage.NodeID]storage.Quarantine {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.entries)
}

// Load replaces the ledger with a copy of entries (for resume)
func (l *Ledger) Load(entries map[storage.NodeID]storage.Quarantine) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make(map[storage.NodeID]storage.Quarantine, len(entries))
	maps.Copy(l.entries, entries)
}

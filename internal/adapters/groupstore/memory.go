// Package groupstore provides GroupStore implementations: an in-process
// map for single-replica deployments and a Redis-backed store for
// fleets that want to share membership snapshots.
package groupstore

import (
	"context"
	"sync"

	"github.com/edgeauth/ldapauthd/internal/ports"
)

// Memory is the default in-process store. Entries live until replaced
// or process restart; there is no size-based eviction, only the per-key
// staleness check done by the caller. Growth is bounded by username
// cardinality.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]ports.GroupEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]ports.GroupEntry)}
}

// Get returns the stored entry for username, if any. Never errors.
func (m *Memory) Get(_ context.Context, username string) (ports.GroupEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[username]
	return entry, ok, nil
}

// Put replaces the entry for entry.Username wholesale. Concurrent
// writers race benignly; last write wins.
func (m *Memory) Put(_ context.Context, entry ports.GroupEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Username] = entry
	return nil
}

// Len reports the number of stored entries. Used by tests and the
// health endpoint.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

package resources

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/gambtho/container-assist/pkg/models"
)

// MemoryStore is a thread-safe in-memory Store. It is the default backend
// and the one used in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*StoredResource
}

// NewMemoryStore creates an empty in-memory resource store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*StoredResource)}
}

// Put stores an entry, replacing any existing entry with the same URI.
func (m *MemoryStore) Put(_ context.Context, entry *StoredResource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Reference.URI] = entry
	return nil
}

// Get returns the entry for the URI, or *models.ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, uri string) (*StoredResource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[uri]
	if !ok {
		return nil, &models.ErrNotFound{Entity: "resource", Key: uri}
	}
	return entry, nil
}

// Delete removes an entry if present.
func (m *MemoryStore) Delete(_ context.Context, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, uri)
	return nil
}

// DeleteMatching removes entries whose URI matches the glob pattern.
func (m *MemoryStore) DeleteMatching(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for uri := range m.entries {
		ok, err := path.Match(pattern, uri)
		if err != nil {
			return removed, err
		}
		if ok {
			delete(m.entries, uri)
			removed++
		}
	}
	return removed, nil
}

// PurgeExpired removes entries whose TTL has elapsed at now.
func (m *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for uri, entry := range m.entries {
		if entry.Expired(now) {
			delete(m.entries, uri)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries. Used by tests and metrics.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

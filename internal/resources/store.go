// Package resources implements size-aware result externalization: large
// operation results are stored under content-addressed URIs with a TTL
// and replaced by lightweight references, so callers never receive
// oversized payloads.
package resources

import (
	"context"
	"time"

	"github.com/gambtho/container-assist/pkg/models"
)

// StoredResource is one stored entry: the reference plus the serialized
// payload bytes.
type StoredResource struct {
	Reference models.ResourceReference
	Data      []byte
	CreatedAt time.Time
}

// Expired reports whether the entry's TTL has elapsed at the given time.
func (s *StoredResource) Expired(now time.Time) bool {
	ttl := time.Duration(s.Reference.TTLSeconds) * time.Second
	return now.After(s.CreatedAt.Add(ttl))
}

// Store is the keyed resource store. Entries are keyed by URI (session ID
// + content hash), so per-key atomicity is all an implementation needs;
// no global lock is required.
//
// All handler code depends on this interface, making it easy to swap
// between in-memory (tests, single process) and Redis (shared)
// implementations.
type Store interface {
	// Put stores an entry, replacing any entry with the same URI.
	Put(ctx context.Context, entry *StoredResource) error

	// Get returns the entry for the URI, or *models.ErrNotFound.
	// Implementations do not apply TTL expiry; the publisher does that
	// lazily on read.
	Get(ctx context.Context, uri string) (*StoredResource, error)

	// Delete removes an entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, uri string) error

	// DeleteMatching removes every entry whose URI matches the glob
	// pattern and returns the count removed.
	DeleteMatching(ctx context.Context, pattern string) (int, error)

	// PurgeExpired removes every entry whose TTL has elapsed at now and
	// returns the count removed. Stores with native TTL eviction may
	// return 0 unconditionally.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)

	// Close releases resources held by the store.
	Close() error
}

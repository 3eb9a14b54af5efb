package resources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gambtho/container-assist/pkg/models"
)

// TTL bounds in seconds, matching the config schema.
const (
	minTTLSeconds = 60
	maxTTLSeconds = 604_800
)

// Publisher stores payloads under content-addressed URIs and decides
// whether results should travel inline or as references.
//
// URIs are deterministic: scheme://{sessionId}/resources/{hash16} where
// hash16 is the first 16 hex chars of the SHA-256 of the serialized
// content. Publishing identical content twice in a session yields the
// same URI, deduplicating naturally.
type Publisher struct {
	store             Store
	scheme            string
	defaultTTLSeconds int
	maxResourceBytes  int
}

// NewPublisher creates a publisher over the given store. defaultTTL and
// maxResourceSizeMB come from the config registry's resolved values.
func NewPublisher(store Store, scheme string, defaultTTLSeconds, maxResourceSizeMB int) *Publisher {
	if scheme == "" {
		scheme = "cassist"
	}
	if defaultTTLSeconds <= 0 {
		defaultTTLSeconds = 3_600
	}
	if maxResourceSizeMB <= 0 {
		maxResourceSizeMB = 50
	}
	return &Publisher{
		store:             store,
		scheme:            scheme,
		defaultTTLSeconds: defaultTTLSeconds,
		maxResourceBytes:  maxResourceSizeMB * 1024 * 1024,
	}
}

// PublishOption customizes a single publish call.
type PublishOption func(*publishOptions)

type publishOptions struct {
	ttlSeconds  int
	description string
	metadata    map[string]any
}

// WithTTL sets an explicit TTL in seconds. Values outside [60, 604800]
// fail the publish with *models.InvalidTTLError.
func WithTTL(seconds int) PublishOption {
	return func(o *publishOptions) { o.ttlSeconds = seconds }
}

// WithDescription sets a human-readable description on the reference.
func WithDescription(desc string) PublishOption {
	return func(o *publishOptions) { o.description = desc }
}

// WithMetadata attaches metadata to the reference.
func WithMetadata(md map[string]any) PublishOption {
	return func(o *publishOptions) { o.metadata = md }
}

// Publish serializes data per mimeType and stores it under its
// content-addressed URI. If the serialized form exceeds the size limit
// the call fails with *models.ResourceTooLargeError and nothing is stored.
func (p *Publisher) Publish(ctx context.Context, sessionID string, data any, mimeType string, opts ...PublishOption) (models.ResourceReference, error) {
	return p.publish(ctx, sessionID, data, mimeType, p.defaultTTLSeconds, opts...)
}

// PublishLarge behaves like Publish with double the default TTL, for
// artifacts expected to be fetched well after the operation completes.
func (p *Publisher) PublishLarge(ctx context.Context, sessionID string, data any, mimeType string, opts ...PublishOption) (models.ResourceReference, error) {
	return p.publish(ctx, sessionID, data, mimeType, 2*p.defaultTTLSeconds, opts...)
}

func (p *Publisher) publish(ctx context.Context, sessionID string, data any, mimeType string, defaultTTL int, opts ...PublishOption) (models.ResourceReference, error) {
	var o publishOptions
	for _, opt := range opts {
		opt(&o)
	}

	ttl := defaultTTL
	if o.ttlSeconds != 0 {
		if o.ttlSeconds < minTTLSeconds || o.ttlSeconds > maxTTLSeconds {
			return models.ResourceReference{}, &models.InvalidTTLError{
				TTLSeconds: o.ttlSeconds, Min: minTTLSeconds, Max: maxTTLSeconds,
			}
		}
		ttl = o.ttlSeconds
	}

	raw, err := Serialize(data, mimeType)
	if err != nil {
		return models.ResourceReference{}, err
	}

	if len(raw) > p.maxResourceBytes {
		return models.ResourceReference{}, &models.ResourceTooLargeError{
			Size: len(raw), Limit: p.maxResourceBytes,
		}
	}

	description := o.description
	if description == "" {
		description = DescribeContent(data)
	}

	ref := models.ResourceReference{
		URI:         p.uriFor(sessionID, raw),
		MimeType:    mimeType,
		Description: description,
		Size:        len(raw),
		TTLSeconds:  ttl,
		Metadata:    o.metadata,
	}

	entry := &StoredResource{
		Reference: ref,
		Data:      raw,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.store.Put(ctx, entry); err != nil {
		return models.ResourceReference{}, fmt.Errorf("store resource: %w", err)
	}

	log.Debug().
		Str("uri", ref.URI).
		Str("mime", mimeType).
		Int("size", ref.Size).
		Int("ttl", ttl).
		Msg("Resource published")
	return ref, nil
}

// CreateReference builds a reference to an externally-owned URI without
// storing anything. The URI only needs a well-formed scheme://host shape.
func (p *Publisher) CreateReference(uri, description string, metadata map[string]any) (models.ResourceReference, error) {
	if err := validateExternalURI(uri); err != nil {
		return models.ResourceReference{}, err
	}
	return models.ResourceReference{
		URI:         uri,
		Description: description,
		Metadata:    metadata,
	}, nil
}

// Read returns the stored entry for the URI. Expiry is lazy: an entry
// whose TTL has elapsed is evicted on read and reported as not found even
// if physically still present.
func (p *Publisher) Read(ctx context.Context, uri string) (*StoredResource, error) {
	entry, err := p.store.Get(ctx, uri)
	if err != nil {
		return nil, err
	}

	if entry.Expired(time.Now().UTC()) {
		if delErr := p.store.Delete(ctx, uri); delErr != nil {
			log.Warn().Err(delErr).Str("uri", uri).Msg("Failed to evict expired resource")
		}
		return nil, &models.ErrNotFound{Entity: "resource", Key: uri}
	}
	return entry, nil
}

// Cleanup deletes stored entries matching the glob pattern, or all of a
// session's entries when pattern is empty.
func (p *Publisher) Cleanup(ctx context.Context, sessionID, pattern string) (int, error) {
	if pattern == "" {
		pattern = fmt.Sprintf("%s://%s/resources/*", p.scheme, sessionID)
	}
	removed, err := p.store.DeleteMatching(ctx, pattern)
	if err != nil {
		return removed, fmt.Errorf("cleanup resources: %w", err)
	}
	if removed > 0 {
		log.Info().Str("pattern", pattern).Int("removed", removed).Msg("Resources cleaned up")
	}
	return removed, nil
}

// MaxResourceBytes returns the configured size limit in bytes.
func (p *Publisher) MaxResourceBytes() int { return p.maxResourceBytes }

// uriFor computes the deterministic content-addressed URI.
func (p *Publisher) uriFor(sessionID string, raw []byte) string {
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s://%s/resources/%s", p.scheme, sessionID, hex.EncodeToString(sum[:])[:16])
}

func validateExternalURI(uri string) error {
	idx := strings.Index(uri, "://")
	if idx <= 0 {
		return &models.InvalidURIError{URI: uri, Reason: "missing scheme"}
	}
	if len(uri) == idx+3 {
		return &models.InvalidURIError{URI: uri, Reason: "missing authority"}
	}
	return nil
}

package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gambtho/container-assist/pkg/models"
)

// RedisStore is a Store backed by Redis. Entries expire natively via the
// Redis TTL, in addition to the publisher's lazy expiry check.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis using a URL of the form
// redis://[:password@]host:port/db and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info().Str("addr", opts.Addr).Msg("Redis resource store connected")
	return &RedisStore{client: client, prefix: "cassist:resource:"}, nil
}

type redisEntry struct {
	Reference models.ResourceReference `json:"reference"`
	Data      []byte                   `json:"data"`
	CreatedAt time.Time                `json:"createdAt"`
}

// Put stores the entry with the reference TTL as the Redis expiry.
func (r *RedisStore) Put(ctx context.Context, entry *StoredResource) error {
	raw, err := json.Marshal(redisEntry{
		Reference: entry.Reference,
		Data:      entry.Data,
		CreatedAt: entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal resource entry: %w", err)
	}

	ttl := time.Duration(entry.Reference.TTLSeconds) * time.Second
	if err := r.client.Set(ctx, r.prefix+entry.Reference.URI, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get returns the entry for the URI, or *models.ErrNotFound.
func (r *RedisStore) Get(ctx context.Context, uri string) (*StoredResource, error) {
	raw, err := r.client.Get(ctx, r.prefix+uri).Bytes()
	if err == redis.Nil {
		return nil, &models.ErrNotFound{Entity: "resource", Key: uri}
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal resource entry: %w", err)
	}
	return &StoredResource{
		Reference: entry.Reference,
		Data:      entry.Data,
		CreatedAt: entry.CreatedAt,
	}, nil
}

// Delete removes an entry if present.
func (r *RedisStore) Delete(ctx context.Context, uri string) error {
	if err := r.client.Del(ctx, r.prefix+uri).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeleteMatching scans for keys matching the glob pattern and removes
// them in batches.
func (r *RedisStore) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	removed := 0
	iter := r.client.Scan(ctx, 0, r.prefix+pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			n, err := r.client.Del(ctx, keys...).Result()
			removed += int(n)
			if err != nil {
				return removed, fmt.Errorf("redis del: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) > 0 {
		n, err := r.client.Del(ctx, keys...).Result()
		removed += int(n)
		if err != nil {
			return removed, fmt.Errorf("redis del: %w", err)
		}
	}
	return removed, nil
}

// PurgeExpired is a no-op: Redis evicts expired keys natively.
func (r *RedisStore) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

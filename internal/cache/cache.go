// Package cache implements the planning cache: a persistent, feature-flagged
// cache for expensive LLM planning calls, keyed by a deterministic hash of
// the request payload.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/qualagents/qualagents/internal/storage"
)

// PlanningCache caches LLM planning responses in a CacheStore. When disabled
// every lookup misses and writes are dropped, so callers never branch on the
// feature flag themselves. Store failures degrade to cache misses; the cache
// must never take down an analysis.
type PlanningCache struct {
	store   storage.CacheStore
	enabled bool
	ttl     time.Duration
}

// New creates a planning cache on top of store. Entries written through Set
// expire defaultTTL after the write; a zero or negative defaultTTL writes
// entries that are expired on arrival.
func New(store storage.CacheStore, enabled bool, defaultTTL time.Duration) *PlanningCache {
	return &PlanningCache{store: store, enabled: enabled, ttl: defaultTTL}
}

// Enabled reports whether the cache is active.
func (c *PlanningCache) Enabled() bool {
	return c.enabled
}

// GenerateKey produces a deterministic cache key from the payload. The
// payload is serialized with sorted keys, so two maps with the same entries
// in different insertion orders produce the same key.
func GenerateKey(payload map[string]interface{}) string {
	// encoding/json marshals map keys in sorted order.
	data, err := json.Marshal(payload)
	if err != nil {
		// Unserializable payloads (channels, funcs) fall back to the
		// stringified form; still deterministic for a given payload.
		data = []byte(fmt.Sprintf("%v", payload))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashText returns a short deterministic digest of s, used to build cache
// key payloads from large inputs without embedding them.
func HashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// Get returns the cached value for key and whether it was present. Misses,
// expired entries, a disabled cache, and store errors all report absent.
func (c *PlanningCache) Get(ctx context.Context, key string) (string, bool) {
	if !c.enabled || key == "" {
		return "", false
	}
	value, err := c.store.GetCacheEntry(ctx, key)
	if err != nil {
		if !isNotFound(err) {
			log.Printf("cache: lookup failed for %s: %v", key, err)
		}
		return "", false
	}
	return value, true
}

// Set stores value under key using the cache's default TTL.
func (c *PlanningCache) Set(ctx context.Context, key, value string) {
	c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores value under key with an explicit TTL. The expiry is
// always now+ttl, so a zero or negative ttl writes an already-expired entry,
// which the store treats as absent.
func (c *PlanningCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) {
	if !c.enabled || key == "" {
		return
	}
	expiry := time.Now().Add(ttl)
	if err := c.store.SetCacheEntry(ctx, key, value, &expiry); err != nil {
		log.Printf("cache: write failed for %s: %v", key, err)
	}
}

// Invalidate removes a single entry.
func (c *PlanningCache) Invalidate(ctx context.Context, key string) {
	if !c.enabled || key == "" {
		return
	}
	if err := c.store.DeleteCacheEntry(ctx, key); err != nil {
		log.Printf("cache: delete failed for %s: %v", key, err)
	}
}

// CleanupExpired removes expired entries from the underlying store.
func (c *PlanningCache) CleanupExpired(ctx context.Context) (int, error) {
	if !c.enabled {
		return 0, nil
	}
	return c.store.CleanupExpired(ctx)
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

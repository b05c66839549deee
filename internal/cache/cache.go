package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a cache key for a search provider and query. Queries
// are case-folded and whitespace-collapsed so trivially different spellings
// share an entry.
func CacheKey(provider, query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	hash := sha256.Sum256([]byte(provider + "\x00" + normalized))
	return "safeguard:search:v1:" + hex.EncodeToString(hash[:])
}

// New returns an in-memory cache, or a memory+disk cache when dir is set.
// A zero ttl means caching is off and New returns nil.
func New(ttl time.Duration, dir string) Cache {
	if ttl <= 0 {
		return nil
	}
	if dir == "" {
		return NewMemoryCache(ttl, 10*time.Minute)
	}
	return NewLayeredCache(ttl, dir, ttl)
}

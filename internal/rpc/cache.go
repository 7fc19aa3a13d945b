package rpc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/config"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/pkg/metrics"
)

// Cache memoizes raw RPC responses keyed by (method, ordered parameters).
// Expiry is checked lazily on every Get as the correctness guarantee; the
// CleanupExpired sweep only reclaims memory. Only read-only methods whose
// responses are stable over the TTL window are cached.
type Cache struct {
	store      *gocache.Cache
	defaultTTL time.Duration
	logsTTL    time.Duration
}

// NewCache builds a response cache from the cache config section.
func NewCache(cfg config.CacheConfig) *Cache {
	return &Cache{
		// No janitor goroutine: expiry is lazy, sweeps are explicit.
		store:      gocache.New(time.Duration(cfg.DefaultTTLSeconds)*time.Second, 0),
		defaultTTL: time.Duration(cfg.DefaultTTLSeconds) * time.Second,
		logsTTL:    time.Duration(cfg.LogsTTLSeconds) * time.Second,
	}
}

// Cacheable reports whether responses for the method may be memoized.
func (c *Cache) Cacheable(method string) bool {
	switch method {
	case "eth_call", "eth_getLogs":
		return true
	}
	return false
}

// TTLFor returns the time-to-live applied to responses of the given method.
func (c *Cache) TTLFor(method string) time.Duration {
	if method == "eth_getLogs" {
		return c.logsTTL
	}
	return c.defaultTTL
}

// Get returns the cached raw response for (method, params), or ok=false when
// absent or expired.
func (c *Cache) Get(method string, params []any) (json.RawMessage, bool) {
	key, err := cacheKey(method, params)
	if err != nil {
		return nil, false
	}
	v, found := c.store.Get(key)
	if !found {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return v.(json.RawMessage), true
}

// Set stores a raw response with the supplied TTL, or the method's default
// when ttl is zero.
func (c *Cache) Set(method string, params []any, value json.RawMessage, ttl time.Duration) {
	key, err := cacheKey(method, params)
	if err != nil {
		return
	}
	if ttl == 0 {
		ttl = c.TTLFor(method)
	}
	c.store.Set(key, value, ttl)
}

// CleanupExpired removes all expired entries. Purely a memory-reclamation
// sweep; Get never returns an expired entry regardless.
func (c *Cache) CleanupExpired() {
	c.store.DeleteExpired()
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.store.Flush()
}

// Len returns the number of stored entries, expired ones included until the
// next sweep.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}

// cacheKey derives a deterministic key from the method name and the ordered
// parameter list.
func cacheKey(method string, params []any) (string, error) {
	payload, err := json.Marshal(struct {
		Method string `json:"method"`
		Params []any  `json:"params"`
	}{Method: method, Params: params})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

package llm

import (
	"encoding/json"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache memoizes decisions by call key to control model cost. It is an
// in-process L1 built on ristretto; entries expire so a long-lived process
// does not replay stale plans forever.
type Cache struct {
	c   *ristretto.Cache[string, []byte]
	ttl time.Duration
}

// CacheOptions tune the decision cache.
type CacheOptions struct {
	// MaxCostBytes bounds the total size of cached decisions.
	MaxCostBytes int64
	// TTL expires entries. Defaults to one hour.
	TTL time.Duration
}

// NewCache builds a decision cache.
func NewCache(optFns ...func(o *CacheOptions)) (*Cache, error) {
	opts := CacheOptions{MaxCostBytes: 8 << 20, TTL: time.Hour}
	for _, fn := range optFns {
		fn(&opts)
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: opts.MaxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     opts.MaxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, ttl: opts.TTL}, nil
}

// Get returns a cached decision for the key.
func (c *Cache) Get(key string) (Decision, bool) {
	raw, ok := c.c.Get(key)
	if !ok {
		return Decision{}, false
	}
	var d Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return Decision{}, false
	}
	return d, true
}

// Set stores a decision. Fallback decisions are never cached — a transient
// model failure must not poison later turns.
func (c *Cache) Set(key string, d Decision) {
	if d.Fallback {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	c.c.SetWithTTL(key, raw, int64(len(raw)), c.ttl)
}

// Wait blocks until pending writes are applied. Tests use it to make Set
// visible before the next Get.
func (c *Cache) Wait() { c.c.Wait() }

// Close releases cache resources.
func (c *Cache) Close() { c.c.Close() }

package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/nexhelm/agentflow/logging"
)

// Adapter is implemented by model providers. Infer performs a single call
// and must respect context cancellation; it may return an error for
// timeouts, transport failures or unparseable output. Implementations do not
// fall back themselves — that is the Client's job.
type Adapter interface {
	Infer(ctx context.Context, role, prompt, digest string) (Decision, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context, role, prompt, digest string) (Decision, error)

// Infer implements Adapter.
func (f AdapterFunc) Infer(ctx context.Context, role, prompt, digest string) (Decision, error) {
	return f(ctx, role, prompt, digest)
}

// Options configure a Client.
type Options struct {
	// Timeout bounds each model call. Defaults to 30s.
	Timeout time.Duration
	// Cache, when set, memoizes decisions by (role, prompt hash). Caching
	// is an optimization only and must not change semantic behavior.
	Cache *Cache
	// Logger receives call diagnostics. Defaults to no-op.
	Logger logging.Logger
}

// Client wraps an Adapter with the guarantees agents depend on: a per-call
// deadline and a conservative fallback decision on any failure. Decide never
// returns an error — a Decision with Fallback set signals that the model was
// unusable this turn.
type Client struct {
	adapter Adapter
	opts    Options
}

// NewClient wraps an adapter.
func NewClient(adapter Adapter, optFns ...func(o *Options)) *Client {
	opts := Options{Timeout: 30 * time.Second, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Client{adapter: adapter, opts: opts}
}

// WithTimeout overrides the per-call deadline.
func WithTimeout(d time.Duration) func(o *Options) {
	return func(o *Options) { o.Timeout = d }
}

// WithCache attaches a decision cache.
func WithCache(c *Cache) func(o *Options) {
	return func(o *Options) { o.Cache = c }
}

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// CacheKey derives the cache key for a call: the role plus a hash over
// prompt and digest.
func CacheKey(role, prompt, digest string) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(digest))
	return role + ":" + hex.EncodeToString(h.Sum(nil))
}

// Decide performs one model call. On timeout, transport error or parse
// failure it returns FallbackDecision with the error recorded in Reasoning.
func (c *Client) Decide(ctx context.Context, role, prompt, digest string) Decision {
	key := CacheKey(role, prompt, digest)
	if c.opts.Cache != nil {
		if d, ok := c.opts.Cache.Get(key); ok {
			d.Cached = true
			c.opts.Logger.Debug("llm.decide cache hit", "role", role)
			return d
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	d, err := c.adapter.Infer(callCtx, role, prompt, digest)
	d.Latency = time.Since(start)
	if err != nil {
		c.opts.Logger.Warn("llm.decide fallback", "role", role, "error", err.Error())
		fb := FallbackDecision("model unavailable: " + err.Error())
		fb.Latency = d.Latency
		return fb
	}
	if c.opts.Cache != nil {
		c.opts.Cache.Set(key, d)
	}
	return d
}

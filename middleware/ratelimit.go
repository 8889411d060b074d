package middleware

import (
	"sync"
	"time"

	"github.com/miraimindz/embercore/httpcore"
	"github.com/miraimindz/embercore/server"
)

// RateLimitConfig configures the RateLimit middleware.
//
// Grounded on bolt/middleware/ratelimit.go's RateLimitConfig and its
// token-bucket algorithm, ported from a per-request KeyFunc closure over
// core.Context onto this module's httpcore.Request (defaulting to
// Request.ClientAddress instead of bolt's X-Forwarded-For-first lookup,
// since this core sits directly on the TCP connection rather than behind
// bolt's own reverse-proxy-aware context).
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	KeyFunc           func(*httpcore.Request) string
	CleanupInterval   time.Duration
	MaxAge            time.Duration
}

// DefaultRateLimitConfig allows 100req/s with a burst of 20, keyed by
// client address.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             20,
		CleanupInterval:   time.Minute,
		MaxAge:            5 * time.Minute,
	}
}

// RateLimit rejects requests over cfg's token-bucket rate with 429,
// setting resp.Handled so route dispatch is skipped.
type RateLimit struct {
	server.NopMiddleware

	cfg     RateLimitConfig
	buckets sync.Map // key -> *tokenBucket

	stopCleanup chan struct{}
}

// NewRateLimit builds a RateLimit middleware from cfg.
func NewRateLimit(cfg RateLimitConfig) *RateLimit {
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 100
	}
	if cfg.Burst == 0 {
		cfg.Burst = 20
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(r *httpcore.Request) string { return r.ClientAddress }
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	return &RateLimit{cfg: cfg}
}

func (rl *RateLimit) Init(app *server.Application) error {
	rl.stopCleanup = make(chan struct{})
	go rl.cleanupLoop()
	return nil
}

func (rl *RateLimit) Deinit(app *server.Application) error {
	close(rl.stopCleanup)
	return nil
}

func (rl *RateLimit) Pre(req *httpcore.Request, resp *httpcore.Response) {
	key := rl.cfg.KeyFunc(req)
	entry := rl.bucketFor(key)

	if !entry.allow(rl.cfg.RequestsPerSecond) {
		resp.Status = 429
		resp.SetBody([]byte("rate limit exceeded"))
		resp.Handled = true
	}
}

func (rl *RateLimit) bucketFor(key string) *rateLimitEntry {
	if v, ok := rl.buckets.Load(key); ok {
		e := v.(*rateLimitEntry)
		e.touch()
		return e
	}
	entry := newRateLimitEntry(rl.cfg.Burst)
	actual, _ := rl.buckets.LoadOrStore(key, entry)
	return actual.(*rateLimitEntry)
}

func (rl *RateLimit) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopCleanup:
			return
		case <-ticker.C:
			now := time.Now()
			rl.buckets.Range(func(k, v interface{}) bool {
				e := v.(*rateLimitEntry)
				if now.Sub(e.lastAccess()) > rl.cfg.MaxAge {
					rl.buckets.Delete(k)
				}
				return true
			})
		}
	}
}

// rateLimitEntry is a token bucket plus last-access bookkeeping for
// idle-key eviction.
type rateLimitEntry struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	lastRefill time.Time
	accessedAt time.Time
}

func newRateLimitEntry(burst int) *rateLimitEntry {
	now := time.Now()
	return &rateLimitEntry{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		lastRefill: now,
		accessedAt: now,
	}
}

func (e *rateLimitEntry) touch() {
	e.mu.Lock()
	e.accessedAt = time.Now()
	e.mu.Unlock()
}

func (e *rateLimitEntry) lastAccess() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accessedAt
}

func (e *rateLimitEntry) allow(rate float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(e.lastRefill).Seconds()
	e.tokens += elapsed * rate
	if e.tokens > e.maxTokens {
		e.tokens = e.maxTokens
	}
	e.lastRefill = now

	if e.tokens >= 1.0 {
		e.tokens -= 1.0
		return true
	}
	return false
}

package ratelimit

import (
	"sync"
	"time"
)

// Limiter decides whether a request keyed by client may proceed.
type Limiter interface {
	Allow(key string) bool
}

// NopLimiter allows everything.
type NopLimiter struct{}

// Allow always returns true
func (NopLimiter) Allow(string) bool { return true }

// Config stores TokenBucket settings.
type Config struct {
	Rate       float64       // tokens per second
	Burst      int           // bucket capacity
	TTL        time.Duration // idle buckets are dropped after TTL; 0 keeps them
	MaxBuckets int           // 0 means unbounded
}

type bucket struct {
	tokens float64
	last   time.Time
}

// TokenBucket is a per-key token bucket limiter.
type TokenBucket struct {
	cfg   Config
	now   func() time.Time
	mu    sync.Mutex
	keys  map[string]*bucket
	swept time.Time
}

// NewTokenBucket creates a limiter; now defaults to time.Now.
func NewTokenBucket(cfg Config, now func() time.Time) *TokenBucket {
	if now == nil {
		now = time.Now
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxBuckets < 0 {
		cfg.MaxBuckets = 0
	}
	return &TokenBucket{cfg: cfg, now: now, keys: make(map[string]*bucket)}
}

// Allow takes one token from key's bucket.
// New keys are rejected once MaxBuckets is reached.
func (l *TokenBucket) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	b, ok := l.keys[key]
	if !ok {
		if l.cfg.MaxBuckets > 0 && len(l.keys) >= l.cfg.MaxBuckets {
			return false
		}
		b = &bucket{tokens: float64(l.cfg.Burst), last: now}
		l.keys[key] = b
	}

	if dt := now.Sub(b.last); dt > 0 {
		b.tokens = min(float64(l.cfg.Burst), b.tokens+dt.Seconds()*l.cfg.Rate)
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Len returns the number of tracked keys.
func (l *TokenBucket) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// sweep drops idle buckets at most once per max(TTL/2, 1m).
func (l *TokenBucket) sweep(now time.Time) {
	if l.cfg.TTL <= 0 {
		return
	}
	every := max(l.cfg.TTL/2, time.Minute)
	if !l.swept.IsZero() && now.Sub(l.swept) < every {
		return
	}
	l.swept = now
	for k, b := range l.keys {
		if now.Sub(b.last) > l.cfg.TTL {
			delete(l.keys, k)
		}
	}
}

// Package limits bounds how fast a client may upload and how many live
// connections one address may hold.
package limits

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxKeys bounds how many keys a TokenBucket remembers. The least
// recently used key is forgotten first, which refills it.
const DefaultMaxKeys = 10000

// RateLimiter limits the rate of operations per key.
type RateLimiter interface {
	Allow(key string) bool
}

// TokenBucket is a per-key token bucket limiter.
type TokenBucket struct {
	rate  float64 // tokens per second
	burst int
	now   func() time.Time

	mu      sync.Mutex
	buckets *lru.Cache[string, *bucket]
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// Option configures a TokenBucket.
type Option func(*TokenBucket)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(tb *TokenBucket) {
		tb.now = now
	}
}

// NewTokenBucket allows burst operations at once per key, refilled at rate
// per second. maxKeys of zero or less uses DefaultMaxKeys.
func NewTokenBucket(rate float64, burst, maxKeys int, opts ...Option) *TokenBucket {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	// lru.New fails only for a non-positive size.
	buckets, _ := lru.New[string, *bucket](maxKeys)
	tb := &TokenBucket{
		rate:    rate,
		burst:   burst,
		now:     time.Now,
		buckets: buckets,
	}
	for _, opt := range opts {
		opt(tb)
	}
	return tb
}

// Allow reports whether one operation for key may proceed now.
func (tb *TokenBucket) Allow(key string) bool {
	return tb.AllowN(key, 1)
}

// AllowN reports whether n operations for key may proceed now, and takes
// their tokens if so.
func (tb *TokenBucket) AllowN(key string, n int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets.Get(key)
	if !ok {
		b = &bucket{tokens: float64(tb.burst), lastFill: now}
		tb.buckets.Add(key, b)
	}

	b.tokens += now.Sub(b.lastFill).Seconds() * tb.rate
	if b.tokens > float64(tb.burst) {
		b.tokens = float64(tb.burst)
	}
	b.lastFill = now

	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true
	}
	return false
}

// ConnectionLimiter limits concurrent connections per client address.
type ConnectionLimiter struct {
	maxPerIP int

	mu    sync.Mutex
	conns map[string]int
}

// NewConnectionLimiter creates a limiter. A non-positive max allows 100.
func NewConnectionLimiter(maxPerIP int) *ConnectionLimiter {
	if maxPerIP <= 0 {
		maxPerIP = 100
	}
	return &ConnectionLimiter{
		maxPerIP: maxPerIP,
		conns:    make(map[string]int),
	}
}

// Acquire takes a slot for ip. It reports false when ip is at its limit.
func (cl *ConnectionLimiter) Acquire(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.conns[ip] >= cl.maxPerIP {
		return false
	}
	cl.conns[ip]++
	return true
}

// Release returns a slot taken by Acquire.
func (cl *ConnectionLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.conns[ip] <= 1 {
		delete(cl.conns, ip)
		return
	}
	cl.conns[ip]--
}

// Count returns the open connections of ip.
func (cl *ConnectionLimiter) Count(ip string) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.conns[ip]
}

// ClientIP extracts the client address, preferring the first
// X-Forwarded-For entry, then X-Real-IP, then RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip, _, _ := strings.Cut(xff, ",")
		if ip = strings.TrimSpace(ip); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

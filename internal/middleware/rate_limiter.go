package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/moviehub/backend/internal/logging"
)

// RateLimiter decides whether a client may perform another request in a
// scope. When it refuses, it reports how long the client should wait.
type RateLimiter interface {
	Allow(scope, client string) (bool, time.Duration)
}

// bucketKey identifies one token bucket. Scopes never share budgets.
type bucketKey struct {
	scope  string
	client string
}

type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// scopedLimiter keeps a token bucket per scope and client address. Buckets idle
// for longer than ttl are swept at most once per ttl.
type scopedLimiter struct {
	mu        sync.Mutex
	buckets   map[bucketKey]*bucket
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewClientRateLimiter allows each client `requests` events per `window` in
// every scope, plus `burst` extra capacity. Idle buckets expire after ttl.
func NewClientRateLimiter(requests int, window time.Duration, burst int, ttl time.Duration) RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &scopedLimiter{
		buckets: make(map[bucketKey]*bucket),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (l *scopedLimiter) Allow(scope, client string) (bool, time.Duration) {
	if client == "" {
		client = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.lastSweep.IsZero() {
		l.lastSweep = now
	}
	if now.Sub(l.lastSweep) >= l.ttl {
		l.sweepLocked(now)
	}

	key := bucketKey{scope: scope, client: client}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := b.tokens.ReserveN(now, 1)
	if !res.OK() {
		return false, l.ttl
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *scopedLimiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// WithNowFunc allows tests to override the time source.
func (l *scopedLimiter) WithNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Len reports how many buckets are currently tracked.
func (l *scopedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit rejects requests with 429 once the client exhausts its budget in
// scope. Retry-After carries the wait in whole seconds. A nil limiter disables
// the check.
func RateLimit(limiter RateLimiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.Allow(scope, ClientIP(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			logging.FromContext(r.Context()).Warn("rate limit exceeded", "scope", scope, "retry_after", wait)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":     "too many requests",
				"retryable": true,
			})
		})
	}
}

func retryAfterSeconds(wait time.Duration) int {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

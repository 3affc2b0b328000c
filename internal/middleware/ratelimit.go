package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
)

// idleAfter is how long a client may stay quiet before its bucket is dropped.
const idleAfter = time.Hour

// RateLimiter budgets mutating facade requests per client. Every write ends
// in a backend call, while reads are served from the local store and are
// never limited.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int
	window  time.Duration
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter allows rate writes per window for each client. Tokens
// refill continuously.
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.sweep(5 * time.Minute)
	return rl
}

func (rl *RateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := rl.now().Add(-idleAfter)
			for key, b := range rl.buckets {
				if b.seen.Before(cutoff) {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the sweeper. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow takes a token for key. When none is left it reports how long until
// the next one.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.rate), seen: now}
		rl.buckets[key] = b
	}

	perToken := rl.window / time.Duration(rl.rate)
	b.tokens = math.Min(float64(rl.rate), b.tokens+float64(now.Sub(b.seen))/float64(perToken))
	b.seen = now

	if b.tokens < 1 {
		return false, time.Duration((1 - b.tokens) * float64(perToken))
	}
	b.tokens--
	return true, 0
}

// ClientKey identifies the caller by remote host. chi's RealIP middleware
// runs first, so proxy headers are already folded into RemoteAddr.
func ClientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func isWrite(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// RateLimitMiddleware rejects writes over budget with 429.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isWrite(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := limiter.Allow(ClientKey(r))
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.rate))
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(models.ErrorResponse{Error: "too many changes, slow down"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter throttles document uploads per client IP with a token
// bucket. Extraction runs OCR server-side, so one client looping uploads
// can starve every other request; a small bucket keeps it fair without
// slowing well-behaved clients.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*tokenBucket
	rate    float64 // tokens refilled per second
	burst   float64 // bucket capacity
}

type tokenBucket struct {
	remaining float64
	refilled  time.Time
}

// NewRateLimiter creates a limiter allowing rate requests/sec with the
// given burst size per client IP.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*tokenBucket),
		rate:    rate,
		burst:   float64(burst),
	}
	go rl.evictStale()
	return rl
}

// Take spends one token for ip. When the bucket is empty it returns
// false and how long until the next token refills.
func (rl *RateLimiter) Take(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.clients[ip]
	if !ok {
		b = &tokenBucket{remaining: rl.burst, refilled: now}
		rl.clients[ip] = b
	}

	b.remaining = math.Min(rl.burst, b.remaining+now.Sub(b.refilled).Seconds()*rl.rate)
	b.refilled = now

	if b.remaining < 1 {
		wait := time.Duration((1 - b.remaining) / rl.rate * float64(time.Second))
		return false, wait
	}
	b.remaining--
	return true, 0
}

// evictStale drops buckets idle long enough to have fully refilled.
func (rl *RateLimiter) evictStale() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for ip, b := range rl.clients {
			if b.refilled.Before(cutoff) {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit returns an HTTP middleware that rejects over-limit requests
// with 429 Too Many Requests and a Retry-After hint.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			// Prefer X-Real-Ip set by chi's RealIP middleware.
			if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				ip = xri
			}
			ok, wait := limiter.Take(ip)
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				http.Error(w, "upload rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

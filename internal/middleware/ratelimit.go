package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/templui/usermap/internal/ui"
	"github.com/templui/usermap/internal/ui/pages"
)

// RateLimiter is a sliding window counter per client address.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}

	go rl.cleanupLoop()

	return rl
}

// Allow records an attempt for key. When the window is full it reports how
// long until the oldest attempt expires instead.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.recent(key, now.Add(-rl.window))

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false, recent[0].Add(rl.window).Sub(now)
	}

	rl.requests[key] = append(recent, now)
	return true, 0
}

// recent drops the attempts of key at or before cutoff. Attempts are stored
// in arrival order, so the kept ones are a suffix.
func (rl *RateLimiter) recent(key string, cutoff time.Time) []time.Time {
	attempts := rl.requests[key]
	i := 0
	for i < len(attempts) && !attempts[i].After(cutoff) {
		i++
	}
	return attempts[i:]
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.cleanup()
	}
}

// cleanup forgets clients without an attempt in the current window.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key := range rl.requests {
		if len(rl.recent(key, cutoff)) == 0 {
			delete(rl.requests, key)
		}
	}
}

// RateLimitAuth guards the endpoints that check passwords or send mail:
// 5 attempts per 15 minutes per client.
func RateLimitAuth() func(http.HandlerFunc) http.HandlerFunc {
	return RateLimit(NewRateLimiter(5, 15*time.Minute))
}

// RateLimit rejects clients that used up their attempts with a 429 page and
// a Retry-After header. Clients are told apart by ClientIP.
func RateLimit(limiter *RateLimiter) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			allowed, retryAfter := limiter.Allow(ip)
			if !allowed {
				slog.WarnContext(r.Context(), "rate limit exceeded", "ip", ip, "path", r.URL.Path)

				minutes := int(math.Ceil(retryAfter.Minutes()))
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				ui.RenderStatus(w, r, http.StatusTooManyRequests, pages.Information(
					"Too many attempts",
					"Please wait "+pluralMinutes(minutes)+" before trying again.",
				))
				return
			}

			next(w, r)
		}
	}
}

func pluralMinutes(n int) string {
	if n <= 1 {
		return "a minute"
	}
	return strconv.Itoa(n) + " minutes"
}

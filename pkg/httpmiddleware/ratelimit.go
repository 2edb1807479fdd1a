package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window.
	Max    int
	Window time.Duration
	// KeyFunc partitions requests. Defaults to the caller's user id, falling
	// back to the client IP for anonymous requests.
	KeyFunc func(*http.Request) string
}

// window counts requests in the current and the previous fixed window. The
// previous count is weighted by how much of it still overlaps the sliding
// window.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

type limiter struct {
	max   int
	size  time.Duration
	key   func(*http.Request) string
	now   func() time.Time
	mu    sync.Mutex
	byKey map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = callerKey
	}
	return &limiter{
		max:   cfg.Max,
		size:  cfg.Window,
		key:   cfg.KeyFunc,
		now:   time.Now,
		byKey: make(map[string]*window),
	}
}

// take consumes one request for key. It reports the requests left and when
// the current window ends.
func (l *limiter) take(key string) (left int, reset time.Time, ok bool) {
	now := l.now()
	start := now.Truncate(l.size)

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.byKey[key]
	switch {
	case w == nil:
		w = &window{start: start}
		l.byKey[key] = w
	case start.Sub(w.start) >= 2*l.size:
		*w = window{start: start}
	case !start.Equal(w.start):
		*w = window{start: start, prev: w.curr}
	}

	overlap := 1 - float64(now.Sub(w.start))/float64(l.size)
	used := w.prev*math.Max(overlap, 0) + w.curr
	reset = w.start.Add(l.size)
	if used >= float64(l.max) {
		return 0, reset, false
	}
	w.curr++
	return max(int(float64(l.max)-used-1), 0), reset, true
}

// evict drops windows that no longer influence any decision.
func (l *limiter) evict() {
	cutoff := l.now().Truncate(l.size).Add(-l.size)

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.byKey {
		if w.start.Before(cutoff) {
			delete(l.byKey, k)
		}
	}
}

// RateLimit enforces a per-key sliding window limit and answers 429 once it
// is exceeded. Stale keys are evicted in the background until ctx is done.
// A non-positive Max or Window disables limiting.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := newLimiter(cfg)
	go func() {
		t := time.NewTicker(2 * l.size)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.evict()
			}
		}
	}()
	return l.middleware
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		left, reset, ok := l.take(l.key(r))

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(left))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if !ok {
			wait := max(reset.Sub(l.now()), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			WriteError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(HeaderUserID)); id != "" {
		return "user:" + id
	}
	return "ip:" + clientIP(r)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxPeekBody bounds how much of a request body is read to find the email.
const maxPeekBody = 64 << 10

// RateLimiter is an in-memory sliding window limiter. It is per process;
// several server replicas each keep their own windows.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewRateLimiter allows limit requests per key within window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
}

// Allow records a request for key and reports whether it fits the window.
// When it does not, retryAfter is the wait until the oldest request expires.
func (l *RateLimiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	ts := prune(l.windows[key], now.Add(-l.window))
	if len(ts) >= l.limit {
		l.windows[key] = ts
		return false, ts[0].Add(l.window).Sub(now)
	}
	l.windows[key] = append(ts, now)
	return true, 0
}

// Sweep drops keys whose windows have fully expired.
func (l *RateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	for k, ts := range l.windows {
		if ts = prune(ts, cutoff); len(ts) == 0 {
			delete(l.windows, k)
		} else {
			l.windows[k] = ts
		}
	}
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// RateLimitAuth throttles unauthenticated auth endpoints per client IP and,
// when the JSON body names one, per email. A nil limiter disables it.
func RateLimitAuth(l *RateLimiter, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keys := []string{"ip:" + clientIP(r)}
			if email := peekEmail(r); email != "" {
				keys = append(keys, "email:"+email)
			}
			for _, key := range keys {
				if ok, wait := l.Allow(key); !ok {
					log.Warn("auth rate limit exceeded", zap.String("path", r.URL.Path), zap.String("key", strings.SplitN(key, ":", 2)[0]))
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusTooManyRequests)
					_, _ = w.Write([]byte(`{"error":"too many attempts, please try again later"}` + "\n"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// peekEmail reads the "email" field of a JSON body and restores the body.
func peekEmail(r *http.Request) string {
	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
	if err != nil {
		return ""
	}
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

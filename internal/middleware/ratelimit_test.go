package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow("k"); !ok {
			t.Fatalf("request %d rejected", i)
		}
	}
	ok, wait := l.Allow("k")
	if ok {
		t.Fatal("third request within the window allowed")
	}
	if wait != time.Minute {
		t.Errorf("retry after = %v; want 1m", wait)
	}
	if ok, _ := l.Allow("other"); !ok {
		t.Error("keys must not share a window")
	}

	now = now.Add(time.Minute + time.Second)
	if ok, _ := l.Allow("k"); !ok {
		t.Error("request after the window rejected")
	}

	now = now.Add(2 * time.Minute)
	l.Sweep()
	if len(l.windows) != 0 {
		t.Errorf("sweep left %d keys", len(l.windows))
	}
}

func TestRateLimitAuth(t *testing.T) {
	l := NewRateLimiter(3, time.Minute)
	var bodies []string
	h := RateLimitAuth(l, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/verify", strings.NewReader(body))
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	// One email guessed from several addresses is limited by email.
	for i, ip := range []string{"192.0.2.1", "192.0.2.2", "192.0.2.3"} {
		if rec := send(ip, `{"email":"Amina@example.com","code":"000000"}`); rec.Code != http.StatusOK {
			t.Fatalf("attempt %d status = %d", i, rec.Code)
		}
	}
	rec := send("192.0.2.4", `{"email":"amina@example.com","code":"000000"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d; want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	// Different emails from one address are limited by address.
	for i := 0; i < 2; i++ {
		if rec := send("198.51.100.7", `{"email":"x`+string(rune('a'+i))+`@example.com"}`); rec.Code != http.StatusOK {
			t.Fatalf("address attempt %d status = %d", i, rec.Code)
		}
	}
	if rec := send("198.51.100.7", `{"email":"y@example.com"}`); rec.Code != http.StatusOK {
		t.Fatalf("third address attempt status = %d", rec.Code)
	}
	if rec := send("198.51.100.7", `{"email":"z@example.com"}`); rec.Code != http.StatusTooManyRequests {
		t.Errorf("fourth address attempt status = %d; want 429", rec.Code)
	}

	if bodies[0] != `{"email":"Amina@example.com","code":"000000"}` {
		t.Errorf("handler saw body %q", bodies[0])
	}
}

func TestRateLimitAuth_NilLimiterPassesThrough(t *testing.T) {
	next := &dummyHandler{}
	RateLimitAuth(nil, zap.NewNop())(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	if !next.called {
		t.Error("request not passed through")
	}
}

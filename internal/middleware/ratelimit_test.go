package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fakeClock(rl *RateLimiter) *time.Time {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return &now
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter()
	fakeClock(rl)

	for i := 0; i < 5; i++ {
		if ok, _ := rl.Allow("key", 5, time.Minute); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, wait := rl.Allow("key", 5, time.Minute)
	if ok {
		t.Error("6th request should be denied")
	}
	if wait != time.Minute {
		t.Errorf("wait = %v, want %v", wait, time.Minute)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter()
	now := fakeClock(rl)

	for i := 0; i < 3; i++ {
		rl.Allow("key", 3, 10*time.Second)
	}
	if ok, _ := rl.Allow("key", 3, 10*time.Second); ok {
		t.Error("should be blocked within window")
	}

	*now = now.Add(11 * time.Second)
	if ok, _ := rl.Allow("key", 3, 10*time.Second); !ok {
		t.Error("should be allowed after window expires")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter()
	now := fakeClock(rl)

	rl.Allow("expired", 5, 10*time.Second)
	*now = now.Add(15 * time.Second)
	rl.Allow("active", 5, time.Minute)

	if n := rl.Cleanup(); n != 1 {
		t.Errorf("cleaned = %d, want 1", n)
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.entries["expired"]; ok {
		t.Error("expired entry should have been cleaned up")
	}
	if _, ok := rl.entries["active"]; !ok {
		t.Error("active entry should still exist")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	fakeClock(rl)
	keyFunc := func(r *http.Request) string { return "test" }

	handler := RateLimit(rl, keyFunc, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want %q", got, "60")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"cloudflare", map[string]string{"CF-Connecting-IP": "1.1.1.1", "X-Forwarded-For": "2.2.2.2"}, "3.3.3.3:1", "1.1.1.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "2.2.2.2, 10.0.0.1"}, "3.3.3.3:1", "2.2.2.2"},
		{"remote addr", nil, "3.3.3.3:1234", "3.3.3.3"},
		{"bare remote", nil, "3.3.3.3", "3.3.3.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := RealIP(r); got != tt.want {
				t.Errorf("RealIP = %q, want %q", got, tt.want)
			}
		})
	}
}

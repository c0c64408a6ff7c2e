package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, host, remote string) int {
	r := httptest.NewRequest(http.MethodGet, "http://"+host+"/api/state", nil)
	r.Host = host
	r.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w.Code
}

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"links.example.com", "links.example.com", true},
		{"a.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"evil.com", "*.example.com", false},
		{"other.com", "links.example.com", false},
	}
	for _, tt := range tests {
		if got := matchHost(tt.host, tt.pattern); got != tt.want {
			t.Errorf("matchHost(%q, %q) = %v, want %v", tt.host, tt.pattern, got, tt.want)
		}
	}
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"localhost", "*.example.com"}, logger.Nop())(okHandler)

	if code := serve(h, "localhost:8080", "127.0.0.1:1"); code != http.StatusOK {
		t.Errorf("localhost:8080 got %d, want 200", code)
	}
	if code := serve(h, "Links.Example.com", "127.0.0.1:1"); code != http.StatusOK {
		t.Errorf("wildcard got %d, want 200", code)
	}
	if code := serve(h, "attacker.net", "127.0.0.1:1"); code != http.StatusForbidden {
		t.Errorf("foreign host got %d, want 403", code)
	}

	open := EnforceHost(nil, logger.Nop())(okHandler)
	if code := serve(open, "anything", "127.0.0.1:1"); code != http.StatusOK {
		t.Errorf("passthrough got %d, want 200", code)
	}
}

func TestAllowOnlyCIDRS(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"10.0.0.0/8"}, false, logger.Nop())(okHandler)

	if code := serve(h, "localhost", "10.2.3.4:999"); code != http.StatusOK {
		t.Errorf("allowed IP got %d, want 200", code)
	}
	if code := serve(h, "localhost", "192.168.0.1:999"); code != http.StatusForbidden {
		t.Errorf("denied IP got %d, want 403", code)
	}
}

func TestRateLimit(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	h := RateLimit(RateLimitConfig{
		Burst:             2,
		RefillPerIPPerMin: 60,
		Now:               func() time.Time { return now },
	})(okHandler)

	for i := 0; i < 2; i++ {
		if code := serve(h, "localhost", "1.1.1.1:1"); code != http.StatusOK {
			t.Fatalf("request %d got %d, want 200", i, code)
		}
	}

	r := httptest.NewRequest(http.MethodPost, "/api/bookmarks", nil)
	r.RemoteAddr = "1.1.1.1:1"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request got %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}

	// Other clients have their own bucket
	if code := serve(h, "localhost", "2.2.2.2:1"); code != http.StatusOK {
		t.Errorf("other client got %d, want 200", code)
	}

	now = now.Add(time.Second)
	if code := serve(h, "localhost", "1.1.1.1:1"); code != http.StatusOK {
		t.Errorf("after refill got %d, want 200", code)
	}
}

func TestLogCapturesStatus(t *testing.T) {
	h := Log(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw, ok := w.(*statusWriter)
		if !ok {
			t.Fatal("handler did not receive a statusWriter")
		}
		_, _ = w.Write([]byte("hi"))
		if sw.status != http.StatusOK || sw.bytes != 2 {
			t.Errorf("status=%d bytes=%d, want 200/2", sw.status, sw.bytes)
		}
	}))
	serve(h, "localhost", "127.0.0.1:1")
}

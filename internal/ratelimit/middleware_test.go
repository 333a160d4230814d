package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-checkout/internal/common"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHandlerLimitsPerUser(t *testing.T) {
	client, _ := newClient(t)
	counted := Handler{
		Limiter: Limiter{Client: client, Prefix: "rl:initiate:"},
		Config:  Config{Key: ByUser, Window: time.Minute, Max: 1},
	}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/paytm/initiateTransaction", nil)
	req = req.WithContext(common.WithUserID(req.Context(), "user-1"))

	rr := httptest.NewRecorder()
	counted.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	counted.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "RATE_LIMITED") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After")
	}

	other := httptest.NewRequest(http.MethodPost, "/api/paytm/initiateTransaction", nil)
	other = other.WithContext(common.WithUserID(other.Context(), "user-2"))
	rr = httptest.NewRecorder()
	counted.ServeHTTP(rr, other)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected other user allowed, got %d", rr.Code)
	}
}

func TestHandlerFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	var called bool
	counted := Handler{
		Limiter: Limiter{Client: client},
		Config:  Config{Key: ByUser, Window: time.Second, Max: 1},
		OnError: func(error) { called = true },
	}.Middleware(okHandler())

	rr := httptest.NewRecorder()
	counted.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || !called {
		t.Fatalf("expected fail-open with OnError, got %d called=%v", rr.Code, called)
	}
}

func TestByUserFallsBackToIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	if got := ByUser(req); got != "ip:203.0.113.9" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestPerIP(t *testing.T) {
	client, _ := newClient(t)
	mw, err := PerIP(client, "rl:callback", "1-M", false)
	if err != nil {
		t.Fatalf("per ip: %v", err)
	}
	handler := mw(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/paytm/callback", nil)
		req.RemoteAddr = "198.51.100.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, rr.Code)
		}
	}

	if _, err := PerIP(client, "x", "nonsense", false); err == nil {
		t.Fatal("expected rate parse error")
	}
}

package common_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/common"
)

func newIdem(t *testing.T) common.Idem {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return common.Idem{R: rdb}
}

func idemRequest(user, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/paytm/initiateTransaction", nil)
	req.Header.Set(common.IdempotencyHeader, key)
	return req.WithContext(common.WithUserID(req.Context(), user))
}

func TestIdemRejectsReplayPerUser(t *testing.T) {
	calls := 0
	h := newIdem(t).Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, idemRequest("user-1", "k1"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, idemRequest("user-1", "k1"))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "IDEMPOTENT_REPLAY")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, idemRequest("user-2", "k1"))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 2, calls)
}

func TestIdemReleasesKeyOnServerError(t *testing.T) {
	status := http.StatusBadGateway
	h := newIdem(t).Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, idemRequest("user-1", "k1"))
	require.Equal(t, http.StatusBadGateway, rr.Code)

	status = http.StatusOK
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, idemRequest("user-1", "k1"))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestIdemPassesThroughWithoutHeader(t *testing.T) {
	h := newIdem(t).Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for range 2 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/paytm/initiateTransaction", nil))
		require.Equal(t, http.StatusNoContent, rr.Code)
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, common.NewAppError("DUPLICATE_ORDER", "order already exists", http.StatusConflict, errors.New("23505")))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.JSONEq(t, `{"error":{"code":"DUPLICATE_ORDER","message":"order already exists"}}`, rr.Body.String())
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	rr = httptest.NewRecorder()
	common.WriteError(rr, errors.New("pool closed"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "pool closed")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:5123"
	require.Equal(t, "10.0.0.9", common.ClientIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.7")
	require.Equal(t, "192.0.2.7", common.ClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage, 203.0.113.4:8080, 10.0.0.1")
	require.Equal(t, "203.0.113.4", common.ClientIP(req))
}

func TestPrincipal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := common.UserID(req.Context())
	require.False(t, ok)

	ctx := common.WithPrincipal(req.Context(), common.Principal{UserID: "user-1", Email: "a@b.c"})
	p, ok := common.PrincipalFrom(ctx)
	require.True(t, ok)
	require.Equal(t, "a@b.c", p.Email)
	id, _ := common.UserID(ctx)
	require.Equal(t, "user-1", id)
}

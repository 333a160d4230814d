package order_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/order"
)

func newOrderRouter(t *testing.T, userID string) (http.Handler, *order.MemoryStore) {
	t.Helper()
	store := order.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), order.Order{
		ID:     "ORDER_abc",
		UserID: "owner",
		Amount: decimal.RequireFromString("120.50"),
		Items:  []order.Item{{Key: "tee-m", Name: "Tee", Price: decimal.RequireFromString("120.50"), Qty: 1}},
	}))
	h := &order.Handler{Store: store}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != "" {
				req = req.WithContext(common.WithUserID(req.Context(), userID))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/api/orders/{orderId}", h.Get)
	return r, store
}

func TestGetOrderForOwner(t *testing.T) {
	r, _ := newOrderRouter(t, "owner")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/orders/ORDER_abc", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "PENDING", body.Data["status"])
	require.Equal(t, "120.50", body.Data["amount"])
}

func TestGetOrderHidesOtherUsers(t *testing.T) {
	r, _ := newOrderRouter(t, "intruder")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/orders/ORDER_abc", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetOrderRequiresAuth(t *testing.T) {
	r, _ := newOrderRouter(t, "")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/orders/ORDER_abc", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetOrderRejectsMalformedID(t *testing.T) {
	r, _ := newOrderRouter(t, "owner")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/orders/bad-id", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

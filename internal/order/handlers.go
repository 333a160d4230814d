package order

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-checkout/internal/common"
)

// Handler exposes order lookups to the order's owner.
type Handler struct {
	Store Store
}

// Get returns the order's current payment status.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orderID := chi.URLParam(r, "orderId")
	if !ValidID(orderID) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ord, err := h.Store.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	if ord.UserID != userID {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": View(ord)})
}

// View renders the public representation of an order.
func View(o Order) map[string]any {
	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"key":     it.Key,
			"name":    it.Name,
			"price":   it.Price.StringFixed(2),
			"qty":     it.Qty,
			"size":    it.Size,
			"variant": it.Variant,
		})
	}
	out := map[string]any{
		"id":        o.ID,
		"status":    o.Status,
		"amount":    o.Amount.StringFixed(2),
		"items":     items,
		"createdAt": o.CreatedAt,
		"updatedAt": o.UpdatedAt,
	}
	if o.GatewayTxnID != "" {
		out["gatewayTxnId"] = o.GatewayTxnID
	}
	if o.Delivery != nil {
		out["delivery"] = o.Delivery
	}
	return out
}

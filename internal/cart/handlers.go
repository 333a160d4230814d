package cart

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/common"
)

// Handler wires the cart store to HTTP. All routes act on the signed-in user's cart.
type Handler struct {
	Store Store
}

type addItemRequest struct {
	Key     string          `json:"key" validate:"required,max=120"`
	Qty     int             `json:"qty" validate:"required,min=1,max=99"`
	Price   decimal.Decimal `json:"price"`
	Name    string          `json:"name" validate:"required,max=200"`
	Size    string          `json:"size" validate:"max=20"`
	Variant string          `json:"variant" validate:"max=40"`
}

type removeItemRequest struct {
	Qty int `json:"qty" validate:"omitempty,min=1"`
}

// Get returns the cart lines and subtotal.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	c, err := h.Store.Load(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load cart", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": View(c)})
}

// AddItem adds qty units of a line, creating it when needed.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if appErr := common.DecodeJSON(r, &req); appErr != nil {
		common.WriteError(w, appErr)
		return
	}
	if !req.Price.IsPositive() {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "validation failed", map[string]string{"price": "gt"})
		return
	}
	c, err := h.Store.Update(r.Context(), userID, func(c Cart) error {
		c.Add(strings.TrimSpace(req.Key), req.Qty, req.Price, req.Name, req.Size, req.Variant)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": View(c)})
}

// RemoveItem decrements a line, dropping it at zero.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req removeItemRequest
	if appErr := common.DecodeJSON(r, &req); appErr != nil {
		common.WriteError(w, appErr)
		return
	}
	if req.Qty == 0 {
		req.Qty = 1
	}
	key := chi.URLParam(r, "key")
	c, err := h.Store.Update(r.Context(), userID, func(c Cart) error {
		if _, ok := c[key]; !ok {
			return common.NewAppError("NOT_FOUND", "cart item not found", http.StatusNotFound, nil)
		}
		c.Remove(key, req.Qty)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": View(c)})
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	if err := h.Store.Clear(r.Context(), userID); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to clear cart", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return "", false
	}
	return userID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrConflict) {
		common.JSONError(w, http.StatusConflict, "CONFLICT", "cart was modified concurrently, retry", nil)
		return
	}
	common.WriteError(w, err)
}

// View renders the cart for API responses.
func View(c Cart) map[string]any {
	items := make([]map[string]any, 0, len(c))
	for _, k := range c.Keys() {
		it := c[k]
		items = append(items, map[string]any{
			"key":     k,
			"name":    it.Name,
			"price":   it.Price.StringFixed(2),
			"qty":     it.Qty,
			"size":    it.Size,
			"variant": it.Variant,
		})
	}
	return map[string]any{
		"items":    items,
		"subTotal": c.SubTotal().StringFixed(2),
	}
}

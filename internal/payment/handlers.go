package payment

import (
	"encoding/json"
	"net/http"

	"github.com/noah-isme/toko-checkout/internal/auth"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// Handler exposes the transaction initiation endpoint.
type Handler struct {
	Svc *Service
}

type initiateReq struct {
	Amount  json.Number `json:"amount" validate:"required"`
	Email   string      `json:"email" validate:"required,email"`
	OrderID string      `json:"orderId" validate:"required,max=50"`
}

type initiateResp struct {
	Token string `json:"token"`
}

// InitiateTransaction handles POST /api/paytm/initiateTransaction.
func (h *Handler) InitiateTransaction(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	sess, ok := auth.SessionFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	var req initiateReq
	if appErr := common.DecodeJSON(r, &req); appErr != nil {
		common.WriteError(w, appErr)
		return
	}
	amount, err := pricing.ParseAmount(req.Amount.String())
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "validation failed", map[string]string{"amount": "amount"})
		return
	}
	out, err := h.Svc.Initiate(r.Context(), InitiateInput{
		UserID:  sess.UserID,
		Email:   req.Email,
		OrderID: req.OrderID,
		Amount:  amount,
	})
	if err != nil {
		if !common.IsAppError(err) {
			h.Svc.Logger.Error().Err(err).Str("order_id", req.OrderID).Msg("initiate transaction")
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, initiateResp{Token: out.Token})
}

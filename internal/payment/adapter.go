package payment

import (
	"context"
	"net/http"

	"github.com/noah-isme/toko-checkout/internal/auth"
	"github.com/noah-isme/toko-checkout/internal/checkout"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// CheckoutInitiator binds the service to a shopper so the checkout flow can call it in process.
// The delivery details captured by the form are stored with the order.
func (s *Service) CheckoutInitiator(sess auth.Session, delivery *order.Delivery) checkout.InitiatorFunc {
	return func(ctx context.Context, req checkout.InitiateRequest) (checkout.InitiateResponse, error) {
		amount, err := pricing.ParseAmount(req.Amount.String())
		if err != nil {
			return checkout.InitiateResponse{}, common.NewAppError("VALIDATION_ERROR", "invalid amount", http.StatusBadRequest, err)
		}
		out, err := s.Initiate(ctx, InitiateInput{
			UserID:   sess.UserID,
			Email:    req.Email,
			OrderID:  req.OrderID,
			Amount:   amount,
			Delivery: delivery,
		})
		if err != nil {
			return checkout.InitiateResponse{}, err
		}
		return checkout.InitiateResponse{Token: out.Token}, nil
	}
}

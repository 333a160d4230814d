package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/paytm"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// Gateway is the part of the payment gateway client used here.
type Gateway interface {
	InitiateTransaction(ctx context.Context, req paytm.InitiateRequest) (paytm.InitiateResponse, error)
	OrderStatus(ctx context.Context, orderID string) (paytm.StatusResponse, error)
}

// CartReader loads the shopper's cart.
type CartReader interface {
	Load(ctx context.Context, userID string) (cart.Cart, error)
}

// Service creates orders and obtains transaction tokens for them.
type Service struct {
	Orders  order.Store
	Gateway Gateway
	// Carts is optional. When set, the requested amount must match the stored cart subtotal.
	Carts  CartReader
	Logger zerolog.Logger
}

// InitiateInput is a validated initiation request.
type InitiateInput struct {
	UserID   string
	Email    string
	OrderID  string
	Amount   decimal.Decimal
	Delivery *order.Delivery
}

// Initiated is the result of a successful initiation.
type Initiated struct {
	OrderID string
	Token   string
}

// Initiate records the order as PENDING and requests a transaction token from the gateway.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (Initiated, error) {
	if s == nil || s.Orders == nil || s.Gateway == nil {
		return Initiated{}, common.NewAppError("PAYMENT_NOT_CONFIGURED", "payment service unavailable", http.StatusInternalServerError, nil)
	}
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Initiate")
	defer span.End()

	result := "error"
	defer func() {
		span.SetAttributes(attribute.String("payment.initiate.result", result))
		obs.CountInitiate(result)
	}()

	in.OrderID = strings.TrimSpace(in.OrderID)
	in.Email = strings.TrimSpace(in.Email)
	span.SetAttributes(attribute.String("order.id", in.OrderID))
	if strings.TrimSpace(in.UserID) == "" {
		result = "unauthenticated"
		return Initiated{}, common.NewAppError("UNAUTHENTICATED", "login required", http.StatusUnauthorized, nil)
	}
	if !order.ValidID(in.OrderID) {
		result = "invalid"
		return Initiated{}, common.NewAppError("VALIDATION_ERROR", "invalid orderId", http.StatusBadRequest, nil)
	}
	if !in.Amount.IsPositive() {
		result = "invalid"
		return Initiated{}, common.NewAppError("VALIDATION_ERROR", "amount must be greater than zero", http.StatusBadRequest, nil)
	}

	var items []order.Item
	if s.Carts != nil {
		c, err := s.Carts.Load(ctx, in.UserID)
		if err != nil {
			return Initiated{}, err
		}
		if !c.Empty() {
			if subtotal := c.SubTotal(); !subtotal.Equal(in.Amount) {
				result = "amount_mismatch"
				return Initiated{}, common.NewAppError("AMOUNT_MISMATCH", "amount does not match cart subtotal", http.StatusBadRequest, nil).
					WithDetails(map[string]string{"expected": pricing.GatewayAmount(subtotal), "got": pricing.GatewayAmount(in.Amount)})
			}
			items = snapshot(c)
		}
	}

	o := order.Order{
		ID:       in.OrderID,
		UserID:   in.UserID,
		Email:    in.Email,
		Amount:   in.Amount,
		Status:   order.StatusPending,
		Items:    items,
		Delivery: in.Delivery,
	}
	if err := s.Orders.Create(ctx, o); err != nil {
		if errors.Is(err, order.ErrDuplicate) {
			result = "duplicate"
			return Initiated{}, common.NewAppError("DUPLICATE_ORDER", "order already exists", http.StatusConflict, err)
		}
		return Initiated{}, err
	}

	start := time.Now()
	resp, err := s.Gateway.InitiateTransaction(ctx, paytm.InitiateRequest{
		OrderID: in.OrderID,
		Amount:  pricing.GatewayAmount(in.Amount),
		CustID:  in.UserID,
		Email:   in.Email,
	})
	if err != nil {
		obs.ObserveGateway("initiate", "error", obs.DurationMillis(time.Since(start)))
		span.RecordError(err)
		result = "gateway_error"
		s.Logger.Warn().Err(err).Str("order_id", in.OrderID).Msg("initiate transaction failed")
		if _, terr := s.Orders.Transition(ctx, in.OrderID, order.StatusPending, order.StatusFailed, order.GatewayResult{Status: resp.ResultCode}); terr != nil {
			s.Logger.Error().Err(terr).Str("order_id", in.OrderID).Msg("mark order failed")
		} else {
			obs.CountTransition(string(order.StatusFailed))
		}
		return Initiated{}, common.NewAppError("GATEWAY_ERROR", "payment gateway unavailable", http.StatusBadGateway, err)
	}
	obs.ObserveGateway("initiate", "success", obs.DurationMillis(time.Since(start)))

	if err := s.Orders.SetToken(ctx, in.OrderID, resp.Token); err != nil {
		return Initiated{}, err
	}
	result = "success"
	s.Logger.Info().Str("order_id", in.OrderID).Str("user_id", in.UserID).Msg("transaction initiated")
	return Initiated{OrderID: in.OrderID, Token: resp.Token}, nil
}

func snapshot(c cart.Cart) []order.Item {
	items := make([]order.Item, 0, len(c))
	for _, key := range c.Keys() {
		it := c[key]
		items = append(items, order.Item{
			Key:     key,
			Name:    it.Name,
			Price:   it.Price,
			Qty:     it.Qty,
			Size:    it.Size,
			Variant: it.Variant,
		})
	}
	return items
}

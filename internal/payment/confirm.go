package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-checkout/internal/events"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/paytm"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// Publisher emits domain events.
type Publisher interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Locker serializes work on a key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Confirmer settles an order from the gateway's order status API. The callback payload is never
// trusted for the outcome; it only tells us which order to look at.
type Confirmer struct {
	Orders  order.Store
	Gateway Gateway
	Locker  Locker
	LockTTL time.Duration
	Events  Publisher
	Logger  zerolog.Logger
}

// Outcome describes what a confirmation did.
type Outcome struct {
	Order         order.Order
	GatewayStatus paytm.TxnStatus
	Transitioned  bool
}

// Confirm queries the gateway and moves a PENDING order to its terminal state.
// Terminal orders are returned untouched.
func (c *Confirmer) Confirm(ctx context.Context, orderID string) (Outcome, error) {
	if c == nil || c.Orders == nil || c.Gateway == nil {
		return Outcome{}, errors.New("payment: confirmer not configured")
	}
	ctx, span := otel.Tracer("payment.Confirmer").Start(ctx, "Confirmer.Confirm")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var out Outcome
	run := func(ctx context.Context) error {
		var err error
		out, err = c.confirm(ctx, orderID)
		return err
	}
	var err error
	if c.Locker != nil {
		err = c.Locker.WithLock(ctx, "lock:order:"+orderID, c.LockTTL, run)
	} else {
		err = run(ctx)
	}
	result := "unchanged"
	switch {
	case err != nil:
		result = "error"
		span.RecordError(err)
	case out.Transitioned:
		result = string(out.Order.Status)
	}
	obs.CountConfirm(result)
	return out, err
}

func (c *Confirmer) confirm(ctx context.Context, orderID string) (Outcome, error) {
	o, err := c.Orders.Get(ctx, orderID)
	if err != nil {
		return Outcome{}, err
	}
	if o.Status.Terminal() {
		return Outcome{Order: o}, nil
	}

	start := time.Now()
	status, err := c.Gateway.OrderStatus(ctx, orderID)
	if err != nil {
		obs.ObserveGateway("status", "error", obs.DurationMillis(time.Since(start)))
		return Outcome{Order: o}, fmt.Errorf("payment: order status %s: %w", orderID, err)
	}
	obs.ObserveGateway("status", "success", obs.DurationMillis(time.Since(start)))

	target, reason := decide(o, status)
	if target == "" {
		return Outcome{Order: o, GatewayStatus: status.Status}, nil
	}
	updated, err := c.Orders.Transition(ctx, orderID, order.StatusPending, target, order.GatewayResult{
		TxnID:  status.TxnID,
		Status: string(status.Status),
	})
	if errors.Is(err, order.ErrInvalidTransition) {
		// settled concurrently
		return Outcome{Order: updated, GatewayStatus: status.Status}, nil
	}
	if err != nil {
		return Outcome{Order: o, GatewayStatus: status.Status}, err
	}
	obs.CountTransition(string(target))
	c.Logger.Info().
		Str("order_id", orderID).
		Str("status", string(target)).
		Str("gateway_status", string(status.Status)).
		Str("reason", reason).
		Msg("order settled")
	c.publish(ctx, updated, reason)
	return Outcome{Order: updated, GatewayStatus: status.Status, Transitioned: true}, nil
}

func decide(o order.Order, status paytm.StatusResponse) (order.Status, string) {
	switch status.Status {
	case paytm.TxnSuccess:
		paid, err := decimal.NewFromString(status.Amount)
		if err != nil || !paid.Equal(o.Amount) {
			return order.StatusRejected, fmt.Sprintf("amount mismatch: paid %q expected %s", status.Amount, pricing.GatewayAmount(o.Amount))
		}
		return order.StatusFulfilled, ""
	case paytm.TxnFailure:
		return order.StatusFailed, status.ResultMsg
	default:
		return "", ""
	}
}

func (c *Confirmer) publish(ctx context.Context, o order.Order, reason string) {
	if c.Events == nil {
		return
	}
	topic, ok := events.TopicForStatus(string(o.Status))
	if !ok {
		return
	}
	payload := events.OrderPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		Email:   o.Email,
		Status:  string(o.Status),
		Amount:  pricing.GatewayAmount(o.Amount),
		TxnID:   o.GatewayTxnID,
		Reason:  reason,
	}
	if _, err := c.Events.Emit(ctx, topic, o.ID, payload); err != nil {
		c.Logger.Error().Err(err).Str("order_id", o.ID).Str("topic", topic).Msg("emit order event")
	}
}

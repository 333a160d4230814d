package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/events"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/payment"
)

// ErrStillPending makes asynq retry a reconciliation while the gateway has no final answer.
var ErrStillPending = errors.New("reconcile: payment still pending")

// ReconcileWorker re-runs payment confirmation for orders whose callback could not be settled.
type ReconcileWorker struct {
	Confirmer payment.OrderConfirmer
	Logger    zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (w ReconcileWorker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	if w.Confirmer == nil {
		return errors.New("reconcile: confirmer not configured")
	}
	_, p, err := events.DecodeOrder(task)
	if err != nil {
		return fmt.Errorf("reconcile: %v: %w", err, asynq.SkipRetry)
	}
	logger := w.Logger.With().Str("order_id", p.OrderID).Logger()
	out, err := w.Confirmer.Confirm(ctx, p.OrderID)
	if errors.Is(err, order.ErrNotFound) {
		logger.Warn().Msg("reconcile for unknown order")
		return nil
	}
	if err != nil {
		return err
	}
	if !out.Order.Status.Terminal() {
		return ErrStillPending
	}
	logger.Info().Str("status", string(out.Order.Status)).Bool("transitioned", out.Transitioned).Msg("order reconciled")
	return nil
}

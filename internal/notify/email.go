package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/events"
)

// EmailNotifier sends order emails for settled orders.
type EmailNotifier struct {
	Mail         common.EmailSender
	Enabled      bool
	TopicToggles map[string]bool
}

// ProcessTask implements asynq.Handler.
func (n EmailNotifier) ProcessTask(_ context.Context, task *asynq.Task) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[task.Type()]; ok && !enabled {
			return nil
		}
	}
	ev, payload, err := events.DecodeOrder(task)
	if err != nil {
		// a payload that cannot be decoded will never succeed
		return fmt.Errorf("email notify: %v: %w", err, asynq.SkipRetry)
	}
	to := strings.TrimSpace(payload.Email)
	if to == "" {
		return nil
	}
	return n.Mail.Send(to, subjectFor(ev.Topic, payload.OrderID), bodyFor(ev, payload))
}

func subjectFor(topic, orderID string) string {
	switch topic {
	case events.TopicOrderFulfilled:
		return fmt.Sprintf("Order %s confirmed", orderID)
	case events.TopicOrderFailed:
		return fmt.Sprintf("Payment for order %s failed", orderID)
	case events.TopicOrderRejected:
		return fmt.Sprintf("Payment for order %s could not be accepted", orderID)
	default:
		return fmt.Sprintf("Update on order %s", orderID)
	}
}

func bodyFor(ev events.Event, p events.OrderPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Order <strong>%s</strong> is now %s.</p>", p.OrderID, strings.ToLower(p.Status))
	if p.Amount != "" {
		fmt.Fprintf(&b, "<p>Amount: Rs %s</p>", p.Amount)
	}
	if p.TxnID != "" {
		fmt.Fprintf(&b, "<p>Transaction: %s</p>", p.TxnID)
	}
	if ev.Topic != events.TopicOrderFulfilled {
		b.WriteString("<p>Please try again from your cart or reply to this email for help.</p>")
	}
	fmt.Fprintf(&b, "<p><small>%s</small></p>", ev.OccurredAt.Format(time.RFC1123))
	return b.String()
}

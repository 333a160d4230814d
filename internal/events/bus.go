package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Enqueuer is the subset of *asynq.Client used by the bus.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Event is the envelope carried by every published task.
type Event struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// OrderPayload is the payload of order.* events.
type OrderPayload struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId,omitempty"`
	Email   string `json:"email,omitempty"`
	Status  string `json:"status,omitempty"`
	Amount  string `json:"amount,omitempty"`
	TxnID   string `json:"txnId,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Bus publishes domain events as asynq tasks. The task type is the topic.
type Bus struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
	// Unique suppresses duplicate tasks for the same topic and aggregate within the window.
	Unique time.Duration
	now    func() time.Time
}

// Emit encodes the event and enqueues it. A duplicate suppressed by Unique is not an error.
func (b *Bus) Emit(ctx context.Context, topic, aggregateID string, payload any) (Event, error) {
	if b == nil || b.Client == nil {
		return Event{}, errors.New("events: client not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	aggregateID = strings.TrimSpace(aggregateID)
	if aggregateID == "" {
		return Event{}, errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	now := time.Now
	if b.now != nil {
		now = b.now
	}
	ev := Event{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     encoded,
		OccurredAt:  now().UTC(),
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode event: %w", err)
	}
	_, err = b.Client.EnqueueContext(ctx, asynq.NewTask(topic, raw), b.options()...)
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return Event{}, fmt.Errorf("events: enqueue %s: %w", topic, err)
	}
	return ev, nil
}

func (b *Bus) options() []asynq.Option {
	var opts []asynq.Option
	if b.Queue != "" {
		opts = append(opts, asynq.Queue(b.Queue))
	}
	if b.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(b.MaxRetry))
	}
	if b.Unique > 0 {
		opts = append(opts, asynq.Unique(b.Unique))
	}
	return opts
}

// Decode parses a task produced by Emit.
func Decode(task *asynq.Task) (Event, error) {
	if task == nil {
		return Event{}, errors.New("events: nil task")
	}
	var ev Event
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return Event{}, fmt.Errorf("events: decode %s: %w", task.Type(), err)
	}
	if ev.Topic == "" {
		ev.Topic = task.Type()
	}
	return ev, nil
}

// DecodeOrder parses an order.* task payload.
func DecodeOrder(task *asynq.Task) (Event, OrderPayload, error) {
	ev, err := Decode(task)
	if err != nil {
		return Event{}, OrderPayload{}, err
	}
	var p OrderPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return ev, OrderPayload{}, fmt.Errorf("events: decode order payload: %w", err)
	}
	if p.OrderID == "" {
		p.OrderID = ev.AggregateID
	}
	return ev, p, nil
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		return validRaw(v)
	case json.RawMessage:
		return validRaw(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		return validRaw([]byte(v))
	default:
		return json.Marshal(v)
	}
}

func validRaw(v []byte) ([]byte, error) {
	if len(v) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(v) {
		return nil, errors.New("payload is not valid json")
	}
	return append([]byte(nil), v...), nil
}

package payment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/events"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/paytm"
)

const merchantKey = "Xk9#2mQ@7pL!4vZs"

type fakeGateway struct {
	mu          sync.Mutex
	token       string
	initErr     error
	status      paytm.StatusResponse
	statusErr   error
	initCalls   []paytm.InitiateRequest
	statusCalls int
}

func (g *fakeGateway) InitiateTransaction(_ context.Context, req paytm.InitiateRequest) (paytm.InitiateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls = append(g.initCalls, req)
	if g.initErr != nil {
		return paytm.InitiateResponse{ResultCode: "501"}, g.initErr
	}
	return paytm.InitiateResponse{Token: g.token}, nil
}

func (g *fakeGateway) OrderStatus(_ context.Context, orderID string) (paytm.StatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return paytm.StatusResponse{}, g.statusErr
	}
	out := g.status
	out.OrderID = orderID
	return out, nil
}

func (g *fakeGateway) statusCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusCalls
}

type emitted struct {
	topic   string
	id      string
	payload events.OrderPayload
}

type capturePublisher struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (p *capturePublisher) Emit(_ context.Context, topic, aggregateID string, payload any) (events.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return events.Event{}, p.err
	}
	op, _ := payload.(events.OrderPayload)
	p.events = append(p.events, emitted{topic: topic, id: aggregateID, payload: op})
	return events.Event{Topic: topic, AggregateID: aggregateID}, nil
}

func (p *capturePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func pendingOrder(t *testing.T, store order.Store, id, amount string) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), order.Order{
		ID:     id,
		UserID: "user-1",
		Email:  "shopper@example.com",
		Amount: decimal.RequireFromString(amount),
		Status: order.StatusPending,
	}))
}

func sign(t *testing.T, params map[string]string) string {
	t.Helper()
	checksum, err := paytm.GenerateSignature(params, merchantKey)
	require.NoError(t, err)
	return checksum
}

var errGatewayDown = errors.New("gateway down")

var lockTTL = 5 * time.Second

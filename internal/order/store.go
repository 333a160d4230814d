package order

import (
	"context"
	"sync"
	"time"
)

// Store persists orders.
type Store interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	SetToken(ctx context.Context, id, token string) error
	// Transition moves the order from one status to another. It fails with ErrInvalidTransition
	// when the stored status is not from.
	Transition(ctx context.Context, id string, from, to Status, result GatewayResult) (Order, error)
}

// MemoryStore keeps orders in process memory. It backs tests and local runs without Postgres.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]Order
	now    func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]Order), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return ErrDuplicate
	}
	now := s.now().UTC()
	if o.Status == "" {
		o.Status = StatusPending
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Items = append([]Item(nil), o.Items...)
	s.orders[o.ID] = o
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *MemoryStore) SetToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.TxnToken = token
	o.UpdatedAt = s.now().UTC()
	s.orders[id] = o
	return nil
}

func (s *MemoryStore) Transition(_ context.Context, id string, from, to Status, result GatewayResult) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.Status != from || !CanTransition(from, to) {
		return o, ErrInvalidTransition
	}
	o.Status = to
	if result.TxnID != "" {
		o.GatewayTxnID = result.TxnID
	}
	if result.Status != "" {
		o.GatewayStatus = result.Status
	}
	o.UpdatedAt = s.now().UTC()
	s.orders[id] = o
	return o, nil
}

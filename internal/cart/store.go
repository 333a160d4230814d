package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 5

// ErrConflict is returned when concurrent writers keep invalidating an update.
var ErrConflict = errors.New("cart: concurrent update")

// Store keeps one cart per user in Redis.
type Store struct {
	R   *redis.Client
	TTL time.Duration
}

func (s Store) key(userID string) string {
	return "cart:" + userID
}

func (s Store) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

// Load returns the user's cart. A missing cart is empty, not an error.
func (s Store) Load(ctx context.Context, userID string) (Cart, error) {
	if s.R == nil {
		return nil, errors.New("cart store not configured")
	}
	return load(ctx, s.R, s.key(userID))
}

// Update applies fn to the user's cart under optimistic locking and persists the result.
func (s Store) Update(ctx context.Context, userID string, fn func(Cart) error) (Cart, error) {
	if s.R == nil {
		return nil, errors.New("cart store not configured")
	}
	key := s.key(userID)
	var out Cart
	txf := func(tx *redis.Tx) error {
		c, err := load(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if c.Empty() {
				pipe.Del(ctx, key)
				return nil
			}
			raw, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("encode cart: %w", err)
			}
			pipe.Set(ctx, key, raw, s.ttl())
			return nil
		})
		if err == nil {
			out = c
		}
		return err
	}
	for i := 0; i < maxUpdateRetries; i++ {
		err := s.R.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, ErrConflict
}

// Clear removes the user's cart.
func (s Store) Clear(ctx context.Context, userID string) error {
	if s.R == nil {
		return errors.New("cart store not configured")
	}
	return s.R.Del(ctx, s.key(userID)).Err()
}

func load(ctx context.Context, r redis.Cmdable, key string) (Cart, error) {
	raw, err := r.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	c := Cart{}
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return c, nil
}

package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// DB is the subset of pgxpool.Pool used by PGStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists orders in Postgres.
type PGStore struct {
	DB DB
}

const orderColumns = `id, user_id, email, amount::text, status, txn_token, items, delivery,
	gateway_txn_id, gateway_status, created_at, updated_at`

func (s PGStore) Create(ctx context.Context, o Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	var delivery []byte
	if o.Delivery != nil {
		if delivery, err = json.Marshal(o.Delivery); err != nil {
			return fmt.Errorf("encode delivery: %w", err)
		}
	}
	status := o.Status
	if status == "" {
		status = StatusPending
	}
	_, err = s.DB.Exec(ctx, `INSERT INTO orders (id, user_id, email, amount, status, txn_token, items, delivery)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)`,
		o.ID, o.UserID, o.Email, o.Amount.StringFixed(2), string(status), o.TxnToken, items, delivery)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s PGStore) Get(ctx context.Context, id string) (Order, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (s PGStore) SetToken(ctx context.Context, id, token string) error {
	tag, err := s.DB.Exec(ctx, `UPDATE orders SET txn_token = $2, updated_at = now() WHERE id = $1`, id, token)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s PGStore) Transition(ctx context.Context, id string, from, to Status, result GatewayResult) (Order, error) {
	if !CanTransition(from, to) {
		return Order{}, ErrInvalidTransition
	}
	row := s.DB.QueryRow(ctx, `UPDATE orders
		SET status = $3,
			gateway_txn_id = COALESCE(NULLIF($4, ''), gateway_txn_id),
			gateway_status = COALESCE(NULLIF($5, ''), gateway_status),
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+orderColumns, id, string(from), string(to), result.TxnID, result.Status)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		current, getErr := s.Get(ctx, id)
		if getErr != nil {
			return Order{}, getErr
		}
		return current, ErrInvalidTransition
	}
	return o, err
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o        Order
		amount   string
		status   string
		items    []byte
		delivery []byte
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.Email, &amount, &status, &o.TxnToken, &items, &delivery,
		&o.GatewayTxnID, &o.GatewayStatus, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Order{}, fmt.Errorf("decode amount: %w", err)
	}
	o.Amount = parsed
	o.Status = Status(status)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return Order{}, fmt.Errorf("decode items: %w", err)
		}
	}
	if len(delivery) > 0 && string(delivery) != "null" {
		o.Delivery = &Delivery{}
		if err := json.Unmarshal(delivery, o.Delivery); err != nil {
			return Order{}, fmt.Errorf("decode delivery: %w", err)
		}
	}
	return o, nil
}

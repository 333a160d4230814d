package order

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order's payment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusFulfilled Status = "FULFILLED"
	StatusFailed    Status = "FAILED"
	StatusRejected  Status = "REJECTED"
)

// IDPrefix marks identifiers minted by the checkout flow.
const IDPrefix = "ORDER_"

const maxIDLength = 50

var (
	// ErrNotFound is returned when the order does not exist.
	ErrNotFound = errors.New("order: not found")
	// ErrDuplicate is returned when an order with the same id already exists.
	ErrDuplicate = errors.New("order: duplicate id")
	// ErrInvalidTransition is returned when the order is not in the expected state.
	ErrInvalidTransition = errors.New("order: invalid state transition")

	idPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusFulfilled, StatusFailed, StatusRejected:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// CanTransition reports whether moving from one status to another is allowed.
// Only pending orders move, and only into a terminal state.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

// Delivery holds the shipping details captured by the checkout form.
type Delivery struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Zipcode string `json:"zipcode"`
	City    string `json:"city"`
	State   string `json:"state"`
}

// Item is a snapshot of a cart line at the time the order was placed.
type Item struct {
	Key     string          `json:"key"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Qty     int             `json:"qty"`
	Size    string          `json:"size,omitempty"`
	Variant string          `json:"variant,omitempty"`
}

// Order is a checkout attempt tracked through payment confirmation.
type Order struct {
	ID            string
	UserID        string
	Email         string
	Amount        decimal.Decimal
	Status        Status
	TxnToken      string
	Items         []Item
	Delivery      *Delivery
	GatewayTxnID  string
	GatewayStatus string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GatewayResult is what the payment gateway reported when the order was settled.
type GatewayResult struct {
	TxnID  string
	Status string
}

// NewID mints a collision-resistant order identifier.
func NewID() string {
	return IDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidID reports whether id is acceptable as a gateway order id.
func ValidID(id string) bool {
	return id != "" && len(id) <= maxIDLength && idPattern.MatchString(id)
}

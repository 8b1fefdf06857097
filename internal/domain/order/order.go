// Package order builds and stores immutable order records: prices and
// option choices are frozen at checkout so later catalog edits cannot
// rewrite purchase history.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an order does not exist or belongs to a
// different user.
var ErrNotFound = errors.New("order not found")

// Status is the fulfilment state of an order. Transitions are unrestricted:
// any authorized update may set any status, and no status is terminal.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusPlaced         Status = "PLACED"
	StatusPreparing      Status = "PREPARING"
	StatusReadyForPickup Status = "READY_FOR_PICKUP"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

// StatusInitial is the canonical status assigned at checkout.
const StatusInitial = StatusPending

// InvalidStatusError indicates an unknown status value.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return "invalid order status " + e.Value
}

// ParseStatus validates a raw status value.
func ParseStatus(v string) (Status, error) {
	switch Status(v) {
	case StatusPending, StatusPlaced, StatusPreparing, StatusReadyForPickup,
		StatusOutForDelivery, StatusCompleted, StatusCancelled:
		return Status(v), nil
	}
	return "", &InvalidStatusError{Value: v}
}

// Order is an immutable record of a completed checkout. Only Status changes
// after creation.
type Order struct {
	ID           string
	UserID       string
	TotalAmount  decimal.Decimal
	Status       Status
	Notes        string
	DeliveryDate *time.Time
	Items        []Item
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Item is one order line with the product name and unit price denormalized
// at creation time and the chosen options frozen in Snapshot.
type Item struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	Snapshot    OptionSnapshot
}

// OptionSnapshot records the option selection as it existed at purchase
// time: the raw requested ids plus every option that was found and selected,
// with its name and price modifier.
type OptionSnapshot struct {
	SelectedOptionIDs []string
	SelectedOptions   []SnapshotOption
}

// SnapshotOption is one frozen option choice.
type SnapshotOption struct {
	ID            string
	Name          string
	PriceModifier decimal.Decimal
}

// Repository defines persistence operations for orders. Create persists the
// order and all of its items as one atomic unit.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetForUser(ctx context.Context, userID, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID string, status Status) error
}

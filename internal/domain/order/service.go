package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/petalmarket/petal/internal/domain/identity"
	"github.com/petalmarket/petal/internal/domain/pricing"
)

// ErrEmptyItems is returned for a checkout request with no lines.
var ErrEmptyItems = errors.New("items required")

// InvalidQuantityError indicates a checkout line with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return "quantity must be at least 1 for product " + e.ProductID
}

// Pricer resolves a product with an option selection into a priced quote.
// Satisfied by *pricing.Calculator.
type Pricer interface {
	Compute(ctx context.Context, productID string, selectedOptionIDs []string) (*pricing.Quote, error)
}

// CartClearer empties a user's cart after a successful checkout.
type CartClearer interface {
	ClearForUser(ctx context.Context, userID string) error
}

// ItemRequest is one checkout line.
type ItemRequest struct {
	ProductID         string
	Quantity          int
	SelectedOptionIDs []string
}

// CreateRequest is the checkout input.
type CreateRequest struct {
	Items        []ItemRequest
	Notes        string
	DeliveryDate *time.Time
}

// Service turns checkout requests into immutable, price-frozen orders.
type Service struct {
	orders Repository
	pricer Pricer
	carts  CartClearer
}

// NewService creates an order Service.
func NewService(orders Repository, pricer Pricer, carts CartClearer) *Service {
	return &Service{orders: orders, pricer: pricer, carts: carts}
}

// Create prices every requested line in input order, freezes the option
// choices into snapshots, and persists the order with all of its items as
// one atomic unit. Any unresolvable product aborts the whole order; there
// are no partial orders.
//
// After the order is persisted the user's cart is cleared best-effort: a
// failure there is logged and swallowed, and checkout still reports success.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Order, error) {
	if userID == "" {
		return nil, identity.ErrUnauthorized
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	now := time.Now().UTC()
	o := &Order{
		ID:           uuid.New().String(),
		UserID:       userID,
		Status:       StatusInitial,
		Notes:        req.Notes,
		DeliveryDate: req.DeliveryDate,
		TotalAmount:  decimal.Zero,
		Items:        make([]Item, 0, len(req.Items)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for _, line := range req.Items {
		if line.Quantity < 1 {
			return nil, &InvalidQuantityError{ProductID: line.ProductID}
		}

		q, err := s.pricer.Compute(ctx, line.ProductID, line.SelectedOptionIDs)
		if err != nil {
			return nil, err
		}

		lineTotal := q.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		o.TotalAmount = o.TotalAmount.Add(lineTotal)

		snapshot := OptionSnapshot{
			SelectedOptionIDs: line.SelectedOptionIDs,
			SelectedOptions:   make([]SnapshotOption, 0, len(q.Selected)),
		}
		for _, opt := range q.Selected {
			snapshot.SelectedOptions = append(snapshot.SelectedOptions, SnapshotOption{
				ID:            opt.ID,
				Name:          opt.Name,
				PriceModifier: opt.PriceModifier,
			})
		}

		o.Items = append(o.Items, Item{
			ID:          uuid.New().String(),
			OrderID:     o.ID,
			ProductID:   line.ProductID,
			ProductName: q.Product.Name,
			UnitPrice:   q.UnitPrice,
			Quantity:    line.Quantity,
			Snapshot:    snapshot,
		})
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	if err := s.carts.ClearForUser(ctx, userID); err != nil {
		zctx.From(ctx).Warn("clearing cart after checkout failed",
			zap.String("user_id", userID),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}

	return o, nil
}

// Get returns one of the user's orders. An order id belonging to another
// user reads as not found.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	if userID == "" {
		return nil, identity.ErrUnauthorized
	}
	return s.orders.GetForUser(ctx, userID, orderID)
}

// ListForUser returns all orders of the user, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	if userID == "" {
		return nil, identity.ErrUnauthorized
	}
	return s.orders.ListByUser(ctx, userID)
}

// UpdateStatus sets an order's status. Any member of the status enum is
// accepted; there is no enforced progression.
func (s *Service) UpdateStatus(ctx context.Context, userID, orderID string, raw string) (*Order, error) {
	if userID == "" {
		return nil, identity.ErrUnauthorized
	}
	status, err := ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	// Scoped lookup first so a foreign order id fails NotFound before any write.
	if _, err := s.orders.GetForUser(ctx, userID, orderID); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, orderID, status); err != nil {
		return nil, err
	}
	return s.orders.GetForUser(ctx, userID, orderID)
}

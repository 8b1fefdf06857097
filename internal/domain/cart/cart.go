// Package cart implements the shopping cart pipeline: identity resolution,
// line mutations, and the replace-semantics merge of anonymous session carts
// into user carts on login.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when the resolved owner has no cart.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when an item id does not exist inside the
	// resolved owner's cart. Items in other owners' carts are deliberately
	// indistinguishable from missing ones.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrInvalidQuantity is returned for quantities below 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Cart is a mutable set of prospective purchase lines owned by exactly one
// identity: a user or an anonymous session, never both.
type Cart struct {
	ID          string
	UserID      string
	AnonymousID string
	Items       []Item
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Item is one product with its selected options, quantity, and the unit
// price captured when the line was last written. The price is persisted at
// mutation time and never recomputed on read.
type Item struct {
	ID                string
	CartID            string
	ProductID         string
	ProductName       string
	Quantity          int
	SelectedOptionIDs []string
	UnitPrice         decimal.Decimal
	CreatedAt         time.Time
}

// Repository defines persistence operations for carts and their items.
//
// WithTx runs fn against a repository bound to a single transaction; the
// multi-step merge sequence uses it so a cart is never observably emptied
// without its merged lines inserted.
type Repository interface {
	WithTx(ctx context.Context, fn func(Repository) error) error

	FindByUser(ctx context.Context, userID string) (*Cart, error)
	FindByAnonymous(ctx context.Context, anonymousID string) (*Cart, error)
	Create(ctx context.Context, c *Cart) error
	Reload(ctx context.Context, cartID string) (*Cart, error)
	Delete(ctx context.Context, cartID string) error

	FindItemByProduct(ctx context.Context, cartID, productID string) (*Item, error)
	InsertItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error
	DeleteItem(ctx context.Context, cartID, itemID string) error
	DeleteItems(ctx context.Context, cartID string) error
}

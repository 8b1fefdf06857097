package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petalmarket/petal/internal/domain/cart"
)

const (
	findCartByUserSQL = `SELECT id, COALESCE(user_id, ''), COALESCE(anonymous_id, ''), created_at, updated_at
		FROM carts WHERE user_id = $1`

	findCartByAnonymousSQL = `SELECT id, COALESCE(user_id, ''), COALESCE(anonymous_id, ''), created_at, updated_at
		FROM carts WHERE anonymous_id = $1`

	findCartByIDSQL = `SELECT id, COALESCE(user_id, ''), COALESCE(anonymous_id, ''), created_at, updated_at
		FROM carts WHERE id = $1`

	createCartSQL = `INSERT INTO carts (id, user_id, anonymous_id)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))`

	deleteCartSQL = `DELETE FROM carts WHERE id = $1`

	listCartItemsSQL = `SELECT id, cart_id, product_id, product_name, quantity, selected_option_ids, unit_price, created_at
		FROM cart_items WHERE cart_id = $1 ORDER BY created_at, id`

	findItemByProductSQL = `SELECT id, cart_id, product_id, product_name, quantity, selected_option_ids, unit_price, created_at
		FROM cart_items WHERE cart_id = $1 AND product_id = $2 ORDER BY created_at, id LIMIT 1`

	insertCartItemSQL = `INSERT INTO cart_items (id, cart_id, product_id, product_name, quantity, selected_option_ids, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	updateCartItemSQL = `UPDATE cart_items
		SET quantity = $3, selected_option_ids = $4, unit_price = $5, product_name = $6
		WHERE cart_id = $1 AND id = $2`

	updateItemQuantitySQL = `UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND id = $2`

	deleteCartItemSQL  = `DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`
	deleteCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	touchCartSQL = `UPDATE carts SET updated_at = now() WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Item
// lookups are always scoped by cart id, so ownership checks are part of the
// query rather than application logic.
type CartRepository struct {
	pool *pgxpool.Pool
	conn querier
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool, conn: pool}
}

// WithTx runs fn against a repository bound to a single transaction. On a
// repository that is already transaction-bound, fn joins the open
// transaction.
func (r *CartRepository) WithTx(ctx context.Context, fn func(cart.Repository) error) error {
	if _, inTx := r.conn.(pgx.Tx); inTx {
		return fn(r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&CartRepository{pool: r.pool, conn: tx})
	})
}

// FindByUser returns the user's cart with all items loaded.
func (r *CartRepository) FindByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	return r.findCart(ctx, findCartByUserSQL, userID)
}

// FindByAnonymous returns the anonymous session's cart with all items loaded.
func (r *CartRepository) FindByAnonymous(ctx context.Context, anonymousID string) (*cart.Cart, error) {
	return r.findCart(ctx, findCartByAnonymousSQL, anonymousID)
}

// Reload returns the full cart by id, items included.
func (r *CartRepository) Reload(ctx context.Context, cartID string) (*cart.Cart, error) {
	return r.findCart(ctx, findCartByIDSQL, cartID)
}

func (r *CartRepository) findCart(ctx context.Context, sql, arg string) (*cart.Cart, error) {
	rows, err := r.conn.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("finding cart: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("finding cart: %w", err)
	}

	items, err := r.listItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return &c, nil
}

// Create persists a new cart row.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	_, err := r.conn.Exec(ctx, createCartSQL, c.ID, c.UserID, c.AnonymousID)
	if err != nil {
		return fmt.Errorf("creating cart %q: %w", c.ID, err)
	}
	return nil
}

// Delete removes a cart; its items go with it via ON DELETE CASCADE.
func (r *CartRepository) Delete(ctx context.Context, cartID string) error {
	_, err := r.conn.Exec(ctx, deleteCartSQL, cartID)
	if err != nil {
		return fmt.Errorf("deleting cart %q: %w", cartID, err)
	}
	return nil
}

// FindItemByProduct returns the cart's line for a product, or
// cart.ErrItemNotFound. When the merge path has left several lines for one
// product, the oldest wins.
func (r *CartRepository) FindItemByProduct(ctx context.Context, cartID, productID string) (*cart.Item, error) {
	rows, err := r.conn.Query(ctx, findItemByProductSQL, cartID, productID)
	if err != nil {
		return nil, fmt.Errorf("finding cart item: %w", err)
	}
	item, err := pgx.CollectOneRow(rows, scanCartItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, fmt.Errorf("finding cart item: %w", err)
	}
	return &item, nil
}

// InsertItem persists a new cart line.
func (r *CartRepository) InsertItem(ctx context.Context, item *cart.Item) error {
	_, err := r.conn.Exec(ctx, insertCartItemSQL,
		item.ID, item.CartID, item.ProductID, item.ProductName,
		item.Quantity, item.SelectedOptionIDs, item.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("inserting cart item %q: %w", item.ID, err)
	}
	r.touch(ctx, item.CartID)
	return nil
}

// UpdateItem overwrites quantity, option selection, unit price, and the
// denormalized product name of an existing line.
func (r *CartRepository) UpdateItem(ctx context.Context, item *cart.Item) error {
	tag, err := r.conn.Exec(ctx, updateCartItemSQL,
		item.CartID, item.ID,
		item.Quantity, item.SelectedOptionIDs, item.UnitPrice, item.ProductName,
	)
	if err != nil {
		return fmt.Errorf("updating cart item %q: %w", item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	r.touch(ctx, item.CartID)
	return nil
}

// UpdateItemQuantity overwrites only the quantity of a line, scoped to the
// cart. A zero-row update reads as the item not existing in this cart.
func (r *CartRepository) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error {
	tag, err := r.conn.Exec(ctx, updateItemQuantitySQL, cartID, itemID, quantity)
	if err != nil {
		return fmt.Errorf("updating cart item quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	r.touch(ctx, cartID)
	return nil
}

// DeleteItem removes one line, scoped to the cart.
func (r *CartRepository) DeleteItem(ctx context.Context, cartID, itemID string) error {
	tag, err := r.conn.Exec(ctx, deleteCartItemSQL, cartID, itemID)
	if err != nil {
		return fmt.Errorf("deleting cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	r.touch(ctx, cartID)
	return nil
}

// DeleteItems removes all lines of a cart, keeping the cart row.
func (r *CartRepository) DeleteItems(ctx context.Context, cartID string) error {
	_, err := r.conn.Exec(ctx, deleteCartItemsSQL, cartID)
	if err != nil {
		return fmt.Errorf("clearing cart %q: %w", cartID, err)
	}
	r.touch(ctx, cartID)
	return nil
}

func (r *CartRepository) listItems(ctx context.Context, cartID string) ([]cart.Item, error) {
	rows, err := r.conn.Query(ctx, listCartItemsSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	if items == nil {
		items = []cart.Item{}
	}
	return items, nil
}

// touch bumps the cart's updated_at. Failures are ignored: the timestamp is
// advisory and must not fail the mutation that already succeeded.
func (r *CartRepository) touch(ctx context.Context, cartID string) {
	_, _ = r.conn.Exec(ctx, touchCartSQL, cartID)
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var c cart.Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonymousID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.ProductName,
		&it.Quantity, &it.SelectedOptionIDs, &it.UnitPrice, &it.CreatedAt)
	return it, err
}

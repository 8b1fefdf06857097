package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petalmarket/petal/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, total_amount, status, notes, delivery_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, product_name, unit_price, quantity, option_snapshot, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getOrderForUserSQL = `SELECT id, user_id, total_amount, status, notes, delivery_date, created_at, updated_at
		FROM orders WHERE id = $1 AND user_id = $2`

	listOrdersByUserSQL = `SELECT id, user_id, total_amount, status, notes, delivery_date, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`

	listOrderItemsSQL = `SELECT id, order_id, product_id, product_name, unit_price, quantity, option_snapshot
		FROM order_items WHERE order_id = $1 ORDER BY position, id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The
// option snapshot of each item is stored as JSONB so the frozen choices
// survive any later catalog edits or deletions.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and all of its items inside one transaction:
// either every row lands or none does.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.UserID, o.TotalAmount, string(o.Status), o.Notes, o.DeliveryDate,
			o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		for i := range o.Items {
			item := &o.Items[i]
			snapshot, err := encodeOptionSnapshot(item.Snapshot)
			if err != nil {
				return fmt.Errorf("encoding option snapshot for item %q: %w", item.ID, err)
			}
			_, err = tx.Exec(ctx, insertOrderItemSQL,
				item.ID, o.ID, item.ProductID, item.ProductName,
				item.UnitPrice, item.Quantity, snapshot, i,
			)
			if err != nil {
				return fmt.Errorf("inserting order item %q: %w", item.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetForUser returns one of the user's orders with items. The lookup is
// scoped by user id, so a foreign order reads as not found.
func (r *OrderRepository) GetForUser(ctx context.Context, userID, orderID string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderForUserSQL, orderID, userID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	items, err := r.listItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

// ListByUser returns the user's orders without items, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return out, nil
}

// UpdateStatus sets the order's status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, orderID, string(status))
	if err != nil {
		return fmt.Errorf("updating order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) listItems(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := r.pool.Query(ctx, listOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	return items, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.TotalAmount, &status, &o.Notes,
		&o.DeliveryDate, &o.CreatedAt, &o.UpdatedAt)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it       order.Item
		snapshot []byte
	)
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
		&it.UnitPrice, &it.Quantity, &snapshot)
	if err != nil {
		return it, err
	}
	it.Snapshot, err = decodeOptionSnapshot(snapshot)
	return it, err
}

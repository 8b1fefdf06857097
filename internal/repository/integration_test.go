//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/petalmarket/petal/internal/domain/cart"
	"github.com/petalmarket/petal/internal/domain/catalog"
	"github.com/petalmarket/petal/internal/domain/order"
)

// setupTestDB starts a PostgreSQL container, applies the embedded schema,
// and returns a ready pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("petal_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedCatalog(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	for _, stmt := range []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO products (id, name, base_price, category_id, owner_id) VALUES ($1, $2, $3, $4, $5)`,
			[]any{"prod-rose", "Red Rose Bouquet", "990.00", "cat-bouquets", "vendor-1"}},
		{`INSERT INTO products (id, name, base_price) VALUES ($1, $2, $3)`,
			[]any{"prod-tulip", "Tulip Bundle", "450.00"}},
		{`INSERT INTO option_groups (id, product_id, name, is_required, min_select, max_select, position) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			[]any{"grp-extras", "prod-rose", "Extras", false, 0, 0, 1}},
		{`INSERT INTO option_groups (id, product_id, name, is_required, min_select, max_select, position) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			[]any{"grp-size", "prod-rose", "Size", true, 1, 1, 0}},
		{`INSERT INTO options (id, group_id, name, price_modifier, position) VALUES ($1, $2, $3, $4, $5)`,
			[]any{"opt-medium", "grp-size", "Medium", "300.00", 1}},
		{`INSERT INTO options (id, group_id, name, price_modifier, position) VALUES ($1, $2, $3, $4, $5)`,
			[]any{"opt-small", "grp-size", "Small", "0.00", 0}},
		{`INSERT INTO options (id, group_id, name, price_modifier, position) VALUES ($1, $2, $3, $4, $5)`,
			[]any{"opt-card", "grp-extras", "Greeting card", "50.00", 0}},
	} {
		_, err := pool.Exec(ctx, stmt.sql, stmt.args...)
		require.NoError(t, err)
	}
}

func TestProductRepository(t *testing.T) {
	pool := setupTestDB(t)
	seedCatalog(t, pool)
	repo := NewProductRepository(pool)
	ctx := context.Background()

	t.Run("GetByID", func(t *testing.T) {
		p, err := repo.GetByID(ctx, "prod-rose")
		require.NoError(t, err)

		assert.Equal(t, "Red Rose Bouquet", p.Name)
		assert.True(t, p.BasePrice.Equal(decimal.RequireFromString("990.00")))
		assert.Equal(t, "vendor-1", p.OwnerID)

		// Groups come back in position order, options likewise.
		require.Len(t, p.OptionGroups, 2)
		assert.Equal(t, "Size", p.OptionGroups[0].Name)
		assert.Equal(t, "Extras", p.OptionGroups[1].Name)
		require.Len(t, p.OptionGroups[0].Options, 2)
		assert.Equal(t, "Small", p.OptionGroups[0].Options[0].Name)
		assert.Equal(t, "Medium", p.OptionGroups[0].Options[1].Name)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "prod-nope")
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		products, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, "prod-rose", products[0].ID)
		assert.Len(t, products[0].OptionGroups, 2)
		assert.Empty(t, products[1].OptionGroups)
	})
}

func TestCartRepository(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewCartRepository(pool)
	ctx := context.Background()

	newCart := func(t *testing.T, id, userID, anonID string) {
		t.Helper()
		require.NoError(t, repo.Create(ctx, &cart.Cart{ID: id, UserID: userID, AnonymousID: anonID}))
	}

	t.Run("CreateAndFind", func(t *testing.T) {
		newCart(t, "cart-u1", "user-1", "")
		newCart(t, "cart-a1", "", "sess-1")

		c, err := repo.FindByUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "cart-u1", c.ID)
		assert.Empty(t, c.AnonymousID)
		assert.NotNil(t, c.Items)

		c, err = repo.FindByAnonymous(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "cart-a1", c.ID)

		_, err = repo.FindByUser(ctx, "user-nope")
		assert.ErrorIs(t, err, cart.ErrNotFound)
	})

	t.Run("OwnerExclusivityEnforced", func(t *testing.T) {
		err := repo.Create(ctx, &cart.Cart{ID: "cart-bad", UserID: "user-x", AnonymousID: "sess-x"})
		assert.Error(t, err, "a cart with both owner columns must be rejected")

		err = repo.Create(ctx, &cart.Cart{ID: "cart-bad2"})
		assert.Error(t, err, "a cart with no owner must be rejected")
	})

	t.Run("ItemLifecycle", func(t *testing.T) {
		newCart(t, "cart-u2", "user-2", "")

		item := &cart.Item{
			ID:                "item-1",
			CartID:            "cart-u2",
			ProductID:         "prod-rose",
			ProductName:       "Red Rose Bouquet",
			Quantity:          2,
			SelectedOptionIDs: []string{"opt-medium"},
			UnitPrice:         decimal.RequireFromString("1290.00"),
		}
		require.NoError(t, repo.InsertItem(ctx, item))

		found, err := repo.FindItemByProduct(ctx, "cart-u2", "prod-rose")
		require.NoError(t, err)
		assert.Equal(t, "item-1", found.ID)
		assert.Equal(t, []string{"opt-medium"}, found.SelectedOptionIDs)
		assert.True(t, found.UnitPrice.Equal(decimal.RequireFromString("1290.00")))

		require.NoError(t, repo.UpdateItemQuantity(ctx, "cart-u2", "item-1", 5))
		c, err := repo.Reload(ctx, "cart-u2")
		require.NoError(t, err)
		require.Len(t, c.Items, 1)
		assert.Equal(t, 5, c.Items[0].Quantity)

		require.NoError(t, repo.DeleteItem(ctx, "cart-u2", "item-1"))
		_, err = repo.FindItemByProduct(ctx, "cart-u2", "prod-rose")
		assert.ErrorIs(t, err, cart.ErrItemNotFound)
	})

	t.Run("ScopedUpdatesMissOtherCarts", func(t *testing.T) {
		newCart(t, "cart-u3", "user-3", "")
		newCart(t, "cart-u4", "user-4", "")
		require.NoError(t, repo.InsertItem(ctx, &cart.Item{
			ID: "item-u3", CartID: "cart-u3", ProductID: "p", ProductName: "P",
			Quantity: 1, UnitPrice: decimal.New(1, 0),
		}))

		err := repo.UpdateItemQuantity(ctx, "cart-u4", "item-u3", 9)
		assert.ErrorIs(t, err, cart.ErrItemNotFound)

		err = repo.DeleteItem(ctx, "cart-u4", "item-u3")
		assert.ErrorIs(t, err, cart.ErrItemNotFound)
	})

	t.Run("DeleteCascadesItems", func(t *testing.T) {
		newCart(t, "cart-a2", "", "sess-2")
		require.NoError(t, repo.InsertItem(ctx, &cart.Item{
			ID: "item-a2", CartID: "cart-a2", ProductID: "p", ProductName: "P",
			Quantity: 1, UnitPrice: decimal.New(1, 0),
		}))

		require.NoError(t, repo.Delete(ctx, "cart-a2"))

		var count int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT count(*) FROM cart_items WHERE cart_id = $1`, "cart-a2").Scan(&count))
		assert.Zero(t, count)
	})

	t.Run("WithTxRollsBackOnError", func(t *testing.T) {
		newCart(t, "cart-u5", "user-5", "")
		require.NoError(t, repo.InsertItem(ctx, &cart.Item{
			ID: "item-u5", CartID: "cart-u5", ProductID: "p", ProductName: "P",
			Quantity: 1, UnitPrice: decimal.New(1, 0),
		}))

		err := repo.WithTx(ctx, func(tx cart.Repository) error {
			if err := tx.DeleteItems(ctx, "cart-u5"); err != nil {
				return err
			}
			return errors.New("abort")
		})
		require.Error(t, err)

		c, err := repo.Reload(ctx, "cart-u5")
		require.NoError(t, err)
		assert.Len(t, c.Items, 1, "the clear must not be visible after rollback")
	})
}

func TestOrderRepository(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewOrderRepository(pool)
	ctx := context.Background()

	deliveryDate := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	placedAt := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	o := &order.Order{
		ID:           "order-1",
		UserID:       "user-1",
		TotalAmount:  decimal.RequireFromString("2580.00"),
		Status:       order.StatusPending,
		Notes:        "ring twice",
		DeliveryDate: &deliveryDate,
		CreatedAt:    placedAt,
		UpdatedAt:    placedAt,
		Items: []order.Item{
			{
				ID: "oitem-1", OrderID: "order-1", ProductID: "prod-rose",
				ProductName: "Red Rose Bouquet",
				UnitPrice:   decimal.RequireFromString("1290.00"),
				Quantity:    2,
				Snapshot: order.OptionSnapshot{
					SelectedOptionIDs: []string{"opt-medium"},
					SelectedOptions: []order.SnapshotOption{
						{ID: "opt-medium", Name: "Medium", PriceModifier: decimal.RequireFromString("300.00")},
					},
				},
			},
		},
	}
	require.NoError(t, repo.Create(ctx, o))

	t.Run("GetForUser", func(t *testing.T) {
		got, err := repo.GetForUser(ctx, "user-1", "order-1")
		require.NoError(t, err)

		assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("2580.00")))
		assert.Equal(t, order.StatusPending, got.Status)
		assert.True(t, got.CreatedAt.Equal(placedAt), "created_at is written by the application, not the column default")
		require.NotNil(t, got.DeliveryDate)
		assert.Equal(t, "2026-09-01", got.DeliveryDate.Format("2006-01-02"))

		require.Len(t, got.Items, 1)
		snap := got.Items[0].Snapshot
		assert.Equal(t, []string{"opt-medium"}, snap.SelectedOptionIDs)
		require.Len(t, snap.SelectedOptions, 1)
		assert.True(t, snap.SelectedOptions[0].PriceModifier.Equal(decimal.RequireFromString("300.00")))
	})

	t.Run("ForeignUserReadsAsMissing", func(t *testing.T) {
		_, err := repo.GetForUser(ctx, "user-2", "order-1")
		assert.ErrorIs(t, err, order.ErrNotFound)
	})

	t.Run("ListByUser", func(t *testing.T) {
		second := &order.Order{
			ID: "order-2", UserID: "user-1",
			TotalAmount: decimal.RequireFromString("450.00"),
			Status:      order.StatusPending,
			CreatedAt:   placedAt.Add(time.Hour),
			UpdatedAt:   placedAt.Add(time.Hour),
		}
		require.NoError(t, repo.Create(ctx, second))

		orders, err := repo.ListByUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, "order-2", orders[0].ID, "newest first")
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, "order-1", order.StatusOutForDelivery))

		got, err := repo.GetForUser(ctx, "user-1", "order-1")
		require.NoError(t, err)
		assert.Equal(t, order.StatusOutForDelivery, got.Status)

		assert.ErrorIs(t, repo.UpdateStatus(ctx, "order-nope", order.StatusCompleted), order.ErrNotFound)
	})

	t.Run("AtomicCreate", func(t *testing.T) {
		bad := &order.Order{
			ID: "order-bad", UserID: "user-1",
			TotalAmount: decimal.New(1, 0), Status: order.StatusPending,
			Items: []order.Item{
				{ID: "oitem-ok", OrderID: "order-bad", ProductID: "p", ProductName: "P",
					UnitPrice: decimal.New(1, 0), Quantity: 1},
				// Violates the quantity check, failing the second insert.
				{ID: "oitem-bad", OrderID: "order-bad", ProductID: "p", ProductName: "P",
					UnitPrice: decimal.New(1, 0), Quantity: 0},
			},
		}
		require.Error(t, repo.Create(ctx, bad))

		_, err := repo.GetForUser(ctx, "user-1", "order-bad")
		assert.ErrorIs(t, err, order.ErrNotFound, "no partial orders after a failed insert")
	})
}

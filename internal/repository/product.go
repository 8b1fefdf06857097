package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petalmarket/petal/internal/domain/catalog"
)

const (
	listProductsSQL = `SELECT id, name, base_price, category_id, owner_id
		FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, base_price, category_id, owner_id
		FROM products WHERE id = $1`

	getOptionGroupsSQL = `SELECT id, product_id, name, is_required, min_select, max_select
		FROM option_groups WHERE product_id = ANY($1)
		ORDER BY product_id, position, id`

	getOptionsSQL = `SELECT id, group_id, name, price_modifier
		FROM options WHERE group_id = ANY($1)
		ORDER BY group_id, position, id`
)

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by PostgreSQL.
// Option groups and options are loaded alongside the product, preserving
// the vendor-defined ordering.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products with their option groups, ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	if err := r.attachOptionGroups(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetByID returns a single product with its option groups and options.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	products := []catalog.Product{p}
	if err := r.attachOptionGroups(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// attachOptionGroups loads option groups and options for all given products
// in two batched queries and attaches them in order.
func (r *ProductRepository) attachOptionGroups(ctx context.Context, products []catalog.Product) error {
	if len(products) == 0 {
		return nil
	}

	productIDs := make([]string, len(products))
	byProduct := make(map[string]*catalog.Product, len(products))
	for i := range products {
		productIDs[i] = products[i].ID
		byProduct[products[i].ID] = &products[i]
	}

	rows, err := r.pool.Query(ctx, getOptionGroupsSQL, productIDs)
	if err != nil {
		return fmt.Errorf("loading option groups: %w", err)
	}

	type groupRow struct {
		group     catalog.OptionGroup
		productID string
	}
	groupRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (groupRow, error) {
		var g groupRow
		err := row.Scan(&g.group.ID, &g.productID, &g.group.Name,
			&g.group.IsRequired, &g.group.MinSelect, &g.group.MaxSelect)
		return g, err
	})
	if err != nil {
		return fmt.Errorf("loading option groups: %w", err)
	}
	if len(groupRows) == 0 {
		return nil
	}

	groupIDs := make([]string, len(groupRows))
	for i, g := range groupRows {
		groupIDs[i] = g.group.ID
	}

	rows, err = r.pool.Query(ctx, getOptionsSQL, groupIDs)
	if err != nil {
		return fmt.Errorf("loading options: %w", err)
	}
	optionsByGroup := make(map[string][]catalog.Option)
	type optionRow struct {
		option  catalog.Option
		groupID string
	}
	optionRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (optionRow, error) {
		var o optionRow
		err := row.Scan(&o.option.ID, &o.groupID, &o.option.Name, &o.option.PriceModifier)
		return o, err
	})
	if err != nil {
		return fmt.Errorf("loading options: %w", err)
	}
	for _, o := range optionRows {
		optionsByGroup[o.groupID] = append(optionsByGroup[o.groupID], o.option)
	}

	for _, g := range groupRows {
		g.group.Options = optionsByGroup[g.group.ID]
		p := byProduct[g.productID]
		p.OptionGroups = append(p.OptionGroups, g.group)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.BasePrice, &p.CategoryID, &p.OwnerID)
	return p, err
}

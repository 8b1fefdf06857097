// Package pricing computes unit prices for configurable products: the
// product's base price plus the modifiers of every selected option.
package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/petalmarket/petal/internal/domain/catalog"
)

// Quote is the result of pricing one product with a set of selected options.
type Quote struct {
	Product *catalog.Product
	// Selected contains every option that was both requested and found on
	// the product, in request order. Unknown ids are dropped silently.
	Selected  []catalog.Option
	UnitPrice decimal.Decimal
}

// Calculator prices products against the catalog read-side.
type Calculator struct {
	catalog catalog.Repository
}

// NewCalculator creates a Calculator over the given catalog repository.
func NewCalculator(c catalog.Repository) *Calculator {
	return &Calculator{catalog: c}
}

// Compute fetches the product and returns base price plus the sum of the
// modifiers of all matched selected options, using exact decimal arithmetic.
//
// Option ids that match nothing on the product are ignored without error.
// A duplicated id contributes its modifier once per occurrence; selection
// cardinality (min/max per group) is not validated here.
// Returns catalog.ErrNotFound when the product does not exist.
func (c *Calculator) Compute(ctx context.Context, productID string, selectedOptionIDs []string) (*Quote, error) {
	p, err := c.catalog.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrap(err, "get product")
	}

	q := &Quote{
		Product:   p,
		Selected:  make([]catalog.Option, 0, len(selectedOptionIDs)),
		UnitPrice: p.BasePrice,
	}
	for _, id := range selectedOptionIDs {
		o, ok := p.FindOption(id)
		if !ok {
			continue
		}
		q.UnitPrice = q.UnitPrice.Add(o.PriceModifier)
		q.Selected = append(q.Selected, o)
	}

	return q, nil
}

// Package catalog holds the read-side of the product catalog: configurable
// products with their option groups and options. Catalog CRUD lives upstream;
// this core only ever reads it to price carts and orders.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a configurable catalog item: a base price plus zero or more
// option groups whose options adjust the unit price.
type Product struct {
	ID         string
	Name       string
	BasePrice  decimal.Decimal
	CategoryID string
	OwnerID    string
	// OptionGroups keeps the vendor-defined ordering.
	OptionGroups []OptionGroup
}

// OptionGroup is a named set of options with selection cardinality bounds.
// MaxSelect == 0 means unbounded.
type OptionGroup struct {
	ID         string
	Name       string
	IsRequired bool
	MinSelect  int
	MaxSelect  int
	Options    []Option
}

// Option is a single add-on choice. PriceModifier is signed: options can
// discount as well as surcharge.
type Option struct {
	ID            string
	Name          string
	PriceModifier decimal.Decimal
}

// FindOption searches all option groups, flattened, for an option with the
// given id. The second return value reports whether it was found.
func (p *Product) FindOption(id string) (Option, bool) {
	for _, g := range p.OptionGroups {
		for _, o := range g.Options {
			if o.ID == id {
				return o, true
			}
		}
	}
	return Option{}, false
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}

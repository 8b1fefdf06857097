package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/petalmarket/petal/internal/domain/identity"
	"github.com/petalmarket/petal/internal/domain/pricing"
)

// Pricer computes the unit price and resolved options for a product with a
// given option selection. Satisfied by *pricing.Calculator.
type Pricer interface {
	Compute(ctx context.Context, productID string, selectedOptionIDs []string) (*pricing.Quote, error)
}

// ItemInput is one requested cart line: a product, a quantity, and the
// chosen option ids.
type ItemInput struct {
	ProductID         string
	Quantity          int
	SelectedOptionIDs []string
}

// Service implements the cart pipeline over a Repository and a Pricer.
type Service struct {
	carts  Repository
	pricer Pricer
}

// NewService creates a cart Service.
func NewService(carts Repository, pricer Pricer) *Service {
	return &Service{carts: carts, pricer: pricer}
}

// Get returns the caller's cart without creating one. When the identity has
// no cart (or no identity was supplied) an empty, unpersisted cart is
// returned so the read path never has side effects.
func (s *Service) Get(ctx context.Context, id identity.Identity) (*Cart, error) {
	c, err := s.find(ctx, s.carts, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Cart{Items: []Item{}}, nil
		}
		return nil, err
	}
	return c, nil
}

// AddItem adds a product to the caller's cart, creating the cart lazily.
// When the cart already holds a line for the product, the quantities are
// summed and the option selection is overwritten (not merged) with the new
// one; the unit price is recomputed for the new selection only. A caller
// with no identity at all gets a fresh anonymous cart.
//
// The returned cart is fully reloaded, never just the changed line.
func (s *Service) AddItem(ctx context.Context, id identity.Identity, in ItemInput) (*Cart, error) {
	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.resolve(ctx, s.carts, id)
	if err != nil {
		return nil, err
	}

	q, err := s.pricer.Compute(ctx, in.ProductID, in.SelectedOptionIDs)
	if err != nil {
		return nil, err
	}

	existing, err := s.carts.FindItemByProduct(ctx, c.ID, in.ProductID)
	switch {
	case err == nil:
		existing.Quantity += in.Quantity
		existing.SelectedOptionIDs = in.SelectedOptionIDs
		existing.UnitPrice = q.UnitPrice
		existing.ProductName = q.Product.Name
		if err := s.carts.UpdateItem(ctx, existing); err != nil {
			return nil, errors.Wrap(err, "update item")
		}
	case errors.Is(err, ErrItemNotFound):
		item := &Item{
			ID:                uuid.New().String(),
			CartID:            c.ID,
			ProductID:         in.ProductID,
			ProductName:       q.Product.Name,
			Quantity:          in.Quantity,
			SelectedOptionIDs: in.SelectedOptionIDs,
			UnitPrice:         q.UnitPrice,
		}
		if err := s.carts.InsertItem(ctx, item); err != nil {
			return nil, errors.Wrap(err, "insert item")
		}
	default:
		return nil, errors.Wrap(err, "find item by product")
	}

	return s.carts.Reload(ctx, c.ID)
}

// UpdateItem overwrites the quantity of an item in the caller's cart. The
// lookup is scoped to the resolved cart, so an item id belonging to another
// owner reads as not found. The unit price is left untouched.
func (s *Service) UpdateItem(ctx context.Context, id identity.Identity, itemID string, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.find(ctx, s.carts, id)
	if err != nil {
		return nil, err
	}
	if err := s.carts.UpdateItemQuantity(ctx, c.ID, itemID, quantity); err != nil {
		return nil, err
	}
	return s.carts.Reload(ctx, c.ID)
}

// RemoveItem deletes an item from the caller's cart under the same
// ownership-scoped lookup as UpdateItem.
func (s *Service) RemoveItem(ctx context.Context, id identity.Identity, itemID string) (*Cart, error) {
	c, err := s.find(ctx, s.carts, id)
	if err != nil {
		return nil, err
	}
	if err := s.carts.DeleteItem(ctx, c.ID, itemID); err != nil {
		return nil, err
	}
	return s.carts.Reload(ctx, c.ID)
}

// Merge reconciles cart state on login with replace semantics: the user
// cart's existing lines are discarded and rebuilt from the client-supplied
// lines plus whatever the anonymous session cart held. The anonymous cart is
// deleted so it cannot be merged twice. Every line is re-quoted at merge
// time; duplicate product ids in the merge list yield independent rows.
//
// The whole sequence runs in one transaction.
func (s *Service) Merge(ctx context.Context, userID string, localItems []ItemInput, anonymousID string) (*Cart, error) {
	if userID == "" {
		return nil, identity.ErrUnauthorized
	}

	var cartID string
	err := s.carts.WithTx(ctx, func(tx Repository) error {
		target, err := s.resolve(ctx, tx, identity.User(userID))
		if err != nil {
			return err
		}
		cartID = target.ID

		mergeList := localItems
		if anonymousID != "" {
			anon, err := tx.FindByAnonymous(ctx, anonymousID)
			switch {
			case err == nil:
				for _, it := range anon.Items {
					mergeList = append(mergeList, ItemInput{
						ProductID:         it.ProductID,
						Quantity:          it.Quantity,
						SelectedOptionIDs: it.SelectedOptionIDs,
					})
				}
				if err := tx.Delete(ctx, anon.ID); err != nil {
					return errors.Wrap(err, "delete anonymous cart")
				}
			case errors.Is(err, ErrNotFound):
				// Nothing to fold in.
			default:
				return errors.Wrap(err, "find anonymous cart")
			}
		}

		if err := tx.DeleteItems(ctx, target.ID); err != nil {
			return errors.Wrap(err, "clear target cart")
		}

		for _, in := range mergeList {
			q, err := s.pricer.Compute(ctx, in.ProductID, in.SelectedOptionIDs)
			if err != nil {
				return err
			}
			item := &Item{
				ID:                uuid.New().String(),
				CartID:            target.ID,
				ProductID:         in.ProductID,
				ProductName:       q.Product.Name,
				Quantity:          in.Quantity,
				SelectedOptionIDs: in.SelectedOptionIDs,
				UnitPrice:         q.UnitPrice,
			}
			if err := tx.InsertItem(ctx, item); err != nil {
				return errors.Wrap(err, "insert merged item")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.carts.Reload(ctx, cartID)
}

// ClearForUser deletes all items from the user's cart, keeping the cart row.
// Used by checkout; a user without a cart is not an error.
func (s *Service) ClearForUser(ctx context.Context, userID string) error {
	c, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return s.carts.DeleteItems(ctx, c.ID)
}

// find locates the caller's cart by identity preference (user first, then
// anonymous session) without ever creating one.
func (s *Service) find(ctx context.Context, repo Repository, id identity.Identity) (*Cart, error) {
	switch {
	case id.UserID != "":
		return repo.FindByUser(ctx, id.UserID)
	case id.AnonymousID != "":
		return repo.FindByAnonymous(ctx, id.AnonymousID)
	default:
		return nil, ErrNotFound
	}
}

// resolve locates the caller's cart, creating it lazily. A caller with no
// identity gets a freshly generated anonymous session id so the cart can
// still be created and handed back.
func (s *Service) resolve(ctx context.Context, repo Repository, id identity.Identity) (*Cart, error) {
	if id.IsEmpty() {
		id = identity.Anonymous(uuid.New().String())
	}

	c, err := s.find(ctx, repo, id)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	c = &Cart{
		ID:          uuid.New().String(),
		UserID:      id.UserID,
		AnonymousID: id.AnonymousID,
		Items:       []Item{},
	}
	if err := repo.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return c, nil
}

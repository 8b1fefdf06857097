package handler

import (
	"net/http"

	"github.com/petalmarket/petal/internal/domain/cart"
)

type cartResponse struct {
	ID          string             `json:"id,omitempty"`
	OwnerUserID string             `json:"ownerUserId,omitempty"`
	AnonymousID string             `json:"anonymousId,omitempty"`
	Items       []cartItemResponse `json:"items"`
}

type cartItemResponse struct {
	ID                string   `json:"id"`
	ProductID         string   `json:"productId"`
	ProductName       string   `json:"productName"`
	Quantity          int      `json:"quantity"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
	UnitPrice         float64  `json:"unitPrice"`
}

type addItemRequest struct {
	ProductID         string   `json:"productId"`
	Quantity          int      `json:"quantity"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type mergeRequest struct {
	Items       []addItemRequest `json:"items"`
	AnonymousID string           `json:"anonymousId"`
}

// GetCart handles GET /api/cart. A caller without a cart gets the empty
// shape; nothing is created on the read path.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), callerIdentity(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}

// AddCartItem handles POST /api/cart/items. The response carries the cart's
// anonymous id so first-time anonymous callers can persist their session.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.carts.AddItem(r.Context(), callerIdentity(r), cart.ItemInput{
		ProductID:         req.ProductID,
		Quantity:          req.Quantity,
		SelectedOptionIDs: req.SelectedOptionIDs,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}

// UpdateCartItem handles PATCH /api/cart/items/{id}. Only the quantity is
// writable; the captured unit price stays as it was.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.carts.UpdateItem(r.Context(), callerIdentity(r), r.PathValue("id"), req.Quantity)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}

// RemoveCartItem handles DELETE /api/cart/items/{id}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), callerIdentity(r), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}

// MergeCart handles POST /api/cart/merge: on login the client posts its
// local lines plus the anonymous session id, and the user cart is rebuilt
// from them with replace semantics.
func (h *Handler) MergeCart(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	items := make([]cart.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = cart.ItemInput{
			ProductID:         it.ProductID,
			Quantity:          it.Quantity,
			SelectedOptionIDs: it.SelectedOptionIDs,
		}
	}

	c, err := h.carts.Merge(r.Context(), callerIdentity(r).UserID, items, req.AnonymousID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}

func toCartResponse(c *cart.Cart) cartResponse {
	items := make([]cartItemResponse, len(c.Items))
	for i, it := range c.Items {
		ids := it.SelectedOptionIDs
		if ids == nil {
			ids = []string{}
		}
		items[i] = cartItemResponse{
			ID:                it.ID,
			ProductID:         it.ProductID,
			ProductName:       it.ProductName,
			Quantity:          it.Quantity,
			SelectedOptionIDs: ids,
			UnitPrice:         it.UnitPrice.InexactFloat64(),
		}
	}
	return cartResponse{
		ID:          c.ID,
		OwnerUserID: c.UserID,
		AnonymousID: c.AnonymousID,
		Items:       items,
	}
}

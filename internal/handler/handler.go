// Package handler exposes the marketplace core over HTTP. The surface is
// deliberately thin: it extracts the upstream-resolved caller identity,
// decodes JSON, delegates to the domain services, and maps domain errors to
// status codes. Money crosses this boundary as float64 for display only.
package handler

import (
	"net/http"

	"github.com/petalmarket/petal/internal/domain/cart"
	"github.com/petalmarket/petal/internal/domain/catalog"
	"github.com/petalmarket/petal/internal/domain/order"
)

// Handler wires the domain services to HTTP routes.
type Handler struct {
	products catalog.Repository
	carts    *cart.Service
	orders   *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products catalog.Repository, carts *cart.Service, orders *order.Service) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		orders:   orders,
	}
}

// Register mounts all API routes on the mux using method patterns.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/items", h.AddCartItem)
	mux.HandleFunc("PATCH /api/cart/items/{id}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.RemoveCartItem)
	mux.HandleFunc("POST /api/cart/merge", h.MergeCart)

	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("PATCH /api/orders/{id}/status", h.UpdateOrderStatus)
}

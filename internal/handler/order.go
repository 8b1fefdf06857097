package handler

import (
	"net/http"
	"time"

	"github.com/petalmarket/petal/internal/domain/order"
)

const deliveryDateLayout = "2006-01-02"

type createOrderRequest struct {
	Items        []addItemRequest `json:"items"`
	Notes        string           `json:"notes"`
	DeliveryDate string           `json:"deliveryDate"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderSummaryResponse struct {
	ID           string  `json:"id"`
	TotalAmount  float64 `json:"totalAmount"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"createdAt"`
	Notes        string  `json:"notes,omitempty"`
	DeliveryDate string  `json:"deliveryDate,omitempty"`
}

type orderDetailResponse struct {
	orderSummaryResponse
	Items []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ID             string                 `json:"id"`
	ProductID      string                 `json:"productId"`
	ProductName    string                 `json:"productName"`
	UnitPrice      float64                `json:"unitPrice"`
	Quantity       int                    `json:"quantity"`
	OptionSnapshot optionSnapshotResponse `json:"optionSnapshot"`
}

type optionSnapshotResponse struct {
	SelectedOptionIDs []string                 `json:"selectedOptionIds"`
	SelectedOptions   []snapshotOptionResponse `json:"selectedOptions"`
}

type snapshotOptionResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	PriceModifier float64 `json:"priceModifier"`
}

// CreateOrder handles POST /api/orders: prices the requested lines, freezes
// them into an order, and returns the summary.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var deliveryDate *time.Time
	if req.DeliveryDate != "" {
		d, err := time.Parse(deliveryDateLayout, req.DeliveryDate)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "deliveryDate must be YYYY-MM-DD")
			return
		}
		deliveryDate = &d
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemRequest{
			ProductID:         it.ProductID,
			Quantity:          it.Quantity,
			SelectedOptionIDs: it.SelectedOptionIDs,
		}
	}

	o, err := h.orders.Create(r.Context(), callerIdentity(r).UserID, order.CreateRequest{
		Items:        items,
		Notes:        req.Notes,
		DeliveryDate: deliveryDate,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, toOrderSummary(o))
}

// ListOrders handles GET /api/orders for the authenticated user.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListForUser(r.Context(), callerIdentity(r).UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	out := make([]orderSummaryResponse, len(orders))
	for i := range orders {
		out[i] = toOrderSummary(&orders[i])
	}
	respondJSON(w, r, http.StatusOK, out)
}

// GetOrder handles GET /api/orders/{id}, items and snapshots included.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), callerIdentity(r).UserID, r.PathValue("id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderDetail(o))
}

// UpdateOrderStatus handles PATCH /api/orders/{id}/status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), callerIdentity(r).UserID, r.PathValue("id"), req.Status)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderSummary(o))
}

func toOrderSummary(o *order.Order) orderSummaryResponse {
	out := orderSummaryResponse{
		ID:          o.ID,
		TotalAmount: o.TotalAmount.InexactFloat64(),
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
		Notes:       o.Notes,
	}
	if o.DeliveryDate != nil {
		out.DeliveryDate = o.DeliveryDate.Format(deliveryDateLayout)
	}
	return out
}

func toOrderDetail(o *order.Order) orderDetailResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		options := make([]snapshotOptionResponse, len(it.Snapshot.SelectedOptions))
		for j, so := range it.Snapshot.SelectedOptions {
			options[j] = snapshotOptionResponse{
				ID:            so.ID,
				Name:          so.Name,
				PriceModifier: so.PriceModifier.InexactFloat64(),
			}
		}
		ids := it.Snapshot.SelectedOptionIDs
		if ids == nil {
			ids = []string{}
		}
		items[i] = orderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice.InexactFloat64(),
			Quantity:    it.Quantity,
			OptionSnapshot: optionSnapshotResponse{
				SelectedOptionIDs: ids,
				SelectedOptions:   options,
			},
		}
	}
	return orderDetailResponse{
		orderSummaryResponse: toOrderSummary(o),
		Items:                items,
	}
}

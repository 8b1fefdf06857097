package handler

import (
	"net/http"

	"github.com/petalmarket/petal/internal/domain/catalog"
)

type productResponse struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	BasePrice    float64               `json:"basePrice"`
	CategoryID   string                `json:"categoryId,omitempty"`
	OwnerID      string                `json:"ownerId,omitempty"`
	OptionGroups []optionGroupResponse `json:"optionGroups"`
}

type optionGroupResponse struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	IsRequired bool             `json:"isRequired"`
	MinSelect  int              `json:"minSelect"`
	MaxSelect  int              `json:"maxSelect"`
	Options    []optionResponse `json:"options"`
}

type optionResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	PriceModifier float64 `json:"priceModifier"`
}

// ListProducts handles GET /api/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	out := make([]productResponse, len(products))
	for i := range products {
		out[i] = toProductResponse(&products[i])
	}
	respondJSON(w, r, http.StatusOK, out)
}

// GetProduct handles GET /api/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toProductResponse(p))
}

func toProductResponse(p *catalog.Product) productResponse {
	groups := make([]optionGroupResponse, len(p.OptionGroups))
	for i, g := range p.OptionGroups {
		options := make([]optionResponse, len(g.Options))
		for j, o := range g.Options {
			options[j] = optionResponse{
				ID:            o.ID,
				Name:          o.Name,
				PriceModifier: o.PriceModifier.InexactFloat64(),
			}
		}
		groups[i] = optionGroupResponse{
			ID:         g.ID,
			Name:       g.Name,
			IsRequired: g.IsRequired,
			MinSelect:  g.MinSelect,
			MaxSelect:  g.MaxSelect,
			Options:    options,
		}
	}
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		BasePrice:    p.BasePrice.InexactFloat64(),
		CategoryID:   p.CategoryID,
		OwnerID:      p.OwnerID,
		OptionGroups: groups,
	}
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/petalmarket/petal/internal/domain/cart"
	"github.com/petalmarket/petal/internal/domain/catalog"
	"github.com/petalmarket/petal/internal/domain/identity"
	"github.com/petalmarket/petal/internal/domain/order"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(r.Context()).Error("encoding response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, r, status, errorResponse{Code: status, Message: message})
}

// respondDomainError maps domain errors to HTTP status codes. NotFound and
// Unauthorized propagate verbatim as 404/401; validation errors become 400;
// anything else is logged and reported as 500.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrNotFound):
		respondError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, identity.ErrUnauthorized):
		respondError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyItems):
		respondError(w, r, http.StatusBadRequest, err.Error())
	default:
		var (
			iqErr *order.InvalidQuantityError
			isErr *order.InvalidStatusError
		)
		if errors.As(err, &iqErr) || errors.As(err, &isErr) {
			respondError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

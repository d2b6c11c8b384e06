package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rawconnect/marketplace/internal/cart"
	"github.com/rawconnect/marketplace/internal/catalog"
	"github.com/rawconnect/marketplace/internal/checkout"
	"github.com/rawconnect/marketplace/internal/order"
	"github.com/rawconnect/marketplace/internal/review"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain sentinels onto HTTP statuses:
// validation problems are 400, missing entities 404, business-rule
// conflicts (stock, duplicate review, illegal or stale transitions)
// 409, and everything else a generic 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrBelowMinimumOrder),
		errors.Is(err, order.ErrReasonRequired),
		errors.Is(err, order.ErrUnknownStatus),
		errors.Is(err, review.ErrInvalidRating),
		errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrWrongActor):
		writeError(w, http.StatusForbidden, err.Error())

	case errors.Is(err, cart.ErrInsufficientStock),
		errors.Is(err, checkout.ErrInsufficientStock),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrStaleStatus),
		errors.Is(err, review.ErrAlreadyReviewed),
		errors.Is(err, review.ErrNotEligible):
		writeError(w, http.StatusConflict, err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

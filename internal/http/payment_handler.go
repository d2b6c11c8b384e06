package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rawconnect/marketplace/internal/payment"
)

// PaymentCreator starts a payment on the upstream gateway.
type PaymentCreator interface {
	CreatePayment(ctx context.Context, amount float64) (*payment.CreatePaymentResult, error)
}

type PaymentHandler struct {
	cards   payment.CardRepository
	creator PaymentCreator
	now     func() time.Time
}

func NewPaymentHandler(cards payment.CardRepository, creator PaymentCreator) *PaymentHandler {
	return &PaymentHandler{cards: cards, creator: creator, now: time.Now}
}

// maskedCard is what leaves the service: never the full PAN.
type maskedCard struct {
	CardHolder string `json:"cardHolder"`
	LastFour   string `json:"lastFour"`
	ExpiryDate string `json:"expiryDate"`
}

func (h *PaymentHandler) GetStoredCard(w http.ResponseWriter, r *http.Request) {
	userEmail := chi.URLParam(r, "userEmail")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	card, err := h.cards.Get(ctx, userEmail)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load card")
		return
	}
	if card == nil {
		writeError(w, http.StatusNotFound, "no stored card")
		return
	}
	writeJSON(w, http.StatusOK, maskedCard{
		CardHolder: card.CardHolder,
		LastFour:   card.LastFour,
		ExpiryDate: card.ExpiryDate,
	})
}

func (h *PaymentHandler) SaveStoredCard(w http.ResponseWriter, r *http.Request) {
	userEmail := chi.URLParam(r, "userEmail")

	var in payment.CardInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if fieldErrs := in.Validate(h.now()); len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": fieldErrs})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	card := payment.Card{
		UserEmail:  userEmail,
		CardNumber: in.CardNumber,
		CardHolder: in.CardHolder,
		ExpiryDate: in.ExpiryDate,
	}
	if err := h.cards.Save(ctx, &card); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save card")
		return
	}
	writeJSON(w, http.StatusOK, maskedCard{
		CardHolder: card.CardHolder,
		LastFour:   card.LastFour,
		ExpiryDate: card.ExpiryDate,
	})
}

type createPaymentRequest struct {
	Amount float64 `json:"amount"`
}

// CreatePayment asks the gateway for an approval URL the app can open.
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	result, err := h.creator.CreatePayment(ctx, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadGateway, "payment gateway unavailable")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

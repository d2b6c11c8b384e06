package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rawconnect/marketplace/internal/checkout"
	"github.com/rawconnect/marketplace/internal/payment"
)

// PaymentExecutor captures an approved PayPal payment via the proxy.
type PaymentExecutor interface {
	ExecutePayment(ctx context.Context, paymentID, payerID string) (*payment.CaptureResult, error)
}

type CheckoutHandler struct {
	svc      *checkout.Service
	cards    payment.CardRepository
	executor PaymentExecutor
	now      func() time.Time
}

func NewCheckoutHandler(svc *checkout.Service, cards payment.CardRepository, executor PaymentExecutor) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, cards: cards, executor: executor, now: time.Now}
}

type checkoutRequest struct {
	PaymentMethod string             `json:"paymentMethod"` // "card" or "paypal"
	UseStoredCard bool               `json:"useStoredCard"`
	CVV           string             `json:"cvv"`
	Card          *payment.CardInput `json:"card"`
	PayPal        *struct {
		PaymentID string `json:"paymentId"`
		PayerID   string `json:"payerId"`
	} `json:"paypal"`
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userEmail := chi.URLParam(r, "userEmail")
	if userEmail == "" {
		writeError(w, http.StatusBadRequest, "missing userEmail")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var info checkout.PaymentInfo
	switch req.PaymentMethod {
	case "paypal":
		if req.PayPal == nil || req.PayPal.PaymentID == "" {
			writeError(w, http.StatusBadRequest, "missing paypal payment details")
			return
		}
		capture, err := h.executor.ExecutePayment(ctx, req.PayPal.PaymentID, req.PayPal.PayerID)
		if err != nil || !capture.Success {
			writeError(w, http.StatusBadGateway, "payment capture failed")
			return
		}
		info = checkout.PaymentInfo{Method: "PayPal"}

	case "card":
		pi, ok := h.cardPaymentInfo(ctx, w, userEmail, &req)
		if !ok {
			return
		}
		info = pi

	default:
		writeError(w, http.StatusBadRequest, "unknown payment method")
		return
	}

	orders, err := h.svc.Checkout(ctx, userEmail, info)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "order placed",
		"orders": orders,
	})
}

// cardPaymentInfo validates the card flow and returns the payment
// snapshot. A freshly entered card is stored for the next checkout,
// exactly like the original screen did.
func (h *CheckoutHandler) cardPaymentInfo(ctx context.Context, w http.ResponseWriter, userEmail string, req *checkoutRequest) (checkout.PaymentInfo, bool) {
	if req.UseStoredCard {
		if errs := payment.ValidateCVV(req.CVV); len(errs) > 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
			return checkout.PaymentInfo{}, false
		}

		stored, err := h.cards.Get(ctx, userEmail)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load stored card")
			return checkout.PaymentInfo{}, false
		}
		if stored == nil {
			writeError(w, http.StatusNotFound, "no stored card")
			return checkout.PaymentInfo{}, false
		}

		return checkout.PaymentInfo{
			Method:     "Credit Card",
			CardLast4:  stored.LastFour,
			CardHolder: stored.CardHolder,
		}, true
	}

	if req.Card == nil {
		writeError(w, http.StatusBadRequest, "missing card details")
		return checkout.PaymentInfo{}, false
	}
	if errs := req.Card.Validate(h.now()); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return checkout.PaymentInfo{}, false
	}

	card := &payment.Card{
		UserEmail:  userEmail,
		CardNumber: req.Card.CardNumber,
		CardHolder: req.Card.CardHolder,
		ExpiryDate: req.Card.ExpiryDate,
		LastFour:   payment.LastFourOf(req.Card.CardNumber),
	}
	if err := h.cards.Save(ctx, card); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save card")
		return checkout.PaymentInfo{}, false
	}

	return checkout.PaymentInfo{
		Method:     "Credit Card",
		CardLast4:  card.LastFour,
		CardHolder: card.CardHolder,
	}, true
}

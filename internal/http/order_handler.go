package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rawconnect/marketplace/internal/order"
)

type OrderHandler struct {
	repo order.Repository
	svc  *order.Service
}

func NewOrderHandler(repo order.Repository, svc *order.Service) *OrderHandler {
	return &OrderHandler{repo: repo, svc: svc}
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing orderId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.repo.GetByID(ctx, orderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	if o == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) ListBuyerOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, chi.URLParam(r, "buyerEmail"), h.repo.ListByBuyer)
}

func (h *OrderHandler) ListVendorOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, chi.URLParam(r, "vendorEmail"), h.repo.ListByVendor)
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request, email string, list func(context.Context, string) ([]order.Order, error)) {
	if email == "" {
		writeError(w, http.StatusBadRequest, "missing email")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orders, err := list(ctx, email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

type statusChangeRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

func (h *OrderHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing orderId")
		return
	}

	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	actor := order.Actor(req.Actor)
	if actor != order.ActorBuyer && actor != order.ActorVendor {
		writeError(w, http.StatusBadRequest, "actor must be buyer or vendor")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.svc.ChangeStatus(ctx, orderID, order.Status(req.Status), actor, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

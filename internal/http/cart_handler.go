package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rawconnect/marketplace/internal/cart"
	"github.com/rawconnect/marketplace/internal/catalog"
)

type CartHandler struct {
	svc     *cart.Service
	catalog catalog.Repository
}

func NewCartHandler(svc *cart.Service, catalogRepo catalog.Repository) *CartHandler {
	return &CartHandler{svc: svc, catalog: catalogRepo}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userEmail := chi.URLParam(r, "userEmail")
	if userEmail == "" {
		writeError(w, http.StatusBadRequest, "missing userEmail")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.svc.List(ctx, userEmail)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return
	}
	if items == nil {
		items = []cart.Item{}
	}

	total := 0.0
	for _, it := range items {
		total += it.Subtotal()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userEmail": userEmail,
		"items":     items,
		"total":     total,
	})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userEmail := chi.URLParam(r, "userEmail")
	if userEmail == "" {
		writeError(w, http.StatusBadRequest, "missing userEmail")
		return
	}

	var body struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.ProductID == "" {
		writeError(w, http.StatusBadRequest, "missing productId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	product, err := h.catalog.Get(ctx, body.ProductID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	item, err := h.svc.AddItem(ctx, userEmail, product, body.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	item, err := h.svc.UpdateQuantity(ctx, itemID, body.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.svc.RemoveItem(ctx, itemID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

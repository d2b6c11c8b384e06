package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rawconnect/marketplace/internal/catalog"
	"github.com/rawconnect/marketplace/internal/media"
)

type ProductHandler struct {
	repo     catalog.Repository
	uploader *media.Uploader
}

func NewProductHandler(repo catalog.Repository, uploader *media.Uploader) *ProductHandler {
	return &ProductHandler{repo: repo, uploader: uploader}
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.repo.Get(ctx, productID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "missing category")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	products, err := h.repo.ListByCategory(ctx, category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load products")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) ListVendorProducts(w http.ResponseWriter, r *http.Request) {
	vendorEmail := chi.URLParam(r, "vendorEmail")
	if vendorEmail == "" {
		writeError(w, http.StatusBadRequest, "missing vendorEmail")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	products, err := h.repo.ListByVendor(ctx, vendorEmail)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load products")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

type productRequest struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	UnitMeasure  string  `json:"unitMeasure"`
	MinimumOrder int     `json:"minimumOrder"`
	VendorEmail  string  `json:"vendorEmail"`
	ImageURL     string  `json:"imageUrl"`
}

func (req *productRequest) validate() map[string]string {
	errs := map[string]string{}
	if req.Name == "" {
		errs["name"] = "name is required"
	}
	if req.Category == "" {
		errs["category"] = "category is required"
	}
	if req.Price <= 0 {
		errs["price"] = "price must be positive"
	}
	if req.Quantity < 0 {
		errs["quantity"] = "quantity cannot be negative"
	}
	return errs
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.VendorEmail == "" {
		writeError(w, http.StatusBadRequest, "missing vendorEmail")
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p := catalog.Product{
		Name:         req.Name,
		Category:     req.Category,
		Price:        req.Price,
		Quantity:     req.Quantity,
		UnitMeasure:  req.UnitMeasure,
		MinimumOrder: req.MinimumOrder,
		VendorEmail:  req.VendorEmail,
		ImageURL:     req.ImageURL,
	}
	if err := h.repo.Create(ctx, &p); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create product")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p := catalog.Product{
		ID:           productID,
		Name:         req.Name,
		Category:     req.Category,
		Price:        req.Price,
		Quantity:     req.Quantity,
		UnitMeasure:  req.UnitMeasure,
		MinimumOrder: req.MinimumOrder,
		ImageURL:     req.ImageURL,
	}
	if err := h.repo.Update(ctx, &p); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.repo.Delete(ctx, productID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// UploadImage forwards a product photo to the media host and returns
// the public URL to store on the product.
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeError(w, http.StatusServiceUnavailable, "image upload not configured")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	url, err := h.uploader.Upload(ctx, header.Filename, io.LimitReader(file, 10<<20))
	if err != nil {
		writeError(w, http.StatusBadGateway, "image upload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"imageUrl": url})
}

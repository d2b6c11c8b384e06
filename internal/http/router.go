package httpapi

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rawconnect/marketplace/internal/middleware"
)

// Deps carries everything the router needs. Handlers receive their
// collaborators here instead of reaching for globals, so tests can
// swap in fakes.
type Deps struct {
	Logger *log.Logger

	Products *ProductHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrderHandler
	Reviews  *ReviewHandler
	Payments *PaymentHandler
	Geo      *GeoHandler

	CORSAllowOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.CORS(d.CORSAllowOrigins))
	r.Use(middleware.Recover(d.Logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", d.Products.ListProducts)
		r.Post("/", d.Products.CreateProduct)
		r.Get("/{productId}", d.Products.GetProduct)
		r.Put("/{productId}", d.Products.UpdateProduct)
		r.Delete("/{productId}", d.Products.DeleteProduct)
		r.Post("/images", d.Products.UploadImage)

		r.Get("/{productId}/reviews", d.Reviews.ListReviews)
		r.Post("/{productId}/reviews", d.Reviews.SubmitReview)
		r.Get("/{productId}/reviews/eligibility", d.Reviews.Eligibility)
	})

	r.Get("/api/vendors/{vendorEmail}/products", d.Products.ListVendorProducts)

	r.Route("/api/cart/{userEmail}", func(r chi.Router) {
		r.Get("/", d.Cart.GetCart)
		r.Post("/items", d.Cart.AddItem)
		r.Put("/items/{itemId}", d.Cart.UpdateQuantity)
		r.Delete("/items/{itemId}", d.Cart.RemoveItem)
		r.Post("/checkout", d.Checkout.Checkout)
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/{orderId}", d.Orders.GetOrder)
		r.Put("/{orderId}/status", d.Orders.ChangeStatus)
	})
	r.Get("/api/buyers/{buyerEmail}/orders", d.Orders.ListBuyerOrders)
	r.Get("/api/vendors/{vendorEmail}/orders", d.Orders.ListVendorOrders)

	r.Route("/api/payments", func(r chi.Router) {
		r.Get("/cards/{userEmail}", d.Payments.GetStoredCard)
		r.Put("/cards/{userEmail}", d.Payments.SaveStoredCard)
		r.Post("/create", d.Payments.CreatePayment)
	})

	r.Get("/api/geocode/reverse", d.Geo.ReverseGeocode)

	return r
}

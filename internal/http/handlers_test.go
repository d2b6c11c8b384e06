package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/rawconnect/marketplace/internal/cart"
	"github.com/rawconnect/marketplace/internal/catalog"
	"github.com/rawconnect/marketplace/internal/checkout"
	"github.com/rawconnect/marketplace/internal/geo"
	"github.com/rawconnect/marketplace/internal/media"
	"github.com/rawconnect/marketplace/internal/order"
	"github.com/rawconnect/marketplace/internal/payment"
	"github.com/rawconnect/marketplace/internal/review"
)

// --- fakes ---

type fakeCatalog struct {
	products map[string]catalog.Product
}

func (f *fakeCatalog) Get(ctx context.Context, id string) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}
func (f *fakeCatalog) ListByCategory(ctx context.Context, category string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range f.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}
func (f *fakeCatalog) ListByVendor(ctx context.Context, vendorEmail string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range f.products {
		if p.VendorEmail == vendorEmail {
			out = append(out, p)
		}
	}
	return out, nil
}
func (f *fakeCatalog) Create(ctx context.Context, p *catalog.Product) error {
	p.ID = "created"
	f.products[p.ID] = *p
	return nil
}
func (f *fakeCatalog) Update(ctx context.Context, p *catalog.Product) error {
	if _, ok := f.products[p.ID]; !ok {
		return catalog.ErrNotFound
	}
	f.products[p.ID] = *p
	return nil
}
func (f *fakeCatalog) Delete(ctx context.Context, id string) error {
	if _, ok := f.products[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(f.products, id)
	return nil
}
func (f *fakeCatalog) ApplyReview(ctx context.Context, tx pgx.Tx, productID string, rating int) error {
	return nil
}

type fakeCartRepo struct {
	items map[string]*cart.Item
}

func (f *fakeCartRepo) ListByUser(ctx context.Context, userEmail string) ([]cart.Item, error) {
	var out []cart.Item
	for _, it := range f.items {
		if it.UserEmail == userEmail {
			out = append(out, *it)
		}
	}
	return out, nil
}
func (f *fakeCartRepo) GetByID(ctx context.Context, itemID string) (*cart.Item, error) {
	it, ok := f.items[itemID]
	if !ok {
		return nil, nil
	}
	cp := *it
	return &cp, nil
}
func (f *fakeCartRepo) GetByUserAndProduct(ctx context.Context, userEmail, productID string) (*cart.Item, error) {
	for _, it := range f.items {
		if it.UserEmail == userEmail && it.ProductID == productID {
			cp := *it
			return &cp, nil
		}
	}
	return nil, nil
}
func (f *fakeCartRepo) Insert(ctx context.Context, item *cart.Item) error {
	item.ID = "new-item"
	item.AddedAt = time.Now()
	f.items[item.ID] = item
	return nil
}
func (f *fakeCartRepo) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	it, ok := f.items[itemID]
	if !ok {
		return cart.ErrNotFound
	}
	it.Quantity = quantity
	return nil
}
func (f *fakeCartRepo) Remove(ctx context.Context, itemID string) error {
	if _, ok := f.items[itemID]; !ok {
		return cart.ErrNotFound
	}
	delete(f.items, itemID)
	return nil
}
func (f *fakeCartRepo) ClearByUser(ctx context.Context, userEmail string) error { return nil }

type fakeOrderRepo struct {
	orders map[string]*order.Order
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}
func (f *fakeOrderRepo) ListByBuyer(ctx context.Context, buyerEmail string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range f.orders {
		if o.BuyerEmail == buyerEmail {
			out = append(out, *o)
		}
	}
	return out, nil
}
func (f *fakeOrderRepo) ListByVendor(ctx context.Context, vendorEmail string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range f.orders {
		if o.VendorEmail == vendorEmail {
			out = append(out, *o)
		}
	}
	return out, nil
}
func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, orderID string, from, to order.Status, reason string) error {
	o, ok := f.orders[orderID]
	if !ok || o.Status != from {
		return order.ErrStaleStatus
	}
	o.Status = to
	o.RejectionReason = reason
	return nil
}

type fakeCards struct {
	cards map[string]*payment.Card
}

func (f *fakeCards) Get(ctx context.Context, userEmail string) (*payment.Card, error) {
	c, ok := f.cards[userEmail]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}
func (f *fakeCards) Save(ctx context.Context, c *payment.Card) error {
	if c.LastFour == "" {
		c.LastFour = payment.LastFourOf(c.CardNumber)
	}
	c.UpdatedAt = time.Now()
	f.cards[c.UserEmail] = c
	return nil
}

type fakeGateway struct {
	captureOK  bool
	created    *payment.CreatePaymentResult
	createFail bool
}

func (f *fakeGateway) ExecutePayment(ctx context.Context, paymentID, payerID string) (*payment.CaptureResult, error) {
	res := &payment.CaptureResult{Success: f.captureOK}
	res.Data.ID = paymentID
	res.Data.Total = "100.00"
	return res, nil
}
func (f *fakeGateway) CreatePayment(ctx context.Context, amount float64) (*payment.CreatePaymentResult, error) {
	if f.createFail {
		return nil, io.ErrUnexpectedEOF
	}
	return f.created, nil
}

// --- environment ---

type testEnv struct {
	catalog  *fakeCatalog
	cartRepo *fakeCartRepo
	orders   *fakeOrderRepo
	cards    *fakeCards
	gateway  *fakeGateway

	checkoutDB pgxmock.PgxPoolIface
	reviewDB   pgxmock.PgxPoolIface

	router http.Handler
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	checkoutDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(checkoutDB.Close)

	reviewDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(reviewDB.Close)

	env := &testEnv{
		catalog:    &fakeCatalog{products: map[string]catalog.Product{}},
		cartRepo:   &fakeCartRepo{items: map[string]*cart.Item{}},
		orders:     &fakeOrderRepo{orders: map[string]*order.Order{}},
		cards:      &fakeCards{cards: map[string]*payment.Card{}},
		gateway:    &fakeGateway{captureOK: true},
		checkoutDB: checkoutDB,
		reviewDB:   reviewDB,
	}

	geoUpstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(geoUpstream.Close)

	env.router = NewRouter(Deps{
		Logger: logger,

		Products: NewProductHandler(env.catalog, media.NewUploader(geoUpstream.URL, "", nil)),
		Cart:     NewCartHandler(cart.NewService(env.cartRepo), env.catalog),
		Checkout: NewCheckoutHandler(checkout.NewService(checkoutDB, nil, logger), env.cards, env.gateway),
		Orders:   NewOrderHandler(env.orders, order.NewService(env.orders, nil, logger)),
		Reviews:  NewReviewHandler(review.NewService(reviewDB, env.catalog)),
		Payments: NewPaymentHandler(env.cards, env.gateway),
		Geo:      NewGeoHandler(geo.NewGeocoder(geoUpstream.URL, "key", geoUpstream.Client())),

		CORSAllowOrigins: []string{"*"},
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// --- cart ---

func TestGetCart(t *testing.T) {
	env := newEnv(t)
	env.cartRepo.items["it1"] = &cart.Item{
		ID: "it1", UserEmail: "b@x.mx", ProductID: "p1", Price: 20, Quantity: 3,
	}

	rec := env.do(t, http.MethodGet, "/api/cart/b@x.mx", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UserEmail string      `json:"userEmail"`
		Items     []cart.Item `json:"items"`
		Total     float64     `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "b@x.mx", resp.UserEmail)
	require.Len(t, resp.Items, 1)
	require.Equal(t, 60.0, resp.Total)
}

func TestAddCartItem(t *testing.T) {
	env := newEnv(t)
	env.catalog.products["p1"] = catalog.Product{
		ID: "p1", Name: "Tomate", Price: 20, Quantity: 10, MinimumOrder: 2, UnitMeasure: "kg",
	}

	rec := env.do(t, http.MethodPost, "/api/cart/b@x.mx/items", map[string]any{
		"productId": "p1", "quantity": 3,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var item cart.Item
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&item))
	require.Equal(t, 3, item.Quantity)
	require.Equal(t, 10, item.ProductStock)
}

func TestAddCartItem_UnknownProduct(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cart/b@x.mx/items", map[string]any{
		"productId": "nope", "quantity": 1,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddCartItem_BelowMinimumOrder(t *testing.T) {
	env := newEnv(t)
	env.catalog.products["p1"] = catalog.Product{ID: "p1", Quantity: 10, MinimumOrder: 5}

	rec := env.do(t, http.MethodPost, "/api/cart/b@x.mx/items", map[string]any{
		"productId": "p1", "quantity": 2,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddCartItem_ExceedsStock(t *testing.T) {
	env := newEnv(t)
	env.catalog.products["p1"] = catalog.Product{ID: "p1", Quantity: 2, MinimumOrder: 1}

	rec := env.do(t, http.MethodPost, "/api/cart/b@x.mx/items", map[string]any{
		"productId": "p1", "quantity": 5,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateCartQuantity_ExceedsSnapshot(t *testing.T) {
	env := newEnv(t)
	env.cartRepo.items["it1"] = &cart.Item{ID: "it1", UserEmail: "b@x.mx", Quantity: 2, ProductStock: 5}

	rec := env.do(t, http.MethodPut, "/api/cart/b@x.mx/items/it1", map[string]any{"quantity": 9})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 2, env.cartRepo.items["it1"].Quantity)
}

// --- orders ---

func TestChangeOrderStatus(t *testing.T) {
	env := newEnv(t)
	env.orders.orders["o1"] = &order.Order{ID: "o1", Status: order.StatusPending}

	rec := env.do(t, http.MethodPut, "/api/orders/o1/status", map[string]any{
		"status": "accepted", "actor": "vendor",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var o order.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&o))
	require.Equal(t, order.StatusAccepted, o.Status)
}

func TestChangeOrderStatus_WrongActor(t *testing.T) {
	env := newEnv(t)
	env.orders.orders["o1"] = &order.Order{ID: "o1", Status: order.StatusPending}

	rec := env.do(t, http.MethodPut, "/api/orders/o1/status", map[string]any{
		"status": "accepted", "actor": "buyer",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestChangeOrderStatus_InvalidTransition(t *testing.T) {
	env := newEnv(t)
	env.orders.orders["o1"] = &order.Order{ID: "o1", Status: order.StatusFinalized}

	rec := env.do(t, http.MethodPut, "/api/orders/o1/status", map[string]any{
		"status": "shipped", "actor": "vendor",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestChangeOrderStatus_RejectWithoutReason(t *testing.T) {
	env := newEnv(t)
	env.orders.orders["o1"] = &order.Order{ID: "o1", Status: order.StatusPending}

	rec := env.do(t, http.MethodPut, "/api/orders/o1/status", map[string]any{
		"status": "rejected", "actor": "vendor",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangeOrderStatus_UnknownActor(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodPut, "/api/orders/o1/status", map[string]any{
		"status": "accepted", "actor": "admin",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodGet, "/api/orders/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListVendorOrders(t *testing.T) {
	env := newEnv(t)
	env.orders.orders["o1"] = &order.Order{ID: "o1", VendorEmail: "v@x.mx", Status: order.StatusPending}

	rec := env.do(t, http.MethodGet, "/api/vendors/v@x.mx/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var orders []order.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&orders))
	require.Len(t, orders, 1)
}

// --- checkout ---

func expectCheckoutTx(t *testing.T, mock pgxmock.PgxPoolIface, method, last4, holder string) {
	t.Helper()
	now := time.Now()
	cartColumns := []string{
		"id", "user_email", "product_id", "product_name", "price", "quantity",
		"unit_measure", "vendor_email", "product_stock", "added_at",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, user_email, product_id, product_name, price, quantity`).
		WithArgs("b@x.mx").
		WillReturnRows(pgxmock.NewRows(cartColumns).
			AddRow("it1", "b@x.mx", "p1", "Tomate", 20.0, 5, "kg", "v@x.mx", 10, now))
	mock.ExpectQuery(`SELECT quantity FROM products WHERE id = \$1 FOR UPDATE`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"quantity"}).AddRow(10))
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(pgxmock.AnyArg(), "b@x.mx", "v@x.mx", 100.0, "pending", method, last4, holder).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "p1", "Tomate", 5, 20.0, "kg").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE products SET quantity = quantity - \$2`).
		WithArgs("p1", 5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM cart_items WHERE user_email = \$1`).
		WithArgs("b@x.mx").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
}

func TestCheckout_NewCard(t *testing.T) {
	env := newEnv(t)
	expectCheckoutTx(t, env.checkoutDB, "Credit Card", "4242", "Ana Torres")

	rec := env.do(t, http.MethodPost, "/api/cart/b@x.mx/checkout", map[string]any{
		"paymentMethod": "card",
		"card": map[string]string{
			"cardNumber": "4242424242424242",
			"cardHolder": "Ana Torres",
			"expiryDate": "12/99",
			"cvv":        "123",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Status string        `json:"status"`
		Orders []order.Order `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "order placed", resp.Status)
	require.Len(t, resp.Orders, 1)
	require.Equal(t, "4242", resp.Orders[0].PaymentDetails.CardLast4)

	// The freshly entered card was stored for next time.
	require.NotNil(t, env.cards.cards["b@x.mx"])
	require.Equal(t, "4242", env.cards.cards["b@x.mx"].LastFour)
}

func TestCheckout_StoredCard(t *testing.T) {
	env := newEnv(t)
	env.cards.cards["b@x.mx"] = &payment.Card{
		UserEmail: "b@x.mx", CardHolder: "Ana Torres", LastFour: "9999",
	}
	expectCheckoutTx(t, env.checkoutDB, "Credit Card", "9999", "Ana Torres")

	rec := env.do(t, http.MethodPost, "/api/cart/b@x.mx/checkout", map[string]any{
		"paymentMethod": "card",
		"useStoredCard": true,
		"cvv":           "123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCheckout_StoredCardMissing(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cart/b@x.mx/checkout", map[string]any{
		"paymentMethod": "card",
		"useStoredCard": true,
		"cvv":           "123",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckout_PayPal(t *testing.T) {
	env := newEnv(t)
	expectCheckoutTx(t, env.checkoutDB, "PayPal", "", "")

	rec := env.do(t, http.MethodPost, "/api/cart/b@x.mx/checkout", map[string]any{
		"paymentMethod": "paypal",
		"paypal":        map[string]string{"paymentId": "ORDER-1", "payerId": "PAYER-1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCheckout_PayPalCaptureFails(t *testing.T) {
	env := newEnv(t)
	env.gateway.captureOK = false

	rec := env.do(t, http.MethodPost, "/api/cart/b@x.mx/checkout", map[string]any{
		"paymentMethod": "paypal",
		"paypal":        map[string]string{"paymentId": "ORDER-1"},
	})
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCheckout_UnknownMethod(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cart/b@x.mx/checkout", map[string]any{
		"paymentMethod": "cash",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- reviews ---

func TestReviewEligibility(t *testing.T) {
	env := newEnv(t)

	env.reviewDB.ExpectQuery(`SELECT 1 FROM reviews`).
		WithArgs("b@x.mx", "p1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	env.reviewDB.ExpectQuery(`SELECT 1\s+FROM orders o`).
		WithArgs("b@x.mx", "p1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	rec := env.do(t, http.MethodGet, "/api/products/p1/reviews/eligibility?user=b%40x.mx", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp["canReview"])
}

func TestReviewEligibility_MissingUser(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodGet, "/api/products/p1/reviews/eligibility", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitReview_InvalidRating(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodPost, "/api/products/p1/reviews", map[string]any{
		"userId": "b@x.mx", "rating": 0,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- payments ---

func TestGetStoredCard_Masked(t *testing.T) {
	env := newEnv(t)
	env.cards.cards["b@x.mx"] = &payment.Card{
		UserEmail:  "b@x.mx",
		CardNumber: "4242424242424242",
		CardHolder: "Ana Torres",
		ExpiryDate: "12/26",
		LastFour:   "4242",
	}

	rec := env.do(t, http.MethodGet, "/api/payments/cards/b@x.mx", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "4242", resp["lastFour"])
	require.NotContains(t, rec.Body.String(), "4242424242424242")
}

func TestGetStoredCard_NotFound(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodGet, "/api/payments/cards/nobody@x.mx", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePayment(t *testing.T) {
	env := newEnv(t)
	env.gateway.created = &payment.CreatePaymentResult{
		PaymentID:   "ORDER-1",
		ApprovalURL: "https://paypal.test/approve",
	}

	rec := env.do(t, http.MethodPost, "/api/payments/create", map[string]any{"amount": 150.0})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp payment.CreatePaymentResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "ORDER-1", resp.PaymentID)
}

func TestCreatePayment_InvalidAmount(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodPost, "/api/payments/create", map[string]any{"amount": 0})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- geo ---

func TestReverseGeocode_FallsBackToCoordinates(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodGet, "/api/geocode/reverse?lat=17.06&lon=-96.72", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "17.060000, -96.720000", resp["address"])
}

func TestReverseGeocode_BadParams(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodGet, "/api/geocode/reverse?lat=abc&lon=1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- health ---

func TestHealth(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rawconnect/marketplace/internal/cart"
	"github.com/rawconnect/marketplace/internal/order"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Shortfall describes one product whose live stock no longer covers
// the requested quantity at checkout time.
type Shortfall struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s: requested %d, available %d", s.ProductName, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// PaymentInfo is the snapshot stored on every order created by a
// checkout run.
type PaymentInfo struct {
	Method     string
	CardLast4  string
	CardHolder string
}

// TxBeginner matches *pgxpool.Pool. The whole checkout runs on one
// transaction, so the pool is the only dependency on the store.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// OrderPlacedPublisher is implemented by the events package.
type OrderPlacedPublisher interface {
	PublishOrderPlaced(ctx context.Context, o *order.Order) error
}

// Service converts a buyer's cart into one order per vendor. Unlike
// the screen-driven flow it replaces, the split, the stock decrement
// and the cart cleanup are a single transaction: a failure anywhere
// leaves no partially created orders and no partially decremented
// stock.
type Service struct {
	pool   TxBeginner
	pub    OrderPlacedPublisher
	logger *log.Logger
}

func NewService(pool TxBeginner, pub OrderPlacedPublisher, logger *log.Logger) *Service {
	return &Service{pool: pool, pub: pub, logger: logger}
}

// Checkout groups the buyer's cart by vendor, creates one pending
// order per vendor with denormalized item snapshots, decrements stock
// under row locks, and clears the cart. Returns the created orders.
func (s *Service) Checkout(ctx context.Context, buyerEmail string, payment PaymentInfo) ([]order.Order, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	items, err := loadCart(ctx, tx, buyerEmail)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	if err := lockAndValidateStock(ctx, tx, items); err != nil {
		return nil, err
	}

	orders, err := createVendorOrders(ctx, tx, buyerEmail, payment, items)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			UPDATE products SET quantity = quantity - $2, updated_at = NOW() WHERE id = $1
		`, it.ProductID, it.Quantity); err != nil {
			return nil, fmt.Errorf("decrement stock for %s: %w", it.ProductID, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_email = $1`, buyerEmail); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if s.pub != nil {
		for i := range orders {
			if err := s.pub.PublishOrderPlaced(ctx, &orders[i]); err != nil {
				// The orders are committed; a lost event is logged, not fatal.
				s.logger.Printf("publish order.placed for %s: %v", orders[i].ID, err)
			}
		}
	}

	return orders, nil
}

func loadCart(ctx context.Context, tx pgx.Tx, buyerEmail string) ([]cart.Item, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, user_email, product_id, product_name, price, quantity,
		       unit_measure, vendor_email, product_stock, added_at
		FROM cart_items
		WHERE user_email = $1
		ORDER BY added_at
	`, buyerEmail)
	if err != nil {
		return nil, fmt.Errorf("select cart_items: %w", err)
	}
	defer rows.Close()

	var items []cart.Item
	for rows.Next() {
		var it cart.Item
		if err := rows.Scan(&it.ID, &it.UserEmail, &it.ProductID, &it.ProductName, &it.Price,
			&it.Quantity, &it.UnitMeasure, &it.VendorEmail, &it.ProductStock, &it.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart_item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return items, nil
}

// lockAndValidateStock takes a FOR UPDATE lock on every product in the
// cart and re-checks live stock against the requested quantity. The
// add-time snapshot is only a client-side hint; this is the check that
// actually holds.
func lockAndValidateStock(ctx context.Context, tx pgx.Tx, items []cart.Item) error {
	var shortfalls []Shortfall

	for _, it := range items {
		var available int
		err := tx.QueryRow(ctx, `
			SELECT quantity FROM products WHERE id = $1 FOR UPDATE
		`, it.ProductID).Scan(&available)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				available = 0
			} else {
				return fmt.Errorf("lock product %s: %w", it.ProductID, err)
			}
		}

		if available < it.Quantity {
			shortfalls = append(shortfalls, Shortfall{
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				Requested:   it.Quantity,
				Available:   available,
			})
		}
	}

	if len(shortfalls) > 0 {
		return &InsufficientStockError{Shortfalls: shortfalls}
	}
	return nil
}

func createVendorOrders(ctx context.Context, tx pgx.Tx, buyerEmail string, payment PaymentInfo, items []cart.Item) ([]order.Order, error) {
	// Buckets keep the cart's encounter order.
	var vendors []string
	byVendor := make(map[string][]cart.Item)
	for _, it := range items {
		if _, ok := byVendor[it.VendorEmail]; !ok {
			vendors = append(vendors, it.VendorEmail)
		}
		byVendor[it.VendorEmail] = append(byVendor[it.VendorEmail], it)
	}

	orders := make([]order.Order, 0, len(vendors))
	for _, vendorEmail := range vendors {
		bucket := byVendor[vendorEmail]

		total := 0.0
		for _, it := range bucket {
			total += it.Subtotal()
		}

		o := order.Order{
			ID:            uuid.NewString(),
			BuyerEmail:    buyerEmail,
			VendorEmail:   vendorEmail,
			TotalAmount:   total,
			Status:        order.StatusPending,
			PaymentMethod: payment.Method,
			PaymentDetails: order.PaymentDetails{
				CardLast4:  payment.CardLast4,
				CardHolder: payment.CardHolder,
			},
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO orders (id, buyer_email, vendor_email, total_amount, status,
			                    payment_method, payment_card_last4, payment_card_holder)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at
		`, o.ID, o.BuyerEmail, o.VendorEmail, o.TotalAmount, string(o.Status),
			o.PaymentMethod, o.PaymentDetails.CardLast4, o.PaymentDetails.CardHolder,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert order: %w", err)
		}

		for _, it := range bucket {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price, unit_measure)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, uuid.NewString(), o.ID, it.ProductID, it.ProductName, it.Quantity, it.Price, it.UnitMeasure); err != nil {
				return nil, fmt.Errorf("insert order_item: %w", err)
			}

			o.Items = append(o.Items, order.Item{
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				Quantity:    it.Quantity,
				Price:       it.Price,
				UnitMeasure: it.UnitMeasure,
			})
		}

		orders = append(orders, o)
	}

	return orders, nil
}

package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Repository interface {
	GetByID(ctx context.Context, orderID string) (*Order, error)
	ListByBuyer(ctx context.Context, buyerEmail string) ([]Order, error)
	ListByVendor(ctx context.Context, vendorEmail string) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID string, from, to Status, reason string) error
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

const orderColumns = `id, buyer_email, vendor_email, total_amount, status, payment_method,
         payment_card_last4, payment_card_holder, COALESCE(rejection_reason, ''), created_at, updated_at`

func (r *repo) GetByID(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		orderID,
	).Scan(&o.ID, &o.BuyerEmail, &o.VendorEmail, &o.TotalAmount, &o.Status, &o.PaymentMethod,
		&o.PaymentDetails.CardLast4, &o.PaymentDetails.CardHolder, &o.RejectionReason,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

func (r *repo) ListByBuyer(ctx context.Context, buyerEmail string) ([]Order, error) {
	return r.list(ctx, `buyer_email`, buyerEmail)
}

func (r *repo) ListByVendor(ctx context.Context, vendorEmail string) ([]Order, error) {
	return r.list(ctx, `vendor_email`, vendorEmail)
}

func (r *repo) list(ctx context.Context, column, email string) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1 ORDER BY created_at DESC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.BuyerEmail, &o.VendorEmail, &o.TotalAmount, &o.Status,
			&o.PaymentMethod, &o.PaymentDetails.CardLast4, &o.PaymentDetails.CardHolder,
			&o.RejectionReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *repo) loadItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, product_name, quantity, price, unit_measure
         FROM order_items WHERE order_id = $1`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order_items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.Price, &it.UnitMeasure); err != nil {
			return nil, fmt.Errorf("scan order_item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return items, nil
}

// UpdateStatus moves the order from one status to another. The WHERE
// clause pins the expected current status, so a write racing against
// another transition affects zero rows instead of silently winning.
func (r *repo) UpdateStatus(ctx context.Context, orderID string, from, to Status, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $3,
		    rejection_reason = NULLIF($4, ''),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, orderID, string(from), string(to), reason)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}

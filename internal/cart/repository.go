package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("cart item not found")
	ErrInsufficientStock = errors.New("quantity exceeds available stock")
	ErrBelowMinimumOrder = errors.New("quantity below the product's minimum order")
)

type Repository interface {
	ListByUser(ctx context.Context, userEmail string) ([]Item, error)
	GetByID(ctx context.Context, itemID string) (*Item, error)
	GetByUserAndProduct(ctx context.Context, userEmail, productID string) (*Item, error)
	Insert(ctx context.Context, item *Item) error
	UpdateQuantity(ctx context.Context, itemID string, quantity int) error
	Remove(ctx context.Context, itemID string) error
	ClearByUser(ctx context.Context, userEmail string) error
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

const itemColumns = `id, user_email, product_id, product_name, price, quantity,
         unit_measure, vendor_email, product_stock, added_at`

func (r *repo) ListByUser(ctx context.Context, userEmail string) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM cart_items WHERE user_email = $1 ORDER BY added_at`,
		userEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart_items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
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

func (r *repo) GetByID(ctx context.Context, itemID string) (*Item, error) {
	var it Item
	err := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM cart_items WHERE id = $1`,
		itemID,
	).Scan(&it.ID, &it.UserEmail, &it.ProductID, &it.ProductName, &it.Price,
		&it.Quantity, &it.UnitMeasure, &it.VendorEmail, &it.ProductStock, &it.AddedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select cart_item: %w", err)
	}
	return &it, nil
}

func (r *repo) GetByUserAndProduct(ctx context.Context, userEmail, productID string) (*Item, error) {
	var it Item
	err := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM cart_items WHERE user_email = $1 AND product_id = $2`,
		userEmail, productID,
	).Scan(&it.ID, &it.UserEmail, &it.ProductID, &it.ProductName, &it.Price,
		&it.Quantity, &it.UnitMeasure, &it.VendorEmail, &it.ProductStock, &it.AddedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// caller (service) treats nil as "no existing row"
			return nil, nil
		}
		return nil, fmt.Errorf("select cart_item: %w", err)
	}
	return &it, nil
}

func (r *repo) Insert(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cart_items (id, user_email, product_id, product_name, price, quantity,
		                        unit_measure, vendor_email, product_stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING added_at
	`, item.ID, item.UserEmail, item.ProductID, item.ProductName, item.Price,
		item.Quantity, item.UnitMeasure, item.VendorEmail, item.ProductStock,
	).Scan(&item.AddedAt)
	if err != nil {
		return fmt.Errorf("insert cart_item: %w", err)
	}
	return nil
}

func (r *repo) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $2 WHERE id = $1`,
		itemID, quantity,
	)
	if err != nil {
		return fmt.Errorf("update cart_item quantity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) Remove(ctx context.Context, itemID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete cart_item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) ClearByUser(ctx context.Context, userEmail string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_email = $1`, userEmail)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

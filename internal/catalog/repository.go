package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("product not found")

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	Get(ctx context.Context, productID string) (Product, error)
	ListByCategory(ctx context.Context, category string) ([]Product, error)
	ListByVendor(ctx context.Context, vendorEmail string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, productID string) error
	ApplyReview(ctx context.Context, tx pgx.Tx, productID string, rating int) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const productColumns = `id, name, category, price, quantity, unit_measure, minimum_order,
		vendor_email, rating, rating_count, image_url, created_at, updated_at`

func (r *PostgresRepository) Get(ctx context.Context, productID string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, productID)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *PostgresRepository) ListByCategory(ctx context.Context, category string) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE category=$1 ORDER BY created_at DESC`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (r *PostgresRepository) ListByVendor(ctx context.Context, vendorEmail string) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE vendor_email=$1 ORDER BY created_at DESC`, vendorEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (r *PostgresRepository) Create(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.MinimumOrder < 1 {
		p.MinimumOrder = 1
	}
	if p.UnitMeasure == "" {
		p.UnitMeasure = "unit"
	}

	return r.pool.QueryRow(ctx, `
		INSERT INTO products (id, name, category, price, quantity, unit_measure, minimum_order, vendor_email, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Category, p.Price, p.Quantity, p.UnitMeasure, p.MinimumOrder, p.VendorEmail, p.ImageURL).
		Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *PostgresRepository) Update(ctx context.Context, p *Product) error {
	// Rating fields are only touched by ApplyReview, stock only by checkout.
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET name=$2, category=$3, price=$4, quantity=$5, unit_measure=$6,
		    minimum_order=$7, image_url=$8, updated_at=NOW()
		WHERE id=$1
	`, p.ID, p.Name, p.Category, p.Price, p.Quantity, p.UnitMeasure, p.MinimumOrder, p.ImageURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, productID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyReview folds a new rating into the product's running average:
// newAvg = (oldAvg*oldCount + rating) / (oldCount + 1). The whole
// computation runs server-side inside the caller's transaction so
// concurrent reviews cannot lose updates.
func (r *PostgresRepository) ApplyReview(ctx context.Context, tx pgx.Tx, productID string, rating int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE products
		SET rating = (rating * rating_count + $2) / (rating_count + 1),
		    rating_count = rating_count + 1,
		    updated_at = NOW()
		WHERE id = $1
	`, productID, float64(rating))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Quantity, &p.UnitMeasure,
		&p.MinimumOrder, &p.VendorEmail, &p.Rating, &p.RatingCount, &p.ImageURL,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

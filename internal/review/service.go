package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrAlreadyReviewed = errors.New("user has already reviewed this product")
	ErrNotEligible     = errors.New("user has no finalized order containing this product")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// RatingApplier folds an accepted rating into the product document.
// Implemented by the catalog repository.
type RatingApplier interface {
	ApplyReview(ctx context.Context, tx pgx.Tx, productID string, rating int) error
}

// Service gates and records product reviews. A user may review a
// product once, and only after receiving it: the gate requires at
// least one finalized order of theirs containing the product.
type Service struct {
	pool    DBPool
	ratings RatingApplier
}

func NewService(pool DBPool, ratings RatingApplier) *Service {
	return &Service{pool: pool, ratings: ratings}
}

// The legacy spelling is matched alongside the canonical one; old
// orders may still carry it.
const eligibleOrderQuery = `
	SELECT EXISTS (
		SELECT 1
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.buyer_email = $1
		  AND oi.product_id = $2
		  AND o.status IN ('finalized', 'finalizado')
	)
`

const hasReviewQuery = `
	SELECT EXISTS (
		SELECT 1 FROM reviews WHERE user_email = $1 AND product_id = $2
	)
`

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CanReview reports whether the gate is open: no existing review and
// at least one finalized order containing the product.
func (s *Service) CanReview(ctx context.Context, userEmail, productID string) (bool, error) {
	return canReview(ctx, s.pool, userEmail, productID)
}

func canReview(ctx context.Context, q queryRower, userEmail, productID string) (bool, error) {
	var hasReview bool
	if err := q.QueryRow(ctx, hasReviewQuery, userEmail, productID).Scan(&hasReview); err != nil {
		return false, fmt.Errorf("check existing review: %w", err)
	}
	if hasReview {
		return false, nil
	}

	var eligible bool
	if err := q.QueryRow(ctx, eligibleOrderQuery, userEmail, productID).Scan(&eligible); err != nil {
		return false, fmt.Errorf("check finalized orders: %w", err)
	}
	return eligible, nil
}

// Submit inserts the review and updates the product's running-average
// rating in one transaction. The gate is re-checked inside the
// transaction, so racing submissions cannot slip past it.
func (s *Service) Submit(ctx context.Context, r *Review) error {
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidRating
	}
	r.Comment = strings.TrimSpace(r.Comment)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var hasReview bool
	if err := tx.QueryRow(ctx, hasReviewQuery, r.UserEmail, r.ProductID).Scan(&hasReview); err != nil {
		return fmt.Errorf("check existing review: %w", err)
	}
	if hasReview {
		return ErrAlreadyReviewed
	}

	var eligible bool
	if err := tx.QueryRow(ctx, eligibleOrderQuery, r.UserEmail, r.ProductID).Scan(&eligible); err != nil {
		return fmt.Errorf("check finalized orders: %w", err)
	}
	if !eligible {
		return ErrNotEligible
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO reviews (id, product_id, user_email, user_name, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, r.ID, r.ProductID, r.UserEmail, r.UserName, r.Rating, r.Comment).Scan(&r.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// The unique index is the arbiter when two submissions race.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyReviewed
		}
		return fmt.Errorf("insert review: %w", err)
	}

	if err := s.ratings.ApplyReview(ctx, tx, r.ProductID, r.Rating); err != nil {
		return fmt.Errorf("apply rating: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListByProduct returns the reviews for a product, newest first.
func (s *Service) ListByProduct(ctx context.Context, productID string) ([]Review, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, user_email, user_name, rating, comment, created_at
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at DESC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserEmail, &r.UserName, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return reviews, nil
}

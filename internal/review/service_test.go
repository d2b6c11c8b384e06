package review

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

type fakeRatingApplier struct {
	productID string
	rating    int
	err       error
}

func (f *fakeRatingApplier) ApplyReview(ctx context.Context, tx pgx.Tx, productID string, rating int) error {
	if f.err != nil {
		return f.err
	}
	f.productID = productID
	f.rating = rating
	return nil
}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *fakeRatingApplier, *Service) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	applier := &fakeRatingApplier{}
	return mock, applier, NewService(mock, applier)
}

func existsRow(v bool) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"exists"}).AddRow(v)
}

func TestCanReview_OpenGate(t *testing.T) {
	mock, _, svc := newMock(t)

	mock.ExpectQuery(`SELECT 1 FROM reviews`).
		WithArgs("b@x.mx", "p1").
		WillReturnRows(existsRow(false))
	mock.ExpectQuery(`SELECT 1\s+FROM orders o`).
		WithArgs("b@x.mx", "p1").
		WillReturnRows(existsRow(true))

	ok, err := svc.CanReview(context.Background(), "b@x.mx", "p1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCanReview_AlreadyReviewed(t *testing.T) {
	mock, _, svc := newMock(t)

	mock.ExpectQuery(`SELECT 1 FROM reviews`).
		WithArgs("b@x.mx", "p1").
		WillReturnRows(existsRow(true))

	ok, err := svc.CanReview(context.Background(), "b@x.mx", "p1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanReview_NoFinalizedOrder(t *testing.T) {
	mock, _, svc := newMock(t)

	mock.ExpectQuery(`SELECT 1 FROM reviews`).
		WithArgs("b@x.mx", "p1").
		WillReturnRows(existsRow(false))
	mock.ExpectQuery(`SELECT 1\s+FROM orders o`).
		WithArgs("b@x.mx", "p1").
		WillReturnRows(existsRow(false))

	ok, err := svc.CanReview(context.Background(), "b@x.mx", "p1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSubmit(t *testing.T) {
	mock, applier, svc := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM reviews`).
		WithArgs("b@x.mx", "p1").
		WillReturnRows(existsRow(false))
	mock.ExpectQuery(`SELECT 1\s+FROM orders o`).
		WithArgs("b@x.mx", "p1").
		WillReturnRows(existsRow(true))
	mock.ExpectQuery(`INSERT INTO reviews`).
		WithArgs(pgxmock.AnyArg(), "p1", "b@x.mx", "Ana", 4, "Muy fresco").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectCommit()

	r := &Review{ProductID: "p1", UserEmail: "b@x.mx", UserName: "Ana", Rating: 4, Comment: "  Muy fresco  "}
	require.NoError(t, svc.Submit(context.Background(), r))

	require.NotEmpty(t, r.ID)
	require.Equal(t, "Muy fresco", r.Comment)
	require.Equal(t, now, r.CreatedAt)
	require.Equal(t, "p1", applier.productID)
	require.Equal(t, 4, applier.rating)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmit_InvalidRating(t *testing.T) {
	_, _, svc := newMock(t)

	for _, rating := range []int{0, -1, 6} {
		err := svc.Submit(context.Background(), &Review{ProductID: "p1", UserEmail: "b@x.mx", Rating: rating})
		require.ErrorIs(t, err, ErrInvalidRating)
	}
}

func TestSubmit_NotEligible(t *testing.T) {
	mock, _, svc := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM reviews`).
		WithArgs("b@x.mx", "p1").
		WillReturnRows(existsRow(false))
	mock.ExpectQuery(`SELECT 1\s+FROM orders o`).
		WithArgs("b@x.mx", "p1").
		WillReturnRows(existsRow(false))
	mock.ExpectRollback()

	err := svc.Submit(context.Background(), &Review{ProductID: "p1", UserEmail: "b@x.mx", Rating: 5})
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestSubmit_DuplicateLosesRace(t *testing.T) {
	mock, _, svc := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM reviews`).
		WithArgs("b@x.mx", "p1").
		WillReturnRows(existsRow(false))
	mock.ExpectQuery(`SELECT 1\s+FROM orders o`).
		WithArgs("b@x.mx", "p1").
		WillReturnRows(existsRow(true))
	// A concurrent submission inserted first; the unique index decides.
	mock.ExpectQuery(`INSERT INTO reviews`).
		WithArgs(pgxmock.AnyArg(), "p1", "b@x.mx", "", 5, "").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := svc.Submit(context.Background(), &Review{ProductID: "p1", UserEmail: "b@x.mx", Rating: 5})
	require.ErrorIs(t, err, ErrAlreadyReviewed)
}

package db

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MustOpenPool returns a verified pgx pool for the repositories that need
// row-level locking (catalog, checkout).
func MustOpenPool(ctx context.Context, dsn string) *pgxpool.Pool {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("open pgx pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping pgx pool: %v", err)
	}

	return pool
}

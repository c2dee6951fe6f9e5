package db

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

var newPool = func(ctx context.Context, url string) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, url)
}

// InitPostgres connects the package-level pool. A missing URL leaves the pool
// nil; repositories are skipped by the caller in that case.
func InitPostgres(ctx context.Context, url string) {
	if url == "" {
		log.Println("DATABASE_URL not set, running without Postgres")
		return
	}
	pool, err := newPool(ctx, url)
	if err != nil {
		log.Fatalf("failed to create Postgres pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	Pool = pool
	log.Println("Connected to Postgres")
}

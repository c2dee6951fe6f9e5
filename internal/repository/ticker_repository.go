package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tickerfeed/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

// PgxPool is the subset of pgxpool.Pool the repositories use; tests pass a
// fake.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const createClassifiedTickersTable = `
CREATE TABLE IF NOT EXISTS classified_tickers (
    ticker        TEXT        PRIMARY KEY,
    website       TEXT        NOT NULL DEFAULT '',
    exchanges     TEXT        NOT NULL DEFAULT '',
    base_symbol   TEXT        NOT NULL,
    category      TEXT        NOT NULL DEFAULT '',
    classified_at TIMESTAMPTZ NOT NULL
);
`

// TickerRepository persists classified-ticker identities. The table stores
// identity only; quotes are re-probed on every use.
type TickerRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewTickerRepository(pool PgxPool, tracer trace.Tracer) *TickerRepository {
	return &TickerRepository{pool: pool, tracer: tracer}
}

func (r *TickerRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "ticker-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createClassifiedTickersTable)
	return err
}

// Lookup returns the cached identity for a ticker, or nil when absent.
func (r *TickerRepository) Lookup(ctx context.Context, ticker string) (*domain.ClassifiedTicker, error) {
	_, span := r.tracer.Start(ctx, "ticker-repo.lookup")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT ticker, website, exchanges, base_symbol, category, classified_at
		 FROM classified_tickers WHERE ticker = $1`,
		ticker,
	)

	var ct domain.ClassifiedTicker
	var exchanges string
	var category string
	err := row.Scan(&ct.Ticker, &ct.Website, &exchanges, &ct.BaseSymbol, &category, &ct.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", ticker, err)
	}
	ct.Exchanges = domain.SplitExchanges(exchanges)
	ct.Category = domain.Category(category)
	return &ct, nil
}

func (r *TickerRepository) Upsert(ctx context.Context, ct *domain.ClassifiedTicker) error {
	_, span := r.tracer.Start(ctx, "ticker-repo.upsert")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO classified_tickers (ticker, website, exchanges, base_symbol, category, classified_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (ticker) DO UPDATE SET
		     website = EXCLUDED.website,
		     exchanges = EXCLUDED.exchanges,
		     base_symbol = EXCLUDED.base_symbol,
		     category = EXCLUDED.category,
		     classified_at = EXCLUDED.classified_at`,
		ct.Ticker, ct.Website, ct.ExchangesJoined(), ct.BaseSymbol, string(ct.Category), ct.Timestamp,
	)
	return err
}

// PurgeOlderThan drops stale identities; invoked once on startup.
func (r *TickerRepository) PurgeOlderThan(ctx context.Context, days int) error {
	_, span := r.tracer.Start(ctx, "ticker-repo.purge")
	defer span.End()

	if days <= 0 {
		days = 3
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	_, err := r.pool.Exec(ctx, `DELETE FROM classified_tickers WHERE classified_at < $1`, cutoff)
	return err
}

package repository

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

const createUserPortfoliosTable = `
CREATE TABLE IF NOT EXISTS user_portfolios (
    user_id  TEXT NOT NULL,
    symbol   TEXT NOT NULL,
    added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, symbol)
);
`

// PortfolioRepository stores which users follow which base symbols; the
// router tags them when a matching tweet is posted.
type PortfolioRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPortfolioRepository(pool PgxPool, tracer trace.Tracer) *PortfolioRepository {
	return &PortfolioRepository{pool: pool, tracer: tracer}
}

func (r *PortfolioRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "portfolio-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createUserPortfoliosTable)
	return err
}

func (r *PortfolioRepository) Add(ctx context.Context, userID, symbol string) error {
	_, span := r.tracer.Start(ctx, "portfolio-repo.add")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_portfolios (user_id, symbol) VALUES ($1, $2)
		 ON CONFLICT (user_id, symbol) DO NOTHING`,
		userID, symbol,
	)
	return err
}

func (r *PortfolioRepository) Remove(ctx context.Context, userID, symbol string) error {
	_, span := r.tracer.Start(ctx, "portfolio-repo.remove")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_portfolios WHERE user_id = $1 AND symbol = $2`,
		userID, symbol,
	)
	return err
}

func (r *PortfolioRepository) Holdings(ctx context.Context, userID string) ([]string, error) {
	_, span := r.tracer.Start(ctx, "portfolio-repo.holdings")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT symbol FROM user_portfolios WHERE user_id = $1 ORDER BY symbol`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UsersHolding returns the distinct users whose portfolio contains any of the
// given base symbols.
func (r *PortfolioRepository) UsersHolding(ctx context.Context, symbols []string) ([]string, error) {
	_, span := r.tracer.Start(ctx, "portfolio-repo.users-holding")
	defer span.End()

	if len(symbols) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT user_id FROM user_portfolios WHERE symbol = ANY($1) ORDER BY user_id`,
		symbols,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

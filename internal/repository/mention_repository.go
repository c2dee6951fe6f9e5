package repository

import (
	"context"
	"time"

	"tickerfeed/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const createMentionRecordsTable = `
CREATE TABLE IF NOT EXISTS mention_records (
    id         BIGSERIAL   PRIMARY KEY,
    ts         TIMESTAMPTZ NOT NULL,
    ticker     TEXT        NOT NULL,
    author     TEXT        NOT NULL,
    sentiment  TEXT        NOT NULL,
    category   TEXT        NOT NULL,
    change_pct NUMERIC     NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_mention_records_category_ts
    ON mention_records (category, ts DESC);
`

// MentionRepository stores the rolling 24-hour mention table.
type MentionRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewMentionRepository(pool PgxPool, tracer trace.Tracer) *MentionRepository {
	return &MentionRepository{pool: pool, tracer: tracer}
}

func (r *MentionRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "mention-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createMentionRecordsTable)
	return err
}

func (r *MentionRepository) Append(ctx context.Context, rec *domain.MentionRecord) error {
	_, span := r.tracer.Start(ctx, "mention-repo.append")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO mention_records (ts, ticker, author, sentiment, category, change_pct)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.Timestamp, rec.Ticker, rec.Author, string(rec.Sentiment), string(rec.Category), rec.ChangePct,
	)
	return err
}

// TopMentioned groups mentions since the cutoff by ticker, ranked by count.
func (r *MentionRepository) TopMentioned(ctx context.Context, category domain.Category, since time.Time, limit int) ([]domain.MentionSummary, error) {
	_, span := r.tracer.Start(ctx, "mention-repo.top-mentioned")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT ticker,
		        COUNT(*) AS mentions,
		        (ARRAY_AGG(change_pct ORDER BY ts DESC))[1] AS last_change,
		        COUNT(*) FILTER (WHERE sentiment = 'Bullish') AS bullish,
		        COUNT(*) FILTER (WHERE sentiment = 'Neutral') AS neutral,
		        COUNT(*) FILTER (WHERE sentiment = 'Bearish') AS bearish
		 FROM mention_records
		 WHERE category = $1 AND ts >= $2
		 GROUP BY ticker
		 ORDER BY mentions DESC, ticker ASC
		 LIMIT $3`,
		string(category), since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MentionSummary
	for rows.Next() {
		var s domain.MentionSummary
		if err := rows.Scan(&s.Ticker, &s.Count, &s.LastChange, &s.BullishCount, &s.NeutralCount, &s.BearishCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ActiveCategories lists the categories with at least one mention since the
// cutoff.
func (r *MentionRepository) ActiveCategories(ctx context.Context, since time.Time) ([]domain.Category, error) {
	_, span := r.tracer.Start(ctx, "mention-repo.active-categories")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT category FROM mention_records WHERE ts >= $1 AND category <> ''`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, domain.Category(c))
	}
	return out, rows.Err()
}

// DeleteOlderThan prunes rows beyond the rolling window; invoked on every
// overview publication.
func (r *MentionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	_, span := r.tracer.Start(ctx, "mention-repo.delete-older-than")
	defer span.End()

	_, err := r.pool.Exec(ctx, `DELETE FROM mention_records WHERE ts < $1`, cutoff)
	return err
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yolubot/boardnews/internal/article"
	"github.com/yolubot/boardnews/internal/storage"
)

// ensure postgresLedger implements storage.Ledger
var _ storage.Ledger = (*postgresLedger)(nil)

type postgresLedger struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS news_posts (
	seq BIGSERIAL,
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	source TEXT NOT NULL,
	keyword TEXT NOT NULL,
	combined_score DOUBLE PRECISION NOT NULL,
	published_at TIMESTAMPTZ NOT NULL,
	posted_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_news_posts_posted_at ON news_posts (posted_at);
`

// New creates a new Postgres-backed storage.Ledger.
func New(ctx context.Context, dsn string) (storage.Ledger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create schema: %w", err)
	}

	return &postgresLedger{pool: pool}, nil
}

func (l *postgresLedger) IsPosted(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM news_posts WHERE url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: is posted: %w", err)
	}
	return exists, nil
}

func (l *postgresLedger) MarkPosted(ctx context.Context, a article.Article) error {
	p, err := storage.NewPosted(a, time.Now())
	if err != nil {
		return err
	}

	query := `
	INSERT INTO news_posts (
		id, url, title, source, keyword, combined_score, published_at, posted_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (url) DO NOTHING
	`

	_, err = l.pool.Exec(ctx, query,
		p.ID,
		p.URL,
		p.Title,
		p.Source,
		p.Keyword,
		p.CombinedScore,
		p.PublishedAt,
		p.PostedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark posted: %w", err)
	}

	return nil
}

func (l *postgresLedger) Recent(ctx context.Context, filter storage.Filter) ([]*storage.Posted, error) {
	query := `SELECT id, url, title, source, keyword, combined_score, published_at, posted_at FROM news_posts WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, paramCount)
		args = append(args, filter.Source)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND posted_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY posted_at DESC, seq DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query recent: %w", err)
	}
	defer rows.Close()

	var results []*storage.Posted
	for rows.Next() {
		var p storage.Posted
		err := rows.Scan(&p.ID, &p.URL, &p.Title, &p.Source, &p.Keyword, &p.CombinedScore, &p.PublishedAt, &p.PostedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		p.PublishedAt = p.PublishedAt.UTC()
		p.PostedAt = p.PostedAt.UTC()
		results = append(results, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}

	return results, nil
}

func (l *postgresLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := l.pool.Exec(ctx, `DELETE FROM news_posts WHERE posted_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (l *postgresLedger) Close() error {
	l.pool.Close()
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yolubot/boardnews/internal/article"
	"github.com/yolubot/boardnews/internal/storage"
)

// ensure sqliteLedger implements storage.Ledger
var _ storage.Ledger = (*sqliteLedger)(nil)

type sqliteLedger struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS news_posts (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	source TEXT NOT NULL,
	keyword TEXT NOT NULL,
	combined_score REAL NOT NULL,
	published_at DATETIME NOT NULL,
	posted_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_news_posts_posted_at ON news_posts (posted_at);
`

// New creates a new SQLite-backed storage.Ledger.
func New(dsn string) (storage.Ledger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &sqliteLedger{db: db}, nil
}

func (l *sqliteLedger) IsPosted(ctx context.Context, url string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM news_posts WHERE url = ?`, url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: is posted: %w", err)
	}
	return n > 0, nil
}

func (l *sqliteLedger) MarkPosted(ctx context.Context, a article.Article) error {
	p, err := storage.NewPosted(a, time.Now())
	if err != nil {
		return err
	}

	query := `
	INSERT OR IGNORE INTO news_posts (
		id, url, title, source, keyword, combined_score, published_at, posted_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = l.db.ExecContext(ctx, query,
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
		return fmt.Errorf("sqlite: mark posted: %w", err)
	}

	return nil
}

func (l *sqliteLedger) Recent(ctx context.Context, filter storage.Filter) ([]*storage.Posted, error) {
	query := `SELECT id, url, title, source, keyword, combined_score, published_at, posted_at FROM news_posts WHERE 1=1`
	args := []any{}

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.Since != nil {
		query += ` AND posted_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY posted_at DESC, rowid DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query recent: %w", err)
	}
	defer rows.Close()

	var results []*storage.Posted
	for rows.Next() {
		var p storage.Posted
		err := rows.Scan(&p.ID, &p.URL, &p.Title, &p.Source, &p.Keyword, &p.CombinedScore, &p.PublishedAt, &p.PostedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		results = append(results, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}

	return results, nil
}

func (l *sqliteLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM news_posts WHERE posted_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune: %w", err)
	}
	return n, nil
}

func (l *sqliteLedger) Close() error {
	return l.db.Close()
}

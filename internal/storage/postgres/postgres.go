package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/quill/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresStore implements storage.Store
var _ storage.Store = (*postgresStore)(nil)

type postgresStore struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	url TEXT,
	original_content TEXT NOT NULL,
	updated_content TEXT,
	reference_links TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_url ON articles(url);
`

const columns = `id, title, url, original_content, updated_content, reference_links, created_at, updated_at`

// New connects to Postgres and ensures the schema exists. A failed ping is
// returned so startup can abort.
func New(ctx context.Context, dsn string) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) CreateArticle(ctx context.Context, a *storage.Article) (string, error) {
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO articles (`+columns+`) VALUES ($1, $2, $3, $4, NULL, NULL, $5, $6)`,
		a.ID, a.Title, a.URL, a.OriginalContent, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert article: %w", err)
	}
	return a.ID, nil
}

func (s *postgresStore) ListArticles(ctx context.Context, filter storage.Filter) ([]*storage.Article, error) {
	query := `SELECT ` + columns + ` FROM articles WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Pending {
		query += ` AND (updated_content IS NULL OR updated_content = '')`
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []*storage.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

func (s *postgresStore) GetArticle(ctx context.Context, id string) (*storage.Article, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+columns+` FROM articles WHERE id = $1`, id)
	a, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return a, err
}

func (s *postgresStore) FindByURL(ctx context.Context, url string) (*storage.Article, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+columns+` FROM articles WHERE url = $1 LIMIT 1`, url)
	a, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (s *postgresStore) UpdateRewrite(ctx context.Context, id, updatedContent string, links []string) error {
	tag, err := s.pool.Exec(ctx, `
	UPDATE articles SET updated_content = $1, reference_links = $2, updated_at = $3
	WHERE id = $4 AND (updated_content IS NULL OR updated_content = '')`,
		updatedContent, storage.JoinLinks(links), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := s.GetArticle(ctx, id); err != nil {
		return err
	}
	return storage.ErrAlreadyUpdated
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanArticle(row pgx.Row) (*storage.Article, error) {
	var (
		a       storage.Article
		url     *string
		updated *string
		links   *string
	)
	err := row.Scan(&a.ID, &a.Title, &url, &a.OriginalContent, &updated, &links, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan article: %w", err)
	}
	if url != nil {
		a.URL = *url
	}
	a.UpdatedContent = updated
	if links != nil {
		a.ReferenceLinks = storage.SplitLinks(*links)
	}
	return &a, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/quill/internal/storage"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ensure sqliteStore implements storage.Store
var _ storage.Store = (*sqliteStore)(nil)

type sqliteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	url TEXT,
	original_content TEXT NOT NULL,
	updated_content TEXT,
	reference_links TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_url ON articles(url);
`

const columns = `id, title, url, original_content, updated_content, reference_links, created_at, updated_at`

// New opens (or creates) the SQLite database at dsn.
func New(dsn string) (storage.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) CreateArticle(ctx context.Context, a *storage.Article) (string, error) {
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (`+columns+`) VALUES (?, ?, ?, ?, NULL, NULL, ?, ?)`,
		a.ID, a.Title, a.URL, a.OriginalContent, a.CreatedAt.UTC(), a.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert article: %w", err)
	}
	return a.ID, nil
}

func (s *sqliteStore) ListArticles(ctx context.Context, filter storage.Filter) ([]*storage.Article, error) {
	query := `SELECT ` + columns + ` FROM articles WHERE 1=1`
	args := []any{}

	if filter.Pending {
		query += ` AND (updated_content IS NULL OR updated_content = '')`
	}

	query += ` ORDER BY created_at DESC`

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

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *sqliteStore) GetArticle(ctx context.Context, id string) (*storage.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return a, err
}

func (s *sqliteStore) FindByURL(ctx context.Context, url string) (*storage.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM articles WHERE url = ? LIMIT 1`, url)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (s *sqliteStore) UpdateRewrite(ctx context.Context, id, updatedContent string, links []string) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE articles SET updated_content = ?, reference_links = ?, updated_at = ?
	WHERE id = ? AND (updated_content IS NULL OR updated_content = '')`,
		updatedContent, storage.JoinLinks(links), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	if n == 1 {
		return nil
	}

	if _, err := s.GetArticle(ctx, id); err != nil {
		return err
	}
	return storage.ErrAlreadyUpdated
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (*storage.Article, error) {
	var (
		a       storage.Article
		url     sql.NullString
		updated sql.NullString
		links   sql.NullString
	)
	err := row.Scan(&a.ID, &a.Title, &url, &a.OriginalContent, &updated, &links, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan article: %w", err)
	}
	a.URL = url.String
	if updated.Valid {
		a.UpdatedContent = &updated.String
	}
	a.ReferenceLinks = storage.SplitLinks(links.String)
	return &a, nil
}

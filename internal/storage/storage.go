package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no article has the requested ID.
	ErrNotFound = errors.New("article not found")
	// ErrAlreadyUpdated is returned by UpdateRewrite when the article already
	// carries rewritten content.
	ErrAlreadyUpdated = errors.New("article already updated")
)

// Article is one ingested blog post plus its optional rewrite.
type Article struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	URL             string `json:"url"`
	OriginalContent string `json:"original_content"`
	// UpdatedContent is nil until a rewrite has been saved.
	UpdatedContent *string   `json:"updated_content"`
	ReferenceLinks []string  `json:"reference_links"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsUpdated reports whether a rewrite has already been persisted.
func (a *Article) IsUpdated() bool {
	return a.UpdatedContent != nil && *a.UpdatedContent != ""
}

// Filter narrows ListArticles.
type Filter struct {
	// Pending keeps only articles without updated content.
	Pending bool
	Limit   int
	Offset  int
}

// Store persists articles. Implementations order ListArticles newest-first.
type Store interface {
	CreateArticle(ctx context.Context, a *Article) (string, error)
	ListArticles(ctx context.Context, filter Filter) ([]*Article, error)
	GetArticle(ctx context.Context, id string) (*Article, error)
	// FindByURL returns nil, nil when no article has the URL.
	FindByURL(ctx context.Context, url string) (*Article, error)
	// UpdateRewrite sets updated content and reference links together.
	UpdateRewrite(ctx context.Context, id, updatedContent string, links []string) error
	Close() error
}

const linkSeparator = ", "

// JoinLinks renders reference links in their stored form.
func JoinLinks(links []string) string {
	return strings.Join(links, linkSeparator)
}

// SplitLinks parses the stored form back into a slice. Empty input is nil.
func SplitLinks(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	links := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			links = append(links, p)
		}
	}
	return links
}

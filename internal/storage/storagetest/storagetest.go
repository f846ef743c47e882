// Package storagetest holds the behaviour every storage.Store driver must
// share. Driver packages call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/FranksOps/quill/internal/storage"
)

// Run exercises s. The store must be empty.
func Run(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	older := &storage.Article{
		Title:           "Older post",
		URL:             "https://blog.example/blogs/older/",
		OriginalContent: "older content",
		CreatedAt:       base,
	}
	newer := &storage.Article{
		Title:           "Newer post",
		URL:             "https://blog.example/blogs/newer/",
		OriginalContent: "newer content",
		CreatedAt:       base.Add(time.Hour),
	}

	olderID, err := s.CreateArticle(ctx, older)
	if err != nil {
		t.Fatalf("failed to create article: %v", err)
	}
	if olderID == "" || older.ID != olderID {
		t.Fatalf("expected ID to be assigned, got %q / %q", olderID, older.ID)
	}
	newerID, err := s.CreateArticle(ctx, newer)
	if err != nil {
		t.Fatalf("failed to create article: %v", err)
	}

	list, err := s.ListArticles(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("failed to list articles: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(list))
	}
	if list[0].ID != newerID || list[1].ID != olderID {
		t.Errorf("expected newest first, got %s then %s", list[0].Title, list[1].Title)
	}

	got, err := s.GetArticle(ctx, olderID)
	if err != nil {
		t.Fatalf("failed to get article: %v", err)
	}
	if got.Title != older.Title || got.URL != older.URL || got.OriginalContent != older.OriginalContent {
		t.Errorf("unexpected article %+v", got)
	}
	if got.IsUpdated() || got.ReferenceLinks != nil {
		t.Errorf("expected fresh article to have no rewrite, got %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("expected created_at %v, got %v", base, got.CreatedAt)
	}

	if _, err := s.GetArticle(ctx, "does-not-exist"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	found, err := s.FindByURL(ctx, newer.URL)
	if err != nil || found == nil || found.ID != newerID {
		t.Errorf("expected to find newer by url, got %v, %v", found, err)
	}
	missing, err := s.FindByURL(ctx, "https://blog.example/none/")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for unknown url, got %v, %v", missing, err)
	}

	links := []string{"https://a.example/one", "https://b.example/two"}
	if err := s.UpdateRewrite(ctx, olderID, "rewritten text", links); err != nil {
		t.Fatalf("failed to update rewrite: %v", err)
	}
	got, err = s.GetArticle(ctx, olderID)
	if err != nil {
		t.Fatalf("failed to get article: %v", err)
	}
	if !got.IsUpdated() || *got.UpdatedContent != "rewritten text" {
		t.Errorf("expected updated content, got %v", got.UpdatedContent)
	}
	if !reflect.DeepEqual(got.ReferenceLinks, links) {
		t.Errorf("expected links %v, got %v", links, got.ReferenceLinks)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("expected updated_at after created_at")
	}
	if got.OriginalContent != older.OriginalContent {
		t.Errorf("expected original content unchanged")
	}

	if err := s.UpdateRewrite(ctx, olderID, "second rewrite", links); !errors.Is(err, storage.ErrAlreadyUpdated) {
		t.Errorf("expected ErrAlreadyUpdated, got %v", err)
	}
	if err := s.UpdateRewrite(ctx, "does-not-exist", "x", links); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	pending, err := s.ListArticles(ctx, storage.Filter{Pending: true})
	if err != nil {
		t.Fatalf("failed to list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != newerID {
		t.Errorf("expected only the newer article pending, got %d", len(pending))
	}

	page, err := s.ListArticles(ctx, storage.Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("failed to list page: %v", err)
	}
	if len(page) != 1 || page[0].ID != olderID {
		t.Errorf("expected second page to hold the older article")
	}
}

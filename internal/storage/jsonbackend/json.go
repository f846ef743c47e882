package jsonbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/FranksOps/quill/internal/storage"
	"github.com/google/uuid"
)

// ensure jsonStore implements storage.Store
var _ storage.Store = (*jsonStore)(nil)

// jsonStore keeps every article in memory and persists the whole set as one
// JSON document. Writes go to a temp file that is renamed over the original.
type jsonStore struct {
	mu       sync.Mutex
	path     string
	articles []*storage.Article
}

// New loads filePath, creating an empty store when it does not exist.
func New(filePath string) (storage.Store, error) {
	s := &jsonStore{path: filePath}

	data, err := os.ReadFile(filePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read store: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.articles); err != nil {
			return nil, fmt.Errorf("decode store: %w", err)
		}
	}
	return s, nil
}

func (s *jsonStore) CreateArticle(ctx context.Context, a *storage.Article) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := *a
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	stored.UpdatedContent = nil
	stored.ReferenceLinks = nil

	next := append(append([]*storage.Article(nil), s.articles...), &stored)
	if err := s.flush(next); err != nil {
		return "", err
	}
	s.articles = next

	a.ID, a.CreatedAt, a.UpdatedAt = stored.ID, stored.CreatedAt, stored.UpdatedAt
	return stored.ID, nil
}

func (s *jsonStore) ListArticles(ctx context.Context, filter storage.Filter) ([]*storage.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*storage.Article
	for _, a := range s.articles {
		if filter.Pending && a.IsUpdated() {
			continue
		}
		out = append(out, clone(a))
	}

	// Order by created_at DESC
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*storage.Article{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *jsonStore) GetArticle(ctx context.Context, id string) (*storage.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.articles {
		if a.ID == id {
			return clone(a), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *jsonStore) FindByURL(ctx context.Context, url string) (*storage.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.articles {
		if a.URL == url {
			return clone(a), nil
		}
	}
	return nil, nil
}

func (s *jsonStore) UpdateRewrite(ctx context.Context, id, updatedContent string, links []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, a := range s.articles {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return storage.ErrNotFound
	}
	if s.articles[idx].IsUpdated() {
		return storage.ErrAlreadyUpdated
	}

	updated := clone(s.articles[idx])
	updated.UpdatedContent = &updatedContent
	updated.ReferenceLinks = append([]string(nil), links...)
	updated.UpdatedAt = time.Now().UTC()

	next := append([]*storage.Article(nil), s.articles...)
	next[idx] = updated
	if err := s.flush(next); err != nil {
		return err
	}
	s.articles = next
	return nil
}

func (s *jsonStore) Close() error {
	return nil
}

// flush writes articles to disk. The in-memory set is only swapped by the
// caller after flush succeeds, so a failed write leaves both untouched.
func (s *jsonStore) flush(articles []*storage.Article) error {
	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func clone(a *storage.Article) *storage.Article {
	c := *a
	if a.UpdatedContent != nil {
		v := *a.UpdatedContent
		c.UpdatedContent = &v
	}
	if a.ReferenceLinks != nil {
		c.ReferenceLinks = append([]string(nil), a.ReferenceLinks...)
	}
	return &c
}

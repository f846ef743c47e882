package jsonbackend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/FranksOps/quill/internal/storage"
	"github.com/FranksOps/quill/internal/storage/storagetest"
)

func TestJSONStore(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "quill.json"))
	if err != nil {
		t.Fatalf("Failed to create JSON store: %v", err)
	}
	defer s.Close()

	storagetest.Run(t, s)
}

func TestJSONStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "quill.json")
	ctx := context.Background()

	s, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create JSON store: %v", err)
	}
	id, err := s.CreateArticle(ctx, &storage.Article{Title: "Kept", URL: "https://x.example/a", OriginalContent: "body"})
	if err != nil {
		t.Fatalf("Failed to create article: %v", err)
	}
	if err := s.UpdateRewrite(ctx, id, "new body", []string{"https://y.example/1", "https://z.example/2"}); err != nil {
		t.Fatalf("Failed to update article: %v", err)
	}

	reopened, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to reopen JSON store: %v", err)
	}
	got, err := reopened.GetArticle(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get article: %v", err)
	}
	if !got.IsUpdated() || *got.UpdatedContent != "new body" {
		t.Errorf("Expected rewrite to persist, got %v", got.UpdatedContent)
	}
	if len(got.ReferenceLinks) != 2 {
		t.Errorf("Expected 2 reference links, got %v", got.ReferenceLinks)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the store file to remain, got %d entries", len(entries))
	}
}

func TestJSONStore_CorruptFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "quill.json")
	if err := os.WriteFile(filePath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := New(filePath); err == nil {
		t.Errorf("Expected error decoding corrupt store")
	}
}

package competitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/quill/internal/extract"
	"github.com/FranksOps/quill/internal/fetch"
)

func TestScraper_Scrape(t *testing.T) {
	para := "<p>" + strings.Repeat("Competitor insight sentence. ", 5) + "</p>"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			_, _ = w.Write([]byte("<html><body><nav>Home About</nav><article>" + para + para + "</article></body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	f, err := fetch.New(fetch.Config{})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	s := NewScraper(f, extract.External(), 5*time.Second)

	text, err := s.Scrape(context.Background(), ts.URL+"/article")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Competitor insight sentence.") {
		t.Errorf("expected competitor text, got %q", text)
	}
	if strings.Contains(text, "Home About") {
		t.Errorf("expected navigation to be stripped, got %q", text)
	}

	_, err = s.Scrape(context.Background(), ts.URL+"/missing")
	var fe *fetch.Error
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 fetch error, got %v", err)
	}
}

package pipeline_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/quill/internal/blog"
	"github.com/FranksOps/quill/internal/competitor"
	"github.com/FranksOps/quill/internal/extract"
	"github.com/FranksOps/quill/internal/fetch"
	"github.com/FranksOps/quill/internal/pipeline"
	"github.com/FranksOps/quill/internal/retry"
	"github.com/FranksOps/quill/internal/rewrite"
	"github.com/FranksOps/quill/internal/serp"
	"github.com/FranksOps/quill/internal/storage"
	"github.com/FranksOps/quill/internal/storage/jsonbackend"
)

func page(title, cls string, paragraphs int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><head><title>%s</title></head><body><h1 class="entry-title">%s</h1><div class="%s">`, title, title, cls)
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&b, "<p>%s paragraph %d explains the topic in enough detail to be kept.</p>", title, i)
	}
	b.WriteString(`<p>Subscribe to our newsletter and accept the cookie policy today please.</p></div></body></html>`)
	return b.String()
}

// newSite serves a one-page blog listing with two articles plus two
// competitor articles on the same host.
func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/blogs/":
			fmt.Fprint(w, `<html><body>
				<article class="entry-card"><h2 class="entry-title"><a href="/blogs/second/">Second</a></h2></article>
				<article class="entry-card"><h2 class="entry-title"><a href="/blogs/first/">First</a></h2></article>
				<a href="/blogs/tag/ai/">tag</a>
			</body></html>`)
		case "/blogs/page/2/":
			fmt.Fprint(w, `<html><body><p>No more posts</p></body></html>`)
		case "/blogs/first/":
			fmt.Fprint(w, page("Chatbots for Small Business", "post-content", 4))
		case "/blogs/second/":
			fmt.Fprint(w, page("Customer Support Automation", "entry-content", 4))
		case "/competitor/one":
			fmt.Fprint(w, page("Competitor One", "article-body", 12))
		case "/competitor/two":
			fmt.Fprint(w, page("Competitor Two", "article-body", 12))
		default:
			http.NotFound(w, r)
		}
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

type staticProvider struct {
	results []serp.Result
	mu      sync.Mutex
	queries []string
}

func (p *staticProvider) Name() string { return "static" }

func (p *staticProvider) Search(ctx context.Context, query string, limit int) ([]serp.Result, error) {
	p.mu.Lock()
	p.queries = append(p.queries, query)
	p.mu.Unlock()
	return p.results, nil
}

type recordingModel struct {
	mu      sync.Mutex
	prompts []string
}

func (m *recordingModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return "\n" + strings.Repeat("A fresh, well structured rewrite. ", 10) + "\n", nil
}

func TestIngestThenUpdate(t *testing.T) {
	ts := newSite(t)
	ctx := context.Background()

	store, err := jsonbackend.New(filepath.Join(t.TempDir(), "articles.json"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	f, err := fetch.New(fetch.Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	// Ingest.
	listing := blog.NewListing(f, blog.ListingConfig{BaseURL: ts.URL + "/blogs", MaxPages: 5})
	ingestor := blog.NewIngestor(listing, f, store, blog.IngestConfig{TargetCount: 5, Profile: extract.Site()})
	isum, err := ingestor.Run(ctx)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if isum.Discovered != 2 || isum.Saved != 2 {
		t.Fatalf("expected 2 discovered and saved, got %+v", isum)
	}

	// Update.
	competitors := []string{ts.URL + "/competitor/one", ts.URL + "/competitor/two"}
	provider := &staticProvider{results: []serp.Result{
		{Title: "Thread", URL: "https://www.reddit.com/r/chatbots/1"},
		{Title: "One", URL: competitors[0]},
		{Title: "Two", URL: competitors[1]},
	}}
	model := &recordingModel{}
	noWait := retry.Policy{Attempts: 2, Sleep: func(context.Context, time.Duration) error { return nil }}

	ctrl := pipeline.New(
		store,
		competitor.NewFinder(provider, competitor.FinderConfig{SelfDomain: "beyondchats.com"}),
		competitor.NewScraper(f, extract.External(), 0),
		rewrite.NewEngine(model, 0, nil),
		pipeline.Config{SearchRetry: noWait, ScrapeRetry: noWait, RewriteRetry: noWait},
	)

	sum, err := ctrl.Run(ctx)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if sum.Succeeded != 2 || sum.Total != 2 {
		t.Fatalf("expected 2 successes, got %+v", sum)
	}
	if len(model.prompts) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(model.prompts))
	}
	p := model.prompts[0]
	i := strings.Index(p, "COMPETITOR ARTICLE 1:")
	if i < 0 || !strings.Contains(p, "Competitor Two paragraph") {
		t.Fatalf("expected competitor texts in prompt")
	}
	if strings.Contains(p[i:], "Subscribe to our newsletter") {
		t.Errorf("expected keyword-filtered chunks to be dropped from competitor text")
	}

	articles, err := store.ListArticles(ctx, storage.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range articles {
		if !a.IsUpdated() || strings.HasPrefix(*a.UpdatedContent, "\n") {
			t.Errorf("expected trimmed rewrite for %s", a.Title)
		}
		if !reflect.DeepEqual(a.ReferenceLinks, competitors) {
			t.Errorf("expected reference links %v, got %v", competitors, a.ReferenceLinks)
		}
	}

	// A second pass finds nothing to do.
	again, err := ctrl.Run(ctx)
	if err != nil {
		t.Fatalf("second update failed: %v", err)
	}
	if again.Skipped != 2 || len(model.prompts) != 2 {
		t.Errorf("expected both articles skipped without model calls, got %+v", again)
	}

	// Re-ingesting is idempotent.
	isum, err = ingestor.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if isum.Duplicate != 2 || isum.Saved != 0 {
		t.Errorf("expected duplicates on re-ingest, got %+v", isum)
	}
}

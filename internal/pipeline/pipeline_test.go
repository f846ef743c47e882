package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/quill/internal/retry"
	"github.com/FranksOps/quill/internal/rewrite"
	"github.com/FranksOps/quill/internal/storage"
)

func noSleep(context.Context, time.Duration) error { return nil }

type fakeStore struct {
	mu       sync.Mutex
	articles []*storage.Article
	updates  map[string][]string
	listErr  error
	saveErr  error
}

func (s *fakeStore) ListArticles(ctx context.Context, f storage.Filter) ([]*storage.Article, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	// newest first, like the real stores
	out := append([]*storage.Article(nil), s.articles...)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *fakeStore) UpdateRewrite(ctx context.Context, id, updated string, links []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, a := range s.articles {
		if a.ID == id {
			if a.IsUpdated() {
				return storage.ErrAlreadyUpdated
			}
			a.UpdatedContent = &updated
			a.ReferenceLinks = links
			if s.updates == nil {
				s.updates = map[string][]string{}
			}
			s.updates[id] = links
			return nil
		}
	}
	return storage.ErrNotFound
}

type fakeSearcher struct {
	links  map[string][]string
	errs   int // fail this many calls first
	calls  int
	titles []string
}

func (f *fakeSearcher) SearchWithVariations(ctx context.Context, title string) ([]string, error) {
	f.calls++
	f.titles = append(f.titles, title)
	if f.calls <= f.errs {
		return nil, errors.New("search transport error")
	}
	return f.links[title], nil
}

type fakeScraper struct {
	pages map[string]string
	fail  map[string]bool
	calls []string
}

func (f *fakeScraper) Scrape(ctx context.Context, link string) (string, error) {
	f.calls = append(f.calls, link)
	if f.fail[link] {
		return "", errors.New("fetch failed")
	}
	return f.pages[link], nil
}

type fakeRewriter struct {
	text  string
	err   error
	calls int
	reqs  []rewrite.Request
}

func (f *fakeRewriter) Generate(ctx context.Context, req rewrite.Request) (string, error) {
	f.calls++
	f.reqs = append(f.reqs, req)
	return f.text, f.err
}

var (
	longText    = strings.Repeat("competitor insight ", 40) // 760 chars
	rewriteText = strings.Repeat("rewritten sentence. ", 10)
)

func article(id, title string, created time.Time) *storage.Article {
	return &storage.Article{ID: id, Title: title, OriginalContent: "original " + title, CreatedAt: created}
}

func testConfig() Config {
	p := retry.Policy{Attempts: 2, Sleep: noSleep}
	return Config{SearchRetry: p, ScrapeRetry: p, RewriteRetry: retry.Policy{Attempts: 3, Sleep: noSleep}}
}

func checkTotals(t *testing.T, sum *Summary) {
	t.Helper()
	if sum.Succeeded+sum.Skipped+sum.Failed != sum.Total {
		t.Errorf("expected counts to sum to total: %+v", sum)
	}
	if len(sum.Results) != sum.Total {
		t.Errorf("expected %d results, got %d", sum.Total, len(sum.Results))
	}
}

func TestController_Success(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{articles: []*storage.Article{article("a1", "Chatbots", base)}}
	searcher := &fakeSearcher{links: map[string][]string{"Chatbots": {"https://x.example/1", "https://y.example/2"}}}
	scraper := &fakeScraper{pages: map[string]string{"https://x.example/1": longText, "https://y.example/2": longText + "B"}}
	rewriter := &fakeRewriter{text: "  " + rewriteText + "  "}

	sum, err := New(store, searcher, scraper, rewriter, testConfig()).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkTotals(t, sum)
	if sum.Succeeded != 1 || sum.Total != 1 {
		t.Fatalf("expected 1 success, got %+v", sum)
	}
	if sum.RunID == "" {
		t.Errorf("expected run id")
	}

	a := store.articles[0]
	if !a.IsUpdated() || *a.UpdatedContent != strings.TrimSpace(rewriteText) {
		t.Errorf("expected trimmed rewrite to be saved, got %v", a.UpdatedContent)
	}
	if !reflect.DeepEqual(a.ReferenceLinks, []string{"https://x.example/1", "https://y.example/2"}) {
		t.Errorf("unexpected reference links %v", a.ReferenceLinks)
	}
	req := rewriter.reqs[0]
	if req.Original != "original Chatbots" || len(req.Competitors) != 2 || req.Competitors[1] != longText+"B" {
		t.Errorf("unexpected rewrite request %+v", req)
	}
	if sum.Results[0].State != StateSaved {
		t.Errorf("expected saved state, got %s", sum.Results[0].State)
	}
}

func TestController_IdempotentSkip(t *testing.T) {
	done := "already rewritten"
	a := article("a1", "Done", time.Now())
	a.UpdatedContent = &done
	store := &fakeStore{articles: []*storage.Article{a}}
	searcher := &fakeSearcher{}
	rewriter := &fakeRewriter{}

	c := New(store, searcher, &fakeScraper{}, rewriter, testConfig())
	for i := 0; i < 2; i++ {
		sum, err := c.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		checkTotals(t, sum)
		if sum.Skipped != 1 {
			t.Errorf("run %d: expected 1 skipped, got %+v", i, sum)
		}
	}
	if searcher.calls != 0 || rewriter.calls != 0 {
		t.Errorf("expected no search or rewrite calls for updated article")
	}
	if *a.UpdatedContent != done {
		t.Errorf("expected updated content unchanged")
	}
}

func TestController_OneLinkFailsAndContinues(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{articles: []*storage.Article{
		article("a1", "Lonely", base),
		article("a2", "Popular", base.Add(time.Hour)),
	}}
	searcher := &fakeSearcher{links: map[string][]string{
		"Lonely":  {"https://only.example/1"},
		"Popular": {"https://x.example/1", "https://y.example/2"},
	}}
	scraper := &fakeScraper{pages: map[string]string{"https://x.example/1": longText, "https://y.example/2": longText}}
	rewriter := &fakeRewriter{text: rewriteText}

	sum, err := New(store, searcher, scraper, rewriter, testConfig()).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkTotals(t, sum)
	if sum.Failed != 1 || sum.Succeeded != 1 {
		t.Fatalf("expected 1 failed and 1 succeeded, got %+v", sum)
	}

	first := sum.Results[0]
	if first.ArticleID != "a1" || first.State != StateFailed || !errors.Is(first.Err, ErrSearchInsufficient) {
		t.Errorf("expected a1 to fail on search, got %+v", first)
	}
	if first.Stage != StateSearching {
		t.Errorf("expected failure at searching, got %s", first.Stage)
	}
	for _, link := range scraper.calls {
		if link == "https://only.example/1" {
			t.Errorf("expected no scrape for the failed article")
		}
	}
	if rewriter.calls != 1 {
		t.Errorf("expected rewrite only for the second article, got %d calls", rewriter.calls)
	}
	if store.articles[0].IsUpdated() {
		t.Errorf("expected failed article to stay untouched")
	}
}

func TestController_SearchRetried(t *testing.T) {
	store := &fakeStore{articles: []*storage.Article{article("a1", "T", time.Now())}}
	searcher := &fakeSearcher{errs: 1, links: map[string][]string{"T": {"https://x.example/1", "https://y.example/2"}}}
	scraper := &fakeScraper{pages: map[string]string{"https://x.example/1": longText, "https://y.example/2": longText}}

	sum, _ := New(store, searcher, scraper, &fakeRewriter{text: rewriteText}, testConfig()).Run(context.Background())
	if sum.Succeeded != 1 || searcher.calls != 2 {
		t.Errorf("expected success after one retried search, got %+v with %d calls", sum, searcher.calls)
	}

	searcher = &fakeSearcher{errs: 5}
	store = &fakeStore{articles: []*storage.Article{article("a1", "T", time.Now())}}
	sum, _ = New(store, searcher, scraper, &fakeRewriter{}, testConfig()).Run(context.Background())
	if sum.Failed != 1 || searcher.calls != 2 {
		t.Errorf("expected failure after 2 attempts, got %+v with %d calls", sum, searcher.calls)
	}
	if errors.Is(sum.Results[0].Err, ErrSearchInsufficient) {
		t.Errorf("expected transport failure to stay distinct from insufficient results")
	}
}

func TestController_ShortCompetitorContent(t *testing.T) {
	store := &fakeStore{articles: []*storage.Article{article("a1", "T", time.Now())}}
	searcher := &fakeSearcher{links: map[string][]string{"T": {"https://x.example/1", "https://y.example/2"}}}
	scraper := &fakeScraper{
		pages: map[string]string{"https://x.example/1": longText, "https://y.example/2": strings.Repeat("a", 500)},
	}
	rewriter := &fakeRewriter{text: rewriteText}

	sum, _ := New(store, searcher, scraper, rewriter, testConfig()).Run(context.Background())
	checkTotals(t, sum)
	res := sum.Results[0]
	if res.State != StateFailed || !errors.Is(res.Err, ErrCompetitorScrapeInsufficient) {
		t.Errorf("expected competitor insufficiency, got %+v", res)
	}
	if rewriter.calls != 0 {
		t.Errorf("expected no rewrite call")
	}
	// Short content is not an error, so it is not retried.
	if len(scraper.calls) != 2 {
		t.Errorf("expected one scrape per link, got %v", scraper.calls)
	}
}

func TestController_ScrapeFailureRetriedThenSkipped(t *testing.T) {
	store := &fakeStore{articles: []*storage.Article{article("a1", "T", time.Now())}}
	searcher := &fakeSearcher{links: map[string][]string{"T": {"https://x.example/1", "https://bad.example/2", "https://z.example/3"}}}
	scraper := &fakeScraper{
		pages: map[string]string{"https://x.example/1": longText, "https://z.example/3": longText},
		fail:  map[string]bool{"https://bad.example/2": true},
	}

	sum, _ := New(store, searcher, scraper, &fakeRewriter{text: rewriteText}, testConfig()).Run(context.Background())
	if sum.Succeeded != 1 {
		t.Fatalf("expected success with the remaining links, got %+v", sum)
	}
	bad := 0
	for _, c := range scraper.calls {
		if c == "https://bad.example/2" {
			bad++
		}
	}
	if bad != 2 {
		t.Errorf("expected failing link to be attempted twice, got %d", bad)
	}
	if want := []string{"https://x.example/1", "https://z.example/3"}; !reflect.DeepEqual(store.updates["a1"], want) {
		t.Errorf("expected only used links to be saved, got %v", store.updates["a1"])
	}
}

func TestController_RewriteTooShort(t *testing.T) {
	store := &fakeStore{articles: []*storage.Article{article("a1", "T", time.Now())}}
	searcher := &fakeSearcher{links: map[string][]string{"T": {"https://x.example/1", "https://y.example/2"}}}
	scraper := &fakeScraper{pages: map[string]string{"https://x.example/1": longText, "https://y.example/2": longText}}
	rewriter := &fakeRewriter{text: "   " + strings.Repeat("x", 99) + "   "}

	sum, _ := New(store, searcher, scraper, rewriter, testConfig()).Run(context.Background())
	res := sum.Results[0]
	if res.State != StateFailed || !errors.Is(res.Err, ErrRewriteEmpty) {
		t.Errorf("expected ErrRewriteEmpty, got %+v", res)
	}
	if store.articles[0].IsUpdated() {
		t.Errorf("expected nothing persisted")
	}
}

func TestController_RewriteErrorRetried(t *testing.T) {
	store := &fakeStore{articles: []*storage.Article{article("a1", "T", time.Now())}}
	searcher := &fakeSearcher{links: map[string][]string{"T": {"https://x.example/1", "https://y.example/2"}}}
	scraper := &fakeScraper{pages: map[string]string{"https://x.example/1": longText, "https://y.example/2": longText}}
	rewriter := &fakeRewriter{err: rewrite.ErrEmptyResponse}

	sum, _ := New(store, searcher, scraper, rewriter, testConfig()).Run(context.Background())
	if rewriter.calls != 3 {
		t.Errorf("expected 3 rewrite attempts, got %d", rewriter.calls)
	}
	if res := sum.Results[0]; res.State != StateFailed || res.Stage != StateRewriting {
		t.Errorf("expected failure at rewriting, got %+v", res)
	}
}

func TestController_PersistenceError(t *testing.T) {
	dbDown := errors.New("connection reset")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		articles: []*storage.Article{article("a1", "T", base), article("a2", "T", base.Add(time.Minute))},
		saveErr:  dbDown,
	}
	searcher := &fakeSearcher{links: map[string][]string{"T": {"https://x.example/1", "https://y.example/2"}}}
	scraper := &fakeScraper{pages: map[string]string{"https://x.example/1": longText, "https://y.example/2": longText}}

	sum, err := New(store, searcher, scraper, &fakeRewriter{text: rewriteText}, testConfig()).Run(context.Background())
	if err != nil {
		t.Fatalf("expected run to continue past persistence errors, got %v", err)
	}
	checkTotals(t, sum)
	if sum.Failed != 2 {
		t.Fatalf("expected both articles to fail, got %+v", sum)
	}
	var pe *PersistenceError
	if !errors.As(sum.Results[0].Err, &pe) || pe.ArticleID != "a1" || !errors.Is(pe, dbDown) {
		t.Errorf("expected PersistenceError for a1, got %v", sum.Results[0].Err)
	}
}

func TestController_ListError(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db unavailable")}
	_, err := New(store, &fakeSearcher{}, &fakeScraper{}, &fakeRewriter{}, testConfig()).Run(context.Background())
	if err == nil {
		t.Fatalf("expected list error to abort the run")
	}
}

func TestController_OrderAndLimit(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{articles: []*storage.Article{
		article("old", "Old", base),
		article("mid", "Mid", base.Add(time.Hour)),
		article("new", "New", base.Add(2*time.Hour)),
	}}
	searcher := &fakeSearcher{}

	cfg := testConfig()
	cfg.Limit = 2
	sum, err := New(store, searcher, &fakeScraper{}, &fakeRewriter{}, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(searcher.titles, []string{"Old", "Mid"}) {
		t.Errorf("expected oldest two processed in order, got %v", searcher.titles)
	}
	if sum.Total != 2 {
		t.Errorf("expected total 2, got %d", sum.Total)
	}
}

type cancellingSearcher struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingSearcher) SearchWithVariations(ctx context.Context, title string) ([]string, error) {
	c.calls++
	c.cancel()
	return nil, nil
}

func TestController_CancelBetweenArticles(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{articles: []*storage.Article{article("a1", "A", base), article("a2", "B", base.Add(time.Hour))}}
	ctx, cancel := context.WithCancel(context.Background())
	searcher := &cancellingSearcher{cancel: cancel}

	sum, err := New(store, searcher, &fakeScraper{}, &fakeRewriter{}, testConfig()).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if searcher.calls != 1 || sum.Total != 1 {
		t.Errorf("expected to stop after the first article, got %d calls / total %d", searcher.calls, sum.Total)
	}
	checkTotals(t, sum)
}

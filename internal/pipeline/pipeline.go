// Package pipeline drives the update pass: for every stored article that has
// not been rewritten yet it finds competitor articles, scrapes them, asks the
// model for a rewrite and saves the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/FranksOps/quill/internal/metrics"
	"github.com/FranksOps/quill/internal/retry"
	"github.com/FranksOps/quill/internal/rewrite"
	"github.com/FranksOps/quill/internal/storage"
	"github.com/google/uuid"
)

// State is where an article ended up in a run.
type State string

const (
	StateNew                 State = "new"
	StateSearching           State = "searching"
	StateScrapingCompetitors State = "scraping_competitors"
	StateRewriting           State = "rewriting"
	StateSaved               State = "saved"
	StateSkipped             State = "skipped"
	StateFailed              State = "failed"
)

var (
	ErrSearchInsufficient           = errors.New("not enough reference links")
	ErrCompetitorScrapeInsufficient = errors.New("not enough competitor content")
	ErrRewriteEmpty                 = errors.New("rewrite too short")
)

// PersistenceError wraps a storage failure while saving one article.
type PersistenceError struct {
	ArticleID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save article %s: %v", e.ArticleID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// competitorsPerRewrite is how many competitor texts the prompt embeds.
const competitorsPerRewrite = 2

// Searcher finds competitor links for a title.
type Searcher interface {
	SearchWithVariations(ctx context.Context, title string) ([]string, error)
}

// Scraper returns the text of a competitor page.
type Scraper interface {
	Scrape(ctx context.Context, link string) (string, error)
}

// Rewriter produces the rewritten article.
type Rewriter interface {
	Generate(ctx context.Context, req rewrite.Request) (string, error)
}

// Store is the part of storage.Store the pipeline uses.
type Store interface {
	ListArticles(ctx context.Context, filter storage.Filter) ([]*storage.Article, error)
	UpdateRewrite(ctx context.Context, id, updatedContent string, links []string) error
}

// Thresholds are the minimum-viability gates between stages.
type Thresholds struct {
	MinLinks            int
	MinCompetitorLength int
	MinRewriteLength    int
}

// DefaultThresholds returns the stock gate values.
func DefaultThresholds() Thresholds {
	return Thresholds{MinLinks: 2, MinCompetitorLength: 500, MinRewriteLength: 100}
}

// Config tunes a Controller.
type Config struct {
	Thresholds   Thresholds
	SearchRetry  retry.Policy
	ScrapeRetry  retry.Policy
	RewriteRetry retry.Policy
	// Limit caps the articles taken from the oldest-first list; zero means all.
	Limit  int
	Logger *slog.Logger
}

// Controller runs the update pass sequentially, one article at a time.
type Controller struct {
	store    Store
	searcher Searcher
	scraper  Scraper
	rewriter Rewriter
	cfg      Config
	logger   *slog.Logger
}

func New(store Store, searcher Searcher, scraper Scraper, rewriter Rewriter, cfg Config) *Controller {
	def := DefaultThresholds()
	if cfg.Thresholds.MinLinks <= 0 {
		cfg.Thresholds.MinLinks = def.MinLinks
	}
	if cfg.Thresholds.MinCompetitorLength <= 0 {
		cfg.Thresholds.MinCompetitorLength = def.MinCompetitorLength
	}
	if cfg.Thresholds.MinRewriteLength <= 0 {
		cfg.Thresholds.MinRewriteLength = def.MinRewriteLength
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		store:    store,
		searcher: searcher,
		scraper:  scraper,
		rewriter: rewriter,
		cfg:      cfg,
		logger:   cfg.Logger,
	}
}

// Run processes every stored article oldest first. A listing failure is
// returned as an error; per-article failures are recorded in the summary.
// On cancellation the loop stops between articles and the partial summary
// is returned with the context error.
func (c *Controller) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: uuid.New().String(), StartedAt: time.Now().UTC()}
	logger := c.logger.With("run_id", sum.RunID)

	articles, err := c.store.ListArticles(ctx, storage.Filter{})
	if err != nil {
		return sum, fmt.Errorf("list articles: %w", err)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].CreatedAt.Before(articles[j].CreatedAt)
	})
	if c.cfg.Limit > 0 && len(articles) > c.cfg.Limit {
		articles = articles[:c.cfg.Limit]
	}

	if len(articles) == 0 {
		logger.Info("no articles found; run ingest first")
	}

	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			sum.Duration = time.Since(sum.StartedAt)
			return sum, err
		}
		res := c.process(ctx, a, logger.With("article_id", a.ID))
		metrics.ObserveArticle(string(res.State))
		sum.add(res)
	}

	sum.Duration = time.Since(sum.StartedAt)
	return sum, nil
}

// process moves one article through the gates and reports its final state.
func (c *Controller) process(ctx context.Context, a *storage.Article, log *slog.Logger) Result {
	res := Result{ArticleID: a.ID, Title: a.Title, State: StateNew}
	log.Info("processing article", "title", a.Title)

	if a.IsUpdated() {
		log.Info("already updated, skipping")
		return res.skip("already updated")
	}

	res.State = StateSearching
	links, err := retry.Do(ctx, c.cfg.SearchRetry, func(ctx context.Context) ([]string, error) {
		return c.searcher.SearchWithVariations(ctx, a.Title)
	})
	if err != nil {
		log.Warn("search failed", "err", err)
		return res.fail(fmt.Errorf("search: %w", err))
	}
	if len(links) < c.cfg.Thresholds.MinLinks {
		log.Warn("not enough reference links", "found", len(links), "need", c.cfg.Thresholds.MinLinks)
		return res.fail(fmt.Errorf("%w: found %d, need %d", ErrSearchInsufficient, len(links), c.cfg.Thresholds.MinLinks))
	}
	log.Info("found reference links", "links", links)

	res.State = StateScrapingCompetitors
	var (
		texts []string
		used  []string
	)
	for i, link := range links {
		text, err := retry.Do(ctx, c.cfg.ScrapeRetry, func(ctx context.Context) (string, error) {
			return c.scraper.Scrape(ctx, link)
		})
		if err != nil {
			log.Warn("competitor scrape failed", "link", link, "err", err)
			continue
		}
		n := utf8.RuneCountInString(text)
		if n <= c.cfg.Thresholds.MinCompetitorLength {
			log.Info("competitor content too short", "link", link, "length", n)
			continue
		}
		log.Info("scraped competitor", "index", i+1, "of", len(links), "length", n)
		texts = append(texts, text)
		used = append(used, link)
	}
	if len(texts) < competitorsPerRewrite {
		log.Warn("not enough competitor content", "scraped", len(texts))
		return res.fail(fmt.Errorf("%w: scraped %d, need %d", ErrCompetitorScrapeInsufficient, len(texts), competitorsPerRewrite))
	}
	texts, used = texts[:competitorsPerRewrite], used[:competitorsPerRewrite]

	res.State = StateRewriting
	updated, err := retry.Do(ctx, c.cfg.RewriteRetry, func(ctx context.Context) (string, error) {
		return c.rewriter.Generate(ctx, rewrite.Request{Original: a.OriginalContent, Competitors: texts})
	})
	if err != nil {
		log.Warn("rewrite failed", "err", err)
		return res.fail(fmt.Errorf("rewrite: %w", err))
	}
	updated = strings.TrimSpace(updated)
	if n := utf8.RuneCountInString(updated); n < c.cfg.Thresholds.MinRewriteLength {
		log.Warn("rewrite too short", "length", n)
		return res.fail(fmt.Errorf("%w: %d characters", ErrRewriteEmpty, n))
	}

	if err := c.store.UpdateRewrite(ctx, a.ID, updated, used); err != nil {
		if errors.Is(err, storage.ErrAlreadyUpdated) {
			log.Info("updated concurrently, skipping")
			return res.skip("already updated")
		}
		log.Error("save failed", "err", err)
		return res.fail(&PersistenceError{ArticleID: a.ID, Err: err})
	}

	log.Info("article updated", "length", utf8.RuneCountInString(updated), "links", len(used))
	res.State = StateSaved
	res.Links = used
	return res
}

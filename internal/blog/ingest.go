package blog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/quill/internal/extract"
	"github.com/FranksOps/quill/internal/fetch"
	"github.com/FranksOps/quill/internal/storage"
)

const (
	DefaultTargetCount      = 5
	DefaultMinContentLength = 150
	DefaultArticleTimeout   = 15 * time.Second
)

// ArticleStore is the part of storage.Store ingestion writes to.
type ArticleStore interface {
	FindByURL(ctx context.Context, url string) (*storage.Article, error)
	CreateArticle(ctx context.Context, a *storage.Article) (string, error)
}

// IngestConfig tunes bulk ingestion.
type IngestConfig struct {
	TargetCount      int
	MinContentLength int
	ArticleTimeout   time.Duration
	// Pause is slept between article fetches.
	Pause   time.Duration
	Profile extract.Profile
	Logger  *slog.Logger
}

// IngestSummary tallies one ingestion run.
type IngestSummary struct {
	Discovered int `json:"discovered" yaml:"discovered"`
	Saved      int `json:"saved" yaml:"saved"`
	Invalid    int `json:"invalid" yaml:"invalid"`
	Duplicate  int `json:"duplicate" yaml:"duplicate"`
	Failed     int `json:"failed" yaml:"failed"`
}

// Ingestor saves the oldest blog articles that are not stored yet.
type Ingestor struct {
	listing *Listing
	fetcher PageFetcher
	store   ArticleStore
	cfg     IngestConfig
	logger  *slog.Logger
}

func NewIngestor(listing *Listing, fetcher PageFetcher, store ArticleStore, cfg IngestConfig) *Ingestor {
	if cfg.TargetCount <= 0 {
		cfg.TargetCount = DefaultTargetCount
	}
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = DefaultMinContentLength
	}
	if cfg.ArticleTimeout <= 0 {
		cfg.ArticleTimeout = DefaultArticleTimeout
	}
	if cfg.Profile.Locators == nil {
		cfg.Profile = extract.Site()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Ingestor{listing: listing, fetcher: fetcher, store: store, cfg: cfg, logger: cfg.Logger}
}

// Run collects the oldest TargetCount links and stores each valid article.
// Per-article failures are counted and skipped; only link collection
// failures abort the run.
func (in *Ingestor) Run(ctx context.Context) (IngestSummary, error) {
	var sum IngestSummary

	links, err := in.listing.OldestLinks(ctx, in.cfg.TargetCount)
	if err != nil {
		return sum, fmt.Errorf("collect links: %w", err)
	}
	sum.Discovered = len(links)
	in.logger.Info("scraping oldest articles", "count", len(links))

	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if i > 0 && in.cfg.Pause > 0 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(in.cfg.Pause):
			}
		}
		in.ingestOne(ctx, link, &sum)
	}
	return sum, nil
}

func (in *Ingestor) ingestOne(ctx context.Context, link string, sum *IngestSummary) {
	log := in.logger.With("url", link)

	existing, err := in.store.FindByURL(ctx, link)
	if err != nil {
		log.Error("lookup failed", "err", err)
		sum.Failed++
		return
	}
	if existing != nil {
		log.Info("already ingested, skipping", "id", existing.ID)
		sum.Duplicate++
		return
	}

	page, err := in.fetcher.FetchWithOptions(ctx, link, fetch.Options{Timeout: in.cfg.ArticleTimeout})
	if err != nil {
		log.Error("fetch failed", "err", err)
		sum.Failed++
		return
	}

	res := extract.Extract(page.Doc, in.cfg.Profile)
	log.Info("scraped article", "title", res.Title, "length", res.Length())

	if res.Title == "" || res.Length() < in.cfg.MinContentLength {
		if res.Title == "" {
			log.Warn("skipped invalid article", "reason", "missing title")
		}
		if res.Length() < in.cfg.MinContentLength {
			log.Warn("skipped invalid article", "reason", "content too short", "length", res.Length())
		}
		sum.Invalid++
		return
	}

	id, err := in.store.CreateArticle(ctx, &storage.Article{
		Title:           res.Title,
		URL:             link,
		OriginalContent: res.Text,
	})
	if err != nil {
		log.Error("save failed", "err", err)
		sum.Failed++
		return
	}
	sum.Saved++
	log.Info("saved article", "id", id, "title", res.Title)
}

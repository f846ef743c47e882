package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FranksOps/quill/internal/blog"
	"github.com/FranksOps/quill/internal/competitor"
	"github.com/FranksOps/quill/internal/config"
	"github.com/FranksOps/quill/internal/extract"
	"github.com/FranksOps/quill/internal/fetch"
	"github.com/FranksOps/quill/internal/fingerprint"
	"github.com/FranksOps/quill/internal/pipeline"
	"github.com/FranksOps/quill/internal/rewrite"
	"github.com/FranksOps/quill/internal/serp"
	"github.com/FranksOps/quill/internal/storage"
	"github.com/FranksOps/quill/internal/storage/jsonbackend"
	"github.com/FranksOps/quill/internal/storage/postgres"
	"github.com/FranksOps/quill/internal/storage/sqlite"
	"github.com/FranksOps/quill/pkg/proxy"
	"github.com/FranksOps/quill/pkg/ratelimit"
	"github.com/FranksOps/quill/pkg/useragent"
)

// app builds components from the loaded configuration.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	var (
		s   storage.Store
		err error
	)
	switch a.cfg.Storage.Driver {
	case "sqlite":
		s, err = sqlite.New(a.cfg.Storage.DSN)
	case "postgres":
		s, err = postgres.New(ctx, a.cfg.Storage.DSN)
	case "json":
		s, err = jsonbackend.New(a.cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Storage.Driver, err)
	}
	a.logger.Debug("store opened", "driver", a.cfg.Storage.Driver)
	return s, nil
}

// fetcher builds the shared page fetcher. Robots enforcement is left to the
// caller since the blog's own pages are always fetched.
func (a *app) fetcher(robots bool) (*fetch.Fetcher, error) {
	fc := a.cfg.Fetch
	profile, err := fingerprint.ParseProfile(fc.Fingerprint)
	if err != nil {
		return nil, err
	}
	var limiter *ratelimit.Limiter
	if fc.RequestsPerSecond > 0 {
		limiter = ratelimit.NewLimiter(fc.RequestsPerSecond, 0.2)
	}
	proxies := proxy.NewPool(proxy.Config{})
	if err := proxies.Add(fc.Proxies...); err != nil {
		return nil, err
	}
	if fc.ProxyFile != "" {
		if err := proxies.LoadFile(fc.ProxyFile); err != nil {
			return nil, err
		}
	}
	return fetch.New(fetch.Config{
		Timeout:      fc.Timeout,
		MaxRedirects: fc.MaxRedirects,
		UAPool:       useragent.NewPool(fc.UserAgents),
		Fingerprint:  profile,
		Limiter:      limiter,
		Robots:       robots && fc.Robots,
		Proxies:      proxies,
		Logger:       a.logger,
	})
}

func (a *app) siteProfile() extract.Profile {
	p := extract.Site()
	p.MinChunk = a.cfg.Thresholds.MinSiteChunk
	return p
}

func (a *app) externalProfile() extract.Profile {
	p := extract.External()
	p.MinChunk = a.cfg.Thresholds.MinExternalChunk
	p.MaxLength = a.cfg.Thresholds.MaxExternalLength
	return p
}

func (a *app) finder(ctx context.Context) (*competitor.Finder, error) {
	sc := a.cfg.Search
	provider, err := serp.New(ctx, serp.Config{
		Provider:          sc.Provider,
		GoogleAPIKey:      sc.GoogleAPIKey,
		GoogleCX:          sc.GoogleCX,
		SerpAPIKey:        sc.SerpAPIKey,
		TavilyAPIKey:      sc.TavilyAPIKey,
		TavilyBaseURL:     sc.TavilyBaseURL,
		RequestsPerSecond: sc.RequestsPerSecond,
		Logger:            a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("search provider: %w", err)
	}
	return competitor.NewFinder(provider, competitor.FinderConfig{
		SelfDomain: sc.SelfDomain,
		Blocklist:  sc.Blocklist,
		Candidates: sc.Candidates,
		MaxLinks:   sc.MaxLinks,
		MinLinks:   a.cfg.Thresholds.MinLinks,
		Logger:     a.logger,
	}), nil
}

func (a *app) scraper() (*competitor.Scraper, error) {
	f, err := a.fetcher(true)
	if err != nil {
		return nil, err
	}
	return competitor.NewScraper(f, a.externalProfile(), a.cfg.Fetch.Timeout), nil
}

func (a *app) rewriter(ctx context.Context) (*rewrite.Engine, error) {
	model, err := rewrite.NewGemini(ctx, rewrite.GeminiConfig{
		APIKey:  a.cfg.LLM.APIKey,
		Model:   a.cfg.LLM.Model,
		BaseURL: a.cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("rewrite model: %w", err)
	}
	return rewrite.NewEngine(model, a.cfg.LLM.Timeout, a.logger), nil
}

func (a *app) ingestor(store storage.Store) (*blog.Ingestor, error) {
	f, err := a.fetcher(false)
	if err != nil {
		return nil, err
	}
	bc := a.cfg.Blog
	listing := blog.NewListing(f, blog.ListingConfig{
		BaseURL:        bc.BaseURL,
		MaxPages:       bc.MaxPages,
		ListingTimeout: bc.ListingTimeout,
		Logger:         a.logger,
	})
	return blog.NewIngestor(listing, f, store, blog.IngestConfig{
		TargetCount:      bc.TargetCount,
		MinContentLength: a.cfg.Thresholds.MinIngestLength,
		ArticleTimeout:   bc.ArticleTimeout,
		Pause:            bc.Pause,
		Profile:          a.siteProfile(),
		Logger:           a.logger,
	}), nil
}

func (a *app) controller(ctx context.Context, store storage.Store, limit int) (*pipeline.Controller, error) {
	finder, err := a.finder(ctx)
	if err != nil {
		return nil, err
	}
	scraper, err := a.scraper()
	if err != nil {
		return nil, err
	}
	engine, err := a.rewriter(ctx)
	if err != nil {
		return nil, err
	}
	t := a.cfg.Thresholds
	return pipeline.New(store, finder, scraper, engine, pipeline.Config{
		Thresholds: pipeline.Thresholds{
			MinLinks:            t.MinLinks,
			MinCompetitorLength: t.MinCompetitorLength,
			MinRewriteLength:    t.MinRewriteLength,
		},
		SearchRetry:  a.cfg.Retry.Search.Policy(),
		ScrapeRetry:  a.cfg.Retry.Scrape.Policy(),
		RewriteRetry: a.cfg.Retry.Rewrite.Policy(),
		Limit:        limit,
		Logger:       a.logger,
	}), nil
}

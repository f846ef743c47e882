// Package blog walks the blog's paginated listing to find article links and
// ingests the oldest articles into storage.
package blog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/quill/internal/fetch"
	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultBaseURL        = "https://beyondchats.com/blogs"
	DefaultMaxPages       = 30
	DefaultListingTimeout = 8 * time.Second
)

// linkSelector matches article title anchors on a listing page.
const linkSelector = "article.entry-card h2.entry-title a"

// PageFetcher is the part of *fetch.Fetcher the blog package needs.
type PageFetcher interface {
	FetchWithOptions(ctx context.Context, rawURL string, opts fetch.Options) (*fetch.Page, error)
}

// ListingConfig describes the paginated listing.
type ListingConfig struct {
	BaseURL        string
	MaxPages       int
	ListingTimeout time.Duration
	Logger         *slog.Logger
}

// Listing discovers listing pages and the article links on them.
type Listing struct {
	fetcher PageFetcher
	cfg     ListingConfig
	logger  *slog.Logger
}

func NewListing(fetcher PageFetcher, cfg ListingConfig) *Listing {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.ListingTimeout <= 0 {
		cfg.ListingTimeout = DefaultListingTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Listing{fetcher: fetcher, cfg: cfg, logger: cfg.Logger}
}

// PageURL returns the listing URL for page n (1-based).
func (l *Listing) PageURL(n int) string {
	if n <= 1 {
		return l.cfg.BaseURL + "/"
	}
	return fmt.Sprintf("%s/page/%d/", l.cfg.BaseURL, n)
}

// LastPage probes pages 1..MaxPages in order and returns the last page that
// fetched successfully and held at least one article. The scan stops at the
// first failure or empty page; the result is never below 1.
func (l *Listing) LastPage(ctx context.Context) int {
	last := 1
	for page := 1; page <= l.cfg.MaxPages; page++ {
		if ctx.Err() != nil {
			break
		}
		p, err := l.fetcher.FetchWithOptions(ctx, l.PageURL(page), fetch.Options{Timeout: l.cfg.ListingTimeout})
		if err != nil {
			l.logger.Debug("listing probe stopped", "page", page, "err", err)
			break
		}
		count := p.Doc.Find("article").Length()
		if count == 0 {
			break
		}
		last = page
		l.logger.Info("listing page valid", "page", page, "articles", count)
	}
	return last
}

// PageLinks returns the article links on one listing page, deduplicated
// and reversed so the oldest article on the page comes first.
func (l *Listing) PageLinks(ctx context.Context, page int) ([]string, error) {
	pageURL := l.PageURL(page)
	p, err := l.fetcher.FetchWithOptions(ctx, pageURL, fetch.Options{})
	if err != nil {
		return nil, fmt.Errorf("fetch listing page %d: %w", page, err)
	}

	base, err := url.Parse(p.URL)
	if err != nil {
		base, _ = url.Parse(pageURL)
	}

	seen := make(map[string]bool)
	var links []string
	p.Doc.Find(linkSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !isArticleLink(href) {
			return
		}
		link := resolve(base, href)
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	for i, j := 0, len(links)-1; i < j; i, j = i+1, j-1 {
		links[i], links[j] = links[j], links[i]
	}
	return links, nil
}

// OldestLinks walks from the last listing page towards page 1 collecting
// links until n are known, then returns the first n.
func (l *Listing) OldestLinks(ctx context.Context, n int) ([]string, error) {
	last := l.LastPage(ctx)
	l.logger.Info("last listing page found", "page", last)

	seen := make(map[string]bool)
	var collected []string
	for page := last; page > 0 && len(collected) < n; page-- {
		links, err := l.PageLinks(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			if !seen[link] {
				seen[link] = true
				collected = append(collected, link)
			}
		}
		l.logger.Info("collected listing page", "page", page, "links", len(links), "total", len(collected))
	}

	if len(collected) > n {
		collected = collected[:n]
	}
	return collected, nil
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return ref.String()
}

func isArticleLink(link string) bool {
	return strings.Contains(link, "/blogs/") &&
		!strings.Contains(link, "/tag/") &&
		!strings.Contains(link, "/page/")
}

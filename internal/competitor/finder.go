// Package competitor finds and scrapes external articles on the same topic
// as one of ours.
package competitor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/FranksOps/quill/internal/serp"
)

// DefaultBlocklist holds large platforms whose pages make poor rewrite
// references.
var DefaultBlocklist = []string{
	"reddit.com",
	"medium.com",
	"amazon.",
	"quora.com",
	"youtube.com",
	"facebook.com",
	"twitter.com",
	"linkedin.com",
	"weforum.org",
}

const (
	DefaultCandidates = 5
	DefaultMaxLinks   = 2
	DefaultMinLinks   = 2
)

// FinderConfig tunes link filtering.
type FinderConfig struct {
	// SelfDomain excludes links back to our own site.
	SelfDomain string
	// Blocklist entries are matched as substrings of the link host.
	Blocklist []string
	// Candidates is how many results to request from the provider.
	Candidates int
	// MaxLinks caps the returned links.
	MaxLinks int
	// MinLinks is the count below which a shortened query is tried.
	MinLinks int
	Logger   *slog.Logger
}

// Finder turns a title into a short list of usable competitor links.
type Finder struct {
	provider serp.Provider
	cfg      FinderConfig
	logger   *slog.Logger
}

func NewFinder(provider serp.Provider, cfg FinderConfig) *Finder {
	if cfg.Blocklist == nil {
		cfg.Blocklist = DefaultBlocklist
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = DefaultCandidates
	}
	if cfg.MaxLinks <= 0 {
		cfg.MaxLinks = DefaultMaxLinks
	}
	if cfg.MinLinks <= 0 {
		cfg.MinLinks = DefaultMinLinks
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Finder{provider: provider, cfg: cfg, logger: cfg.Logger}
}

// Search queries the provider once and returns at most MaxLinks usable
// links in ranking order. A provider failure is returned as an error so the
// caller can tell it apart from an empty result.
func (f *Finder) Search(ctx context.Context, query string) ([]string, error) {
	results, err := f.provider.Search(ctx, query, f.cfg.Candidates)
	if err != nil {
		return nil, err
	}
	return f.Filter(results), nil
}

// SearchWithVariations searches for title and, when that fails or yields
// fewer than MinLinks links, retries once with a shortened query. An error is
// returned only when every attempted query failed.
func (f *Finder) SearchWithVariations(ctx context.Context, title string) ([]string, error) {
	links, err := f.Search(ctx, title)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		f.logger.Warn("search failed", "query", title, "error", err)
	} else if len(links) >= f.cfg.MinLinks {
		return links, nil
	}

	shorter, ok := ShortenQuery(title)
	if !ok {
		return links, err
	}
	f.logger.Info("trying alternative search query", "query", shorter, "found", len(links))
	more, err2 := f.Search(ctx, shorter)
	if err2 != nil {
		if err != nil {
			return nil, fmt.Errorf("all search queries failed: %w", err2)
		}
		f.logger.Warn("search failed", "query", shorter, "error", err2)
		return links, nil
	}
	return more, nil
}

// Filter drops missing, non-HTTP(S), self-domain and blocklisted links and
// keeps the first MaxLinks survivors.
func (f *Finder) Filter(results []serp.Result) []string {
	links := make([]string, 0, f.cfg.MaxLinks)
	for _, r := range results {
		if len(links) == f.cfg.MaxLinks {
			break
		}
		if f.usable(r.URL) {
			links = append(links, r.URL)
		}
	}
	return links
}

func (f *Finder) usable(link string) bool {
	if link == "" {
		return false
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if self := strings.ToLower(f.cfg.SelfDomain); self != "" && strings.Contains(host, self) {
		return false
	}
	for _, blocked := range f.cfg.Blocklist {
		if blocked = strings.ToLower(strings.TrimSpace(blocked)); blocked != "" && strings.Contains(host, blocked) {
			return false
		}
	}
	return true
}

// ShortenQuery keeps the first three words longer than three characters.
// It reports false when the title has three or fewer such words.
func ShortenQuery(title string) (string, bool) {
	var words []string
	for _, w := range strings.Fields(title) {
		if utf8.RuneCountInString(w) > 3 {
			words = append(words, w)
		}
	}
	if len(words) <= 3 {
		return "", false
	}
	return strings.Join(words[:3], " "), true
}

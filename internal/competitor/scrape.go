package competitor

import (
	"context"
	"time"

	"github.com/FranksOps/quill/internal/extract"
	"github.com/FranksOps/quill/internal/fetch"
)

// PageFetcher is the part of *fetch.Fetcher the scraper needs.
type PageFetcher interface {
	FetchWithOptions(ctx context.Context, rawURL string, opts fetch.Options) (*fetch.Page, error)
}

// DefaultScrapeTimeout bounds a single competitor page fetch.
const DefaultScrapeTimeout = 15 * time.Second

// Scraper fetches a competitor page and extracts its text with the external
// profile.
type Scraper struct {
	fetcher PageFetcher
	profile extract.Profile
	timeout time.Duration
}

func NewScraper(fetcher PageFetcher, profile extract.Profile, timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = DefaultScrapeTimeout
	}
	return &Scraper{fetcher: fetcher, profile: profile, timeout: timeout}
}

// Scrape returns the extracted text of link. Fetch failures are errors; a
// page with no usable text returns "" and a nil error.
func (s *Scraper) Scrape(ctx context.Context, link string) (string, error) {
	page, err := s.fetcher.FetchWithOptions(ctx, link, fetch.Options{Timeout: s.timeout})
	if err != nil {
		return "", err
	}
	return extract.Extract(page.Doc, s.profile).Text, nil
}

// Package serp queries web search APIs for pages related to a query.
package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FranksOps/quill/internal/metrics"
	"github.com/FranksOps/quill/pkg/ratelimit"
)

// Result is one ranked search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider abstracts a search engine API. Implementations return results in
// the provider's ranking order; an empty slice with a nil error means the
// query matched nothing.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

var (
	ErrMissingCredentials = errors.New("search provider credentials are not set")
	ErrUnknownProvider    = errors.New("unknown search provider")
)

// Config selects and configures a Provider.
type Config struct {
	Provider string // google | serpapi | tavily

	GoogleAPIKey string
	GoogleCX     string
	SerpAPIKey   string
	TavilyAPIKey string
	// TavilyBaseURL overrides the Tavily endpoint.
	TavilyBaseURL string

	// RequestsPerSecond paces calls; zero means unlimited.
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// New builds the configured provider wrapped with pacing and metrics.
func New(ctx context.Context, cfg Config) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "", "google":
		p, err = NewGoogle(ctx, cfg.GoogleAPIKey, cfg.GoogleCX)
	case "serpapi":
		p, err = NewSerpAPI(cfg.SerpAPIKey)
	case "tavily":
		p, err = NewTavily(cfg.TavilyAPIKey, cfg.TavilyBaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Paced(p, ratelimit.NewLimiter(cfg.RequestsPerSecond, 0.1), cfg.Logger), nil
}

type paced struct {
	Provider
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// Paced wraps p so every call waits on limiter and is counted in metrics.
func Paced(p Provider, limiter *ratelimit.Limiter, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &paced{Provider: p, limiter: limiter, logger: logger}
}

func (p *paced) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	results, err := p.Provider.Search(ctx, query, limit)
	switch {
	case err != nil:
		metrics.ObserveSearch(p.Name(), "error")
		p.logger.Warn("search failed", "provider", p.Name(), "query", query, "err", err)
	case len(results) == 0:
		metrics.ObserveSearch(p.Name(), "empty")
	default:
		metrics.ObserveSearch(p.Name(), "ok")
	}
	return results, err
}

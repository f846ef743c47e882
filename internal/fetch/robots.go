package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// ErrDisallowed is wrapped by the *Error returned for URLs robots.txt forbids.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// RobotsAuditor fetches and caches robots.txt per origin.
type RobotsAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger
	mu      sync.Mutex
	cache   map[string]*robotstxt.RobotsData
}

func NewRobotsAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether userAgent may fetch targetURL. A robots.txt that
// is missing or unreachable allows everything.
func (r *RobotsAuditor) IsAllowed(ctx context.Context, targetURL, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	data := r.load(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true, nil
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.FindGroup(userAgent).Test(path), nil
}

func (r *RobotsAuditor) load(ctx context.Context, origin string) *robotstxt.RobotsData {
	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.cache[origin]; ok {
		return data
	}

	res, err := r.fetcher.get(ctx, origin+"/robots.txt", Options{})
	if err != nil {
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "origin", origin, "err", err)
		r.cache[origin] = nil
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(res.StatusCode, res.Body)
	if err != nil {
		r.logger.Debug("robots.txt parse failed, defaulting to allow", "origin", origin, "err", err)
		data = nil
	}
	r.cache[origin] = data
	return data
}

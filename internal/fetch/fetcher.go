// Package fetch retrieves HTML pages and hands them back as parsed goquery
// documents. Every failure is reported as a *Error with a Kind.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/FranksOps/quill/internal/fingerprint"
	"github.com/FranksOps/quill/internal/metrics"
	"github.com/FranksOps/quill/pkg/httpclient"
	"github.com/FranksOps/quill/pkg/proxy"
	"github.com/FranksOps/quill/pkg/ratelimit"
	"github.com/FranksOps/quill/pkg/useragent"
	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodyBytes = 5 << 20
)

// Config configures a Fetcher.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	// MaxBodyBytes truncates oversized responses before parsing.
	MaxBodyBytes int64
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	// InsecureSkipVerify disables certificate checks. Only meant for tests.
	InsecureSkipVerify bool
	// Limiter paces every outgoing request when set.
	Limiter *ratelimit.Limiter
	// Robots enables robots.txt enforcement for page fetches.
	Robots bool
	// Proxies rotates requests across egress proxies when non-empty.
	Proxies *proxy.Pool
	Logger *slog.Logger
}

// Options override Config for a single call.
type Options struct {
	Timeout time.Duration
	Header  http.Header
}

// Page is a successfully fetched and parsed HTML document.
type Page struct {
	URL        string // after redirects
	StatusCode int
	Body       []byte
	Doc        *goquery.Document
	Duration   time.Duration
}

// Fetcher performs GET requests through a single shared client so
// connections and cookies are reused across calls.
type Fetcher struct {
	config Config
	client *httpclient.Client
	robots *RobotsAuditor
	logger *slog.Logger
}

// New builds a Fetcher. Zero-valued fields take package defaults.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := fingerprint.Options{InsecureSkipVerify: cfg.InsecureSkipVerify}
	if cfg.Proxies.Len() > 0 {
		opts.Proxy = proxyFromContext
	}
	transport, err := fingerprint.Transport(cfg.Fingerprint, opts)
	if err != nil {
		return nil, fmt.Errorf("setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: true,
		Header: http.Header{
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Accept-Language": {"en-US,en;q=0.9"},
		},
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	f := &Fetcher{config: cfg, client: client, logger: cfg.Logger}
	if cfg.Robots {
		f.robots = NewRobotsAuditor(f, cfg.Logger)
	}
	return f, nil
}

// Fetch retrieves rawURL with the fetcher defaults.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	return f.FetchWithOptions(ctx, rawURL, Options{})
}

// FetchWithOptions retrieves rawURL and parses the body as HTML. Non-2xx
// responses are errors; bot-protection walls come back as KindChallenge.
func (f *Fetcher) FetchWithOptions(ctx context.Context, rawURL string, opts Options) (*Page, error) {
	if f.robots != nil {
		allowed, err := f.robots.IsAllowed(ctx, rawURL, f.config.UAPool.Next())
		if err != nil {
			return nil, &Error{URL: rawURL, Kind: KindNetwork, Err: err}
		}
		if !allowed {
			return nil, &Error{URL: rawURL, Kind: KindStatus, StatusCode: http.StatusForbidden, Err: ErrDisallowed}
		}
	}

	res, err := f.get(ctx, rawURL, opts)
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		if src, ok := detectChallenge(response{StatusCode: res.StatusCode, Header: res.header, Body: res.Body}); ok {
			f.logger.Debug("bot challenge detected", "url", rawURL, "source", src, "status", res.StatusCode)
			return nil, &Error{URL: rawURL, Kind: KindChallenge, StatusCode: res.StatusCode, Source: src}
		}
		return nil, &Error{URL: rawURL, Kind: KindStatus, StatusCode: res.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, &Error{URL: rawURL, Kind: KindParse, StatusCode: res.StatusCode, Err: err}
	}

	return &Page{
		URL:        res.URL,
		StatusCode: res.StatusCode,
		Body:       res.Body,
		Doc:        doc,
		Duration:   res.Duration,
	}, nil
}

type rawResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	header     http.Header
}

// get performs the request without judging the status code. Only transport
// failures are returned as errors.
func (f *Fetcher) get(ctx context.Context, rawURL string, opts Options) (*rawResponse, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &Error{URL: rawURL, Kind: KindNetwork, Err: fmt.Errorf("invalid url %q", rawURL)}
	}

	if err := f.config.Limiter.Wait(ctx); err != nil {
		return nil, classify(rawURL, err)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	via := f.config.Proxies.Next()
	if via != nil {
		ctx = context.WithValue(ctx, proxyKey{}, via)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Kind: KindNetwork, Err: err}
	}
	for key, vals := range opts.Header {
		for _, v := range vals {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", f.config.UAPool.Next())
	}

	start := time.Now()
	resp, err := f.client.Do(ctx, req)
	if rerr := f.config.Proxies.Report(via, err == nil); rerr != nil {
		f.logger.Debug("proxy report failed", "err", rerr)
	}
	if err != nil {
		metrics.ObserveFetch(u.Host, "error", time.Since(start))
		return nil, classify(rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	elapsed := time.Since(start)
	metrics.ObserveFetch(u.Host, strconv.Itoa(resp.StatusCode), elapsed)
	if err != nil {
		return nil, classify(rawURL, fmt.Errorf("read body: %w", err))
	}

	f.logger.Debug("fetched", "url", rawURL, "status", resp.StatusCode, "bytes", len(body), "duration", elapsed)

	return &rawResponse{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
		Duration:   elapsed,
		header:     resp.Header,
	}, nil
}

type proxyKey struct{}

// proxyFromContext routes a request through the proxy chosen in get.
func proxyFromContext(req *http.Request) (*url.URL, error) {
	if u, ok := req.Context().Value(proxyKey{}).(*url.URL); ok {
		return u, nil
	}
	return http.ProxyFromEnvironment(req)
}

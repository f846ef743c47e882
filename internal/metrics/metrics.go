package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_articles_total",
			Help: "Articles processed by the update pipeline, by outcome",
		},
		[]string{"outcome"},
	)

	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_fetch_requests_total",
			Help: "Total number of page fetches executed",
		},
		[]string{"host", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quill_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_search_requests_total",
			Help: "Web search calls, by provider and result",
		},
		[]string{"provider", "result"},
	)

	RewriteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_rewrite_requests_total",
			Help: "Language model rewrite calls, by result",
		},
		[]string{"result"},
	)
)

// ObserveFetch records one page fetch. status is the HTTP code or "error".
func ObserveFetch(host, status string, elapsed time.Duration) {
	FetchRequestsTotal.WithLabelValues(host, status).Inc()
	FetchDuration.WithLabelValues(host).Observe(elapsed.Seconds())
}

// ObserveSearch records one search call; result is "ok", "empty" or "error".
func ObserveSearch(provider, result string) {
	SearchRequestsTotal.WithLabelValues(provider, result).Inc()
}

func ObserveRewrite(result string) {
	RewriteRequestsTotal.WithLabelValues(result).Inc()
}

func ObserveArticle(outcome string) {
	ArticlesTotal.WithLabelValues(outcome).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// Start begins listening on the specified port and exposes /metrics.
// Port 0 picks a free port; see Addr.
func Start(port int, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s := &Server{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:     ln,
		logger: logger,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	logger.Info("metrics server listening", "addr", ln.Addr().String())
	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

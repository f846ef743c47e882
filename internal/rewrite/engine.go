// Package rewrite produces a new version of an article from its original
// text and two competitor articles using a generative model.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/quill/internal/metrics"
)

var (
	// ErrEmptyResponse means the model answered without any text.
	ErrEmptyResponse = errors.New("model returned no text")
	// ErrNotEnoughCompetitors means fewer than two competitor texts were given.
	ErrNotEnoughCompetitors = errors.New("two competitor texts are required")
	ErrMissingAPIKey        = errors.New("model api key is not set")
)

// Model generates text for a prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Request is one article to rewrite.
type Request struct {
	Original    string
	Competitors []string
}

const DefaultTimeout = 30 * time.Second

// Engine builds prompts and calls the model with a bounded timeout.
type Engine struct {
	model   Model
	timeout time.Duration
	logger  *slog.Logger
}

func NewEngine(model Model, timeout time.Duration, logger *slog.Logger) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{model: model, timeout: timeout, logger: logger}
}

// Generate returns the trimmed rewrite. A blank answer is ErrEmptyResponse.
func (e *Engine) Generate(ctx context.Context, req Request) (string, error) {
	if len(req.Competitors) < 2 {
		return "", ErrNotEnoughCompetitors
	}
	prompt := BuildPrompt(req.Original, [2]string{req.Competitors[0], req.Competitors[1]})

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.model.Generate(ctx, prompt)
	if err != nil {
		metrics.ObserveRewrite("error")
		return "", fmt.Errorf("rewrite: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.ObserveRewrite("empty")
		return "", ErrEmptyResponse
	}
	metrics.ObserveRewrite("ok")
	return text, nil
}

// Rewrite is the best-effort form of Generate: any failure is logged and
// reported as "".
func (e *Engine) Rewrite(ctx context.Context, req Request) string {
	text, err := e.Generate(ctx, req)
	if err != nil {
		e.logger.Error("rewrite failed", "err", err)
		return ""
	}
	return text
}

package serp

import (
	"context"
	"fmt"

	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// maxGoogleResults is the Custom Search JSON API page size limit.
const maxGoogleResults = 10

// Google queries the Custom Search JSON API.
type Google struct {
	svc *customsearch.Service
	cx  string
}

func NewGoogle(ctx context.Context, apiKey, cx string) (*Google, error) {
	if apiKey == "" || cx == "" {
		return nil, fmt.Errorf("google: %w", ErrMissingCredentials)
	}
	svc, err := customsearch.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create custom search service: %w", err)
	}
	return &Google{svc: svc, cx: cx}, nil
}

func (g *Google) Name() string { return "google" }

func (g *Google) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 || limit > maxGoogleResults {
		limit = maxGoogleResults
	}
	res, err := g.svc.Cse.List().Cx(g.cx).Q(query).Num(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google search: %w", err)
	}
	return fromGoogleItems(res.Items), nil
}

func fromGoogleItems(items []*customsearch.Result) []Result {
	results := make([]Result, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		results = append(results, Result{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return results
}

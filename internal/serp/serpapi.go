package serp

import (
	"context"
	"fmt"
	"strconv"

	g "github.com/serpapi/google-search-results-golang"
)

// SerpAPI runs Google searches through serpapi.com.
type SerpAPI struct {
	apiKey string
	// fetch runs one query; replaced in tests.
	fetch func(parameter map[string]string, apiKey string) (map[string]interface{}, error)
}

func NewSerpAPI(apiKey string) (*SerpAPI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("serpapi: %w", ErrMissingCredentials)
	}
	return &SerpAPI{apiKey: apiKey, fetch: googleSearchJSON}, nil
}

func googleSearchJSON(parameter map[string]string, apiKey string) (map[string]interface{}, error) {
	search := g.NewGoogleSearch(parameter, apiKey)
	return search.GetJSON()
}

func (s *SerpAPI) Name() string { return "serpapi" }

// Search blocks until the client returns; the library takes no context, so
// cancellation abandons the in-flight call rather than aborting it.
func (s *SerpAPI) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	parameter := map[string]string{
		"engine":        "google",
		"q":             query,
		"google_domain": "google.com",
		"gl":            "us",
		"hl":            "en",
	}
	if limit > 0 {
		parameter["num"] = strconv.Itoa(limit)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type outcome struct {
		data map[string]interface{}
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		data, err := s.fetch(parameter, s.apiKey)
		done <- outcome{data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("serpapi search: %w", out.err)
		}
		results := organicResults(out.data)
		if limit > 0 && len(results) > limit {
			results = results[:limit]
		}
		return results, nil
	}
}

// organicResults maps the organic_results node of a SerpApi response.
func organicResults(data map[string]interface{}) []Result {
	organic, ok := data["organic_results"].([]interface{})
	if !ok {
		return []Result{}
	}

	results := make([]Result, 0, len(organic))
	for _, item := range organic {
		res, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		title, _ := res["title"].(string)
		link, _ := res["link"].(string)
		snippet, _ := res["snippet"].(string)
		results = append(results, Result{Title: title, URL: link, Snippet: snippet})
	}
	return results
}

package serp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/FranksOps/quill/pkg/httpclient"
)

const tavilyURL = "https://api.tavily.com/search"

// Tavily queries the Tavily search API.
type Tavily struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

func NewTavily(apiKey, baseURL string) (*Tavily, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tavily: %w", ErrMissingCredentials)
	}
	if baseURL == "" {
		baseURL = tavilyURL
	}
	client, err := httpclient.New(httpclient.Config{Timeout: 30 * time.Second})
	if err != nil {
		return nil, err
	}
	return &Tavily{apiKey: apiKey, baseURL: baseURL, client: client}, nil
}

func (t *Tavily) Name() string { return "tavily" }

type tavilyRequest struct {
	Query       string `json:"query"`
	APIKey      string `json:"api_key"`
	SearchDepth string `json:"search_depth,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	body, err := json.Marshal(tavilyRequest{
		Query:       query,
		APIKey:      t.apiKey,
		SearchDepth: "basic",
		MaxResults:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily api error: %d %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]Result, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return results, nil
}

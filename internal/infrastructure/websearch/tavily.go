package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
)

const ProviderTavily = "tavily"

// TavilyClient queries the Tavily search API. It is the primary web
// provider and requires an API key.
type TavilyClient struct {
	baseURL     string
	apiKey      string
	searchDepth string
	httpClient  *http.Client
}

func NewTavilyClient(baseURL, apiKey, searchDepth string) *TavilyClient {
	if searchDepth == "" {
		searchDepth = "basic"
	}
	return &TavilyClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		searchDepth: searchDepth,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *TavilyClient) Name() string { return ProviderTavily }

func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("tavily api key missing")
	}

	reqBody, err := json.Marshal(map[string]any{
		"api_key":      c.apiKey,
		"query":        query,
		"max_results":  maxResults,
		"search_depth": c.searchDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &statusError{
			Provider:   ProviderTavily,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var searchResp struct {
		Results []struct {
			URL     string   `json:"url"`
			Title   string   `json:"title"`
			Content string   `json:"content"`
			Score   *float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	fetched := time.Now().Format("2006-01-02")
	out := make([]domain.WebResult, 0, len(searchResp.Results))
	for _, r := range searchResp.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, domain.WebResult{
			URL:         r.URL,
			Title:       r.Title,
			Snippet:     r.Content,
			Score:       r.Score,
			FetchedDate: fetched,
			Provider:    ProviderTavily,
		})
		if len(out) >= maxResults {
			break
		}
	}
	return out, nil
}

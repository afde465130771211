package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
)

const ProviderDuckDuckGo = "duckduckgo"

// DuckDuckGoClient is the keyless fallback provider. The instant-answer
// API returns related topics rather than ranked hits, so results carry
// no score.
type DuckDuckGoClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewDuckDuckGoClient(baseURL string) *DuckDuckGoClient {
	return &DuckDuckGoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *DuckDuckGoClient) Name() string { return ProviderDuckDuckGo }

func (c *DuckDuckGoClient) Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create duckduckgo request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &statusError{
			Provider:   ProviderDuckDuckGo,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var searchResp struct {
		Heading       string `json:"Heading"`
		AbstractURL   string `json:"AbstractURL"`
		AbstractText  string `json:"AbstractText"`
		RelatedTopics []struct {
			FirstURL string `json:"FirstURL"`
			Text     string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode duckduckgo response: %w", err)
	}

	fetched := time.Now().Format("2006-01-02")
	out := make([]domain.WebResult, 0, maxResults)
	if searchResp.AbstractURL != "" {
		out = append(out, domain.WebResult{
			URL:         searchResp.AbstractURL,
			Title:       searchResp.Heading,
			Snippet:     searchResp.AbstractText,
			FetchedDate: fetched,
			Provider:    ProviderDuckDuckGo,
		})
	}
	for _, topic := range searchResp.RelatedTopics {
		if len(out) >= maxResults {
			break
		}
		if topic.FirstURL == "" {
			continue
		}
		out = append(out, domain.WebResult{
			URL:         topic.FirstURL,
			Title:       topicTitle(topic.Text),
			Snippet:     topic.Text,
			FetchedDate: fetched,
			Provider:    ProviderDuckDuckGo,
		})
	}
	return out, nil
}

func topicTitle(text string) string {
	if idx := strings.Index(text, " - "); idx > 0 {
		return text[:idx]
	}
	const maxTitle = 60
	runes := []rune(text)
	if len(runes) > maxTitle {
		return string(runes[:maxTitle])
	}
	return text
}

package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
)

type stubProvider struct {
	name    string
	results []domain.WebResult
	err     error
	calls   int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(context.Context, string, int) ([]domain.WebResult, error) {
	s.calls++
	return s.results, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestChainReturnsFirstProviderResults(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []domain.WebResult{{URL: "https://a", Provider: "primary"}}}
	secondary := &stubProvider{name: "secondary"}

	chain := NewChain(discardLogger(), nil, primary, secondary)
	results, err := chain.Search(context.Background(), "창업 지원", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].URL != "https://a" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if secondary.calls != 0 {
		t.Fatal("secondary provider must not be consulted on primary success")
	}
}

func TestChainFallsBackOnProviderError(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("boom")}
	secondary := &stubProvider{name: "secondary", results: []domain.WebResult{{URL: "https://b"}}}

	var attempts []string
	chain := NewChain(discardLogger(), nil, primary, secondary)
	chain.SetObserver(func(provider, result string) {
		attempts = append(attempts, provider+":"+result)
	})

	results, err := chain.Search(context.Background(), "질문", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].URL != "https://b" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if len(attempts) != 2 || attempts[0] != "primary:error" || attempts[1] != "secondary:ok" {
		t.Fatalf("unexpected attempt sequence: %v", attempts)
	}
}

func TestChainDegradesToEmptyWhenAllFail(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("down")}
	secondary := &stubProvider{name: "secondary", err: errors.New("also down")}

	chain := NewChain(discardLogger(), nil, primary, secondary)
	results, err := chain.Search(context.Background(), "질문", 5)
	if err != nil {
		t.Fatalf("chain must not surface provider errors, got %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty degradation, got %+v", results)
	}
}

func TestChainSkipsEmptyProvider(t *testing.T) {
	primary := &stubProvider{name: "primary"}
	secondary := &stubProvider{name: "secondary", results: []domain.WebResult{{URL: "https://c"}}}

	chain := NewChain(discardLogger(), nil, primary, secondary)
	results, err := chain.Search(context.Background(), "질문", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].URL != "https://c" {
		t.Fatalf("expected fallback past empty provider, got %+v", results)
	}
}

func TestTavilySearchBuildsRequestAndParsesResults(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"results":[
			{"url":"https://gov.kr/notice","title":"공고","content":"지원 사업 공고","score":0.88},
			{"url":"","title":"empty"},
			{"url":"https://gov.kr/form","title":"신청서","content":"양식 다운로드"}
		]}`))
	}))
	defer server.Close()

	client := NewTavilyClient(server.URL, "key-123", "basic")
	results, err := client.Search(context.Background(), "창업 지원 정부 지원 사업 공고", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if captured["api_key"] != "key-123" || captured["search_depth"] != "basic" {
		t.Fatalf("unexpected request body: %v", captured)
	}
	if captured["max_results"].(float64) != 5 {
		t.Fatalf("unexpected max_results: %v", captured["max_results"])
	}

	if len(results) != 2 {
		t.Fatalf("expected url-less result dropped, got %d results", len(results))
	}
	if results[0].Provider != ProviderTavily || results[0].Score == nil || *results[0].Score != 0.88 {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Score != nil {
		t.Fatalf("expected nil score when absent, got %v", *results[1].Score)
	}
}

func TestTavilySearchRequiresAPIKey(t *testing.T) {
	client := NewTavilyClient("http://localhost:1", "", "basic")
	if _, err := client.Search(context.Background(), "질문", 3); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestDuckDuckGoSearchParsesTopics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("expected json format param, got %q", got)
		}
		_, _ = w.Write([]byte(`{
			"Heading":"창업 지원",
			"AbstractURL":"https://example.org/startup",
			"AbstractText":"창업 지원 개요",
			"RelatedTopics":[
				{"FirstURL":"https://example.org/a","Text":"지원 대상 - 중소기업 안내"},
				{"FirstURL":"","Text":"skip"},
				{"FirstURL":"https://example.org/b","Text":"신청 절차"}
			]
		}`))
	}))
	defer server.Close()

	client := NewDuckDuckGoClient(server.URL)
	results, err := client.Search(context.Background(), "창업 지원", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected maxResults cap, got %d", len(results))
	}
	if results[0].URL != "https://example.org/startup" || results[0].Title != "창업 지원" {
		t.Fatalf("unexpected abstract result: %+v", results[0])
	}
	if results[1].Title != "지원 대상" {
		t.Fatalf("expected title cut at separator, got %q", results[1].Title)
	}
	for _, r := range results {
		if r.Score != nil {
			t.Fatalf("duckduckgo results must carry no score: %+v", r)
		}
		if r.Provider != ProviderDuckDuckGo {
			t.Fatalf("unexpected provider tag: %+v", r)
		}
	}
}

func TestStatusErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewTavilyClient(server.URL, "key", "basic")
	_, err := client.Search(context.Background(), "질문", 3)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	class := classifyWebError(err)
	if !class.Retryable {
		t.Fatalf("expected 429 retryable, got %+v", class)
	}
}

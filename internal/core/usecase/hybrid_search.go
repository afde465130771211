package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
	"github.com/jmkang/policy-qa-agent/internal/core/ports"
)

// Sentinel identifiers for synthetic web-derived search results. Real
// catalog rows use positive serial ids, so negative ids can never
// collide downstream.
const webResultIDBase int64 = -1000

// defaultWebScore stands in when a provider reports no relevance.
const defaultWebScore = 0.5

type SearchConfig struct {
	ScoreThreshold float64
	MinLocalHits   int
	WebQuerySuffix string
}

func (c SearchConfig) withDefaults() SearchConfig {
	if c.ScoreThreshold <= 0 {
		c.ScoreThreshold = 0.7
	}
	if c.MinLocalHits <= 0 {
		c.MinLocalHits = 3
	}
	if c.WebQuerySuffix == "" {
		c.WebQuerySuffix = "정부 지원 사업 공고"
	}
	return c
}

// PolicySearchService blends vector ranking, relational filtering and
// a web fallback into one ranked, deduplicated result set.
type PolicySearchService struct {
	embedder      ports.Embedder
	vectors       ports.VectorIndex
	policies      ports.PolicyStore
	web           ports.WebSearcher
	logger        *slog.Logger
	cfg           SearchConfig
	onWebFallback func()
}

func NewPolicySearchService(
	embedder ports.Embedder,
	vectors ports.VectorIndex,
	policies ports.PolicyStore,
	web ports.WebSearcher,
	logger *slog.Logger,
	cfg SearchConfig,
) *PolicySearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicySearchService{
		embedder: embedder,
		vectors:  vectors,
		policies: policies,
		web:      web,
		logger:   logger,
		cfg:      cfg.withDefaults(),
	}
}

// SetWebFallbackObserver registers a callback fired when the low-result
// web fallback engages.
func (s *PolicySearchService) SetWebFallbackObserver(observe func()) {
	s.onWebFallback = observe
}

func (s *PolicySearchService) GetByID(ctx context.Context, id int64) (*domain.Policy, error) {
	return s.policies.GetByID(ctx, id)
}

// Search without a query is a pure relational listing ordered by
// recency, with an exact filtered count. With a query it runs the
// vector pipeline: oversampled candidates, dedup-by-max per policy,
// relational hydration, score-descending order, then the low-result
// web fallback.
func (s *PolicySearchService) Search(ctx context.Context, query string, filter domain.PolicyFilter, limit, offset int) (domain.SearchResultSet, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	if query == "" {
		return s.relationalSearch(ctx, filter, limit, offset)
	}
	return s.vectorSearch(ctx, query, filter, limit, offset)
}

func (s *PolicySearchService) relationalSearch(ctx context.Context, filter domain.PolicyFilter, limit, offset int) (domain.SearchResultSet, error) {
	policies, err := s.policies.Search(ctx, filter, limit, offset)
	if err != nil {
		return domain.SearchResultSet{}, err
	}
	total, err := s.policies.Count(ctx, filter)
	if err != nil {
		return domain.SearchResultSet{}, err
	}

	hits := make([]domain.PolicyHit, 0, len(policies))
	for _, policy := range policies {
		hits = append(hits, domain.PolicyHit{Policy: policy})
	}
	return domain.SearchResultSet{Hits: hits, Total: total}, nil
}

func (s *PolicySearchService) vectorSearch(ctx context.Context, query string, filter domain.PolicyFilter, limit, offset int) (domain.SearchResultSet, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return domain.SearchResultSet{}, domain.WrapError(domain.ErrRetrieval, "embed search query", err)
	}

	// Oversample so dedup still fills the page.
	vectorHits, err := s.vectors.Search(ctx, vector, limit*2, s.cfg.ScoreThreshold, domain.VectorFilter{
		Region:   filter.Region,
		Category: filter.Category,
	})
	if err != nil {
		return domain.SearchResultSet{}, domain.WrapError(domain.ErrRetrieval, "vector search", err)
	}

	// Dedup-by-max: one entry per policy, best chunk score wins.
	bestScores := make(map[int64]float64, len(vectorHits))
	for _, hit := range vectorHits {
		if hit.PolicyID <= 0 {
			continue
		}
		if current, ok := bestScores[hit.PolicyID]; !ok || hit.Score > current {
			bestScores[hit.PolicyID] = hit.Score
		}
	}

	hits := make([]domain.PolicyHit, 0, limit)
	if len(bestScores) > 0 {
		ids := make([]int64, 0, len(bestScores))
		for id := range bestScores {
			ids = append(ids, id)
		}
		policies, err := s.policies.ListByIDs(ctx, ids)
		if err != nil {
			return domain.SearchResultSet{}, err
		}

		for _, policy := range policies {
			score := bestScores[policy.ID]
			hits = append(hits, domain.PolicyHit{Policy: policy, Score: &score})
		}
		sort.SliceStable(hits, func(i, j int) bool {
			return *hits[i].Score > *hits[j].Score
		})

		if offset >= len(hits) {
			hits = hits[:0]
		} else {
			hits = hits[offset:]
		}
		if len(hits) > limit {
			hits = hits[:limit]
		}
	}

	// A full page never goes to the web, even when it holds fewer
	// than MinLocalHits entries: there is no room for web results.
	if len(hits) < s.cfg.MinLocalHits && len(hits) < limit {
		hits = s.appendWebFallback(ctx, query, hits, limit)
	}

	// After fallback the total is the combined count actually
	// returned, not a separate estimate.
	return domain.SearchResultSet{Hits: hits, Total: len(hits)}, nil
}

func (s *PolicySearchService) appendWebFallback(ctx context.Context, query string, hits []domain.PolicyHit, limit int) []domain.PolicyHit {
	maxResults := limit - len(hits)
	if maxResults <= 0 {
		return hits
	}

	results, err := s.web.Search(ctx, query+" "+s.cfg.WebQuerySuffix, maxResults)
	if err != nil {
		s.logger.Warn("search_web_fallback_failed", "query", query, "error", err)
		return hits
	}
	if len(results) == 0 {
		return hits
	}

	if s.onWebFallback != nil {
		s.onWebFallback()
	}
	s.logger.Info("search_web_fallback", "query", query, "local_hits", len(hits), "web_results", len(results))

	for idx, result := range results {
		if len(hits) >= limit {
			break
		}
		hits = append(hits, webResultHit(idx, result))
	}
	return hits
}

// webResultHit shapes a live web hit as a synthetic catalog row with a
// sentinel negative id.
func webResultHit(idx int, result domain.WebResult) domain.PolicyHit {
	score := defaultWebScore
	if result.Score != nil {
		score = *result.Score
	}
	today := time.Now().Format("2006-01-02")

	title := result.Title
	if title == "" {
		title = "제목 없음"
	}

	return domain.PolicyHit{
		Policy: domain.Policy{
			ID:                  webResultIDBase - int64(idx),
			ProgramID:           -1,
			Region:              "웹 검색",
			Category:            "웹 검색 결과",
			ProgramName:         title,
			ProgramOverview:     result.Snippet,
			SupportDescription:  "출처: " + result.URL,
			SupportScale:        "웹 검색",
			SupervisingMinistry: "웹 검색",
			ApplyTarget:         "웹 검색 결과 - 자세한 내용은 출처 링크를 확인하세요",
			AnnouncementDate:    today,
			ApplicationMethod:   []string{"자세한 내용은 다음 링크를 참고하세요: " + result.URL},
			ContactAgency:       []string{result.URL},
			ContactNumber:       []string{},
			RequiredDocuments:   []string{},
			CollectedDate:       today,
		},
		Score: &score,
	}
}

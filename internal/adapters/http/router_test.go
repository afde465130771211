package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmkang/policy-qa-agent/internal/config"
	"github.com/jmkang/policy-qa-agent/internal/core/domain"
	"github.com/jmkang/policy-qa-agent/internal/observability/metrics"
)

type stubQAService struct {
	result      domain.QAResult
	err         error
	lastSession string
	lastPolicy  int64
	lastQuery   string
}

func (s *stubQAService) Ask(_ context.Context, sessionID string, policyID int64, question string) (domain.QAResult, error) {
	s.lastSession = sessionID
	s.lastPolicy = policyID
	s.lastQuery = question
	if s.err != nil {
		return domain.QAResult{}, s.err
	}
	out := s.result
	if out.SessionID == "" {
		out.SessionID = sessionID
	}
	return out, nil
}

type stubSearchService struct {
	result     domain.SearchResultSet
	policy     *domain.Policy
	err        error
	lastQuery  string
	lastFilter domain.PolicyFilter
	lastLimit  int
	lastOffset int
}

func (s *stubSearchService) Search(_ context.Context, query string, filter domain.PolicyFilter, limit, offset int) (domain.SearchResultSet, error) {
	s.lastQuery = query
	s.lastFilter = filter
	s.lastLimit = limit
	s.lastOffset = offset
	if s.err != nil {
		return domain.SearchResultSet{}, s.err
	}
	return s.result, nil
}

func (s *stubSearchService) GetByID(_ context.Context, id int64) (*domain.Policy, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.policy == nil || s.policy.ID != id {
		return nil, domain.WrapError(domain.ErrPolicyNotFound, "get policy", errors.New("no rows"))
	}
	return s.policy, nil
}

type stubEligibilityService struct {
	check       *domain.EligibilityCheck
	err         error
	lastPolicy  int64
	lastSession string
	lastAnswer  string
}

func (s *stubEligibilityService) Start(_ context.Context, policyID int64) (*domain.EligibilityCheck, error) {
	s.lastPolicy = policyID
	return s.check, s.err
}

func (s *stubEligibilityService) Answer(_ context.Context, sessionID, answer string) (*domain.EligibilityCheck, error) {
	s.lastSession = sessionID
	s.lastAnswer = answer
	return s.check, s.err
}

func (s *stubEligibilityService) Result(_ context.Context, sessionID string) (*domain.EligibilityCheck, error) {
	s.lastSession = sessionID
	return s.check, s.err
}

type stubSessionStore struct {
	resetFound bool
	resetErr   error
	lastReset  string
}

func (s *stubSessionStore) EnsureSession(context.Context, string, int64) error { return nil }

func (s *stubSessionStore) AppendMessage(context.Context, domain.ChatMessage) error { return nil }

func (s *stubSessionStore) ListRecentMessages(context.Context, string, int) ([]domain.ChatMessage, error) {
	return nil, nil
}

func (s *stubSessionStore) ResetSession(_ context.Context, sessionID string) (bool, error) {
	s.lastReset = sessionID
	return s.resetFound, s.resetErr
}

type stubWebSourceStore struct {
	sources     []domain.WebSource
	source      *domain.WebSource
	err         error
	lastSession string
	lastPolicy  int64
	lastLimit   int
}

func (s *stubWebSourceStore) SaveWebSources(context.Context, string, int64, string, []domain.WebResult) error {
	return nil
}

func (s *stubWebSourceStore) GetWebSource(_ context.Context, id int64) (*domain.WebSource, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.source == nil || s.source.ID != id {
		return nil, domain.WrapError(domain.ErrWebSourceNotFound, "get web source", errors.New("no rows"))
	}
	return s.source, nil
}

func (s *stubWebSourceStore) ListWebSources(_ context.Context, sessionID string, policyID int64, limit int) ([]domain.WebSource, error) {
	s.lastSession = sessionID
	s.lastPolicy = policyID
	s.lastLimit = limit
	return s.sources, s.err
}

type testDeps struct {
	qa          *stubQAService
	search      *stubSearchService
	eligibility *stubEligibilityService
	sessions    *stubSessionStore
	webSources  *stubWebSourceStore
}

func newTestHandler(cfg config.Config, qa *stubQAService, search *stubSearchService) http.Handler {
	return newHandlerWithDeps(cfg, testDeps{qa: qa, search: search})
}

func newHandlerWithDeps(cfg config.Config, deps testDeps) http.Handler {
	if deps.qa == nil {
		deps.qa = &stubQAService{}
	}
	if deps.search == nil {
		deps.search = &stubSearchService{}
	}
	if deps.eligibility == nil {
		deps.eligibility = &stubEligibilityService{}
	}
	if deps.sessions == nil {
		deps.sessions = &stubSessionStore{}
	}
	if deps.webSources == nil {
		deps.webSources = &stubWebSourceStore{}
	}
	router := NewRouter(deps.qa, deps.search, deps.eligibility, deps.sessions, deps.webSources,
		metrics.NewHTTPServerMetrics("api-test"), slog.New(slog.DiscardHandler), cfg)
	return router.Handler()
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected request id header on every response")
	}
}

func TestChatQAReturnsResultEnvelope(t *testing.T) {
	score := 0.91
	qa := &stubQAService{result: domain.QAResult{
		SessionID: "s-1",
		Answer:    "신청은 온라인으로 접수합니다.",
		Evidence: []domain.EvidenceItem{
			{Source: "정책 문서 (섹션: support)", Content: "사업화 자금 지원", Score: &score},
		},
	}}
	handler := newTestHandler(config.Config{}, qa, nil)

	body := strings.NewReader(`{"session_id":"s-1","policy_id":7,"question":"신청 방법 알려주세요"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/qa", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if qa.lastSession != "s-1" || qa.lastPolicy != 7 || qa.lastQuery != "신청 방법 알려주세요" {
		t.Fatalf("request not forwarded: session=%q policy=%d query=%q", qa.lastSession, qa.lastPolicy, qa.lastQuery)
	}

	var got domain.QAResult
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Answer != qa.result.Answer || len(got.Evidence) != 1 {
		t.Fatalf("unexpected envelope: %+v", got)
	}
}

func TestChatQAInvalidInputMapsTo400(t *testing.T) {
	qa := &stubQAService{err: domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is empty"))}
	handler := newTestHandler(config.Config{}, qa, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/qa", strings.NewReader(`{"session_id":"s-1","question":""}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatQARejectsMalformedJSON(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/qa", strings.NewReader("{not json"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatQAMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/chat/qa", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestSearchForwardsQueryParams(t *testing.T) {
	search := &stubSearchService{result: domain.SearchResultSet{
		Hits:  []domain.PolicyHit{{Policy: domain.Policy{ID: 1, ProgramName: "창업 지원"}}},
		Total: 12,
	}}
	handler := newTestHandler(config.Config{}, nil, search)

	req := httptest.NewRequest(http.MethodGet, "/v1/policies/search?query=창업&region=서울&category=창업&limit=5&offset=10", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if search.lastQuery != "창업" || search.lastFilter.Region != "서울" || search.lastFilter.Category != "창업" {
		t.Fatalf("params not forwarded: query=%q filter=%+v", search.lastQuery, search.lastFilter)
	}
	if search.lastLimit != 5 || search.lastOffset != 10 {
		t.Fatalf("pagination not forwarded: limit=%d offset=%d", search.lastLimit, search.lastOffset)
	}

	var got domain.SearchResultSet
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Total != 12 || len(got.Hits) != 1 {
		t.Fatalf("unexpected result set: %+v", got)
	}
}

func TestSearchRejectsNonNumericLimit(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/policies/search?limit=ten", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetPolicyByID(t *testing.T) {
	search := &stubSearchService{policy: &domain.Policy{ID: 7, ProgramName: "창업 도약 패키지"}}
	handler := newTestHandler(config.Config{}, nil, search)

	req := httptest.NewRequest(http.MethodGet, "/v1/policies/7", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var got domain.Policy
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != 7 || got.ProgramName != "창업 도약 패키지" {
		t.Fatalf("unexpected policy: %+v", got)
	}
}

func TestGetPolicyByIDNotFound(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, &stubSearchService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/policies/404", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetPolicyByIDRejectsNonNumericID(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/policies/abc", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatQAGeneratesSessionIDWhenOmitted(t *testing.T) {
	qa := &stubQAService{result: domain.QAResult{Answer: "신청은 온라인으로 접수합니다."}}
	handler := newTestHandler(config.Config{}, qa, nil)

	body := strings.NewReader(`{"policy_id":7,"question":"신청 방법 알려주세요"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/qa", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if qa.lastSession == "" {
		t.Fatal("expected a server-generated session id")
	}

	var got domain.QAResult
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.SessionID != qa.lastSession {
		t.Fatalf("generated session id must round-trip: sent %q, returned %q", qa.lastSession, got.SessionID)
	}
}

func TestEligibilityStartReturnsFirstQuestion(t *testing.T) {
	eligibility := &stubEligibilityService{check: &domain.EligibilityCheck{
		SessionID: "elig-1",
		PolicyID:  7,
		Question:  "현재 예비창업자이신가요?",
		Conditions: []domain.EligibilityCondition{
			{Name: "창업 상태", Type: "business_status", Value: "예비창업자", Status: domain.ConditionUnknown},
		},
	}}
	handler := newHandlerWithDeps(config.Config{}, testDeps{eligibility: eligibility})

	req := httptest.NewRequest(http.MethodPost, "/v1/eligibility/start", strings.NewReader(`{"policy_id":7}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if eligibility.lastPolicy != 7 {
		t.Fatalf("policy id not forwarded: %d", eligibility.lastPolicy)
	}

	var got eligibilityEnvelope
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.SessionID != "elig-1" || got.Question != "현재 예비창업자이신가요?" {
		t.Fatalf("unexpected envelope: %+v", got)
	}
	if got.Progress.Current != 0 || got.Progress.Total != 1 {
		t.Fatalf("unexpected progress: %+v", got.Progress)
	}
}

func TestEligibilityStartUnknownPolicyMapsTo404(t *testing.T) {
	eligibility := &stubEligibilityService{err: domain.WrapError(domain.ErrPolicyNotFound, "get policy", errors.New("no rows"))}
	handler := newHandlerWithDeps(config.Config{}, testDeps{eligibility: eligibility})

	req := httptest.NewRequest(http.MethodPost, "/v1/eligibility/start", strings.NewReader(`{"policy_id":404}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestEligibilityStartRejectsNonPositivePolicyID(t *testing.T) {
	handler := newHandlerWithDeps(config.Config{}, testDeps{})

	req := httptest.NewRequest(http.MethodPost, "/v1/eligibility/start", strings.NewReader(`{"policy_id":0}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestEligibilityAnswerForwardsSessionAndAnswer(t *testing.T) {
	eligibility := &stubEligibilityService{check: &domain.EligibilityCheck{
		SessionID:    "elig-1",
		PolicyID:     7,
		CurrentIndex: 1,
		Conditions: []domain.EligibilityCondition{
			{Name: "창업 상태", Type: "business_status", Status: domain.ConditionPass, Reason: "예비창업자 조건을 만족합니다."},
		},
		Decision: domain.DecisionEligible,
		Reason:   "모든 자격 조건을 충족합니다.",
	}}
	handler := newHandlerWithDeps(config.Config{}, testDeps{eligibility: eligibility})

	body := strings.NewReader(`{"session_id":"elig-1","answer":"예비창업자입니다"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/eligibility/answer", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if eligibility.lastSession != "elig-1" || eligibility.lastAnswer != "예비창업자입니다" {
		t.Fatalf("request not forwarded: session=%q answer=%q", eligibility.lastSession, eligibility.lastAnswer)
	}

	var got eligibilityEnvelope
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Result != string(domain.DecisionEligible) || got.Progress.Current != 1 {
		t.Fatalf("unexpected envelope: %+v", got)
	}
}

func TestEligibilityResultUnknownSessionMapsTo404(t *testing.T) {
	eligibility := &stubEligibilityService{err: domain.WrapError(domain.ErrSessionNotFound, "get eligibility check", errors.New("no rows"))}
	handler := newHandlerWithDeps(config.Config{}, testDeps{eligibility: eligibility})

	req := httptest.NewRequest(http.MethodGet, "/v1/eligibility/result/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if eligibility.lastSession != "missing" {
		t.Fatalf("session id not extracted from path: %q", eligibility.lastSession)
	}
}

func TestSessionResetReportsSuccess(t *testing.T) {
	sessions := &stubSessionStore{resetFound: true}
	handler := newHandlerWithDeps(config.Config{}, testDeps{sessions: sessions})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/session/reset", strings.NewReader(`{"session_id":"sess-1"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if sessions.lastReset != "sess-1" {
		t.Fatalf("session id not forwarded: %q", sessions.lastReset)
	}

	var got struct {
		SessionID string `json:"session_id"`
		Success   bool   `json:"success"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.Success || got.Message != "세션이 초기화되었습니다." {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestSessionResetMissingSessionStillReturns200(t *testing.T) {
	handler := newHandlerWithDeps(config.Config{}, testDeps{sessions: &stubSessionStore{resetFound: false}})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/session/reset", strings.NewReader(`{"session_id":"missing"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var got struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Success || got.Message != "세션을 찾을 수 없거나 이미 삭제되었습니다." {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestSessionResetRequiresSessionID(t *testing.T) {
	handler := newHandlerWithDeps(config.Config{}, testDeps{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/session/reset", strings.NewReader(`{}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestListWebSourcesForwardsFilters(t *testing.T) {
	score := 0.82
	webSources := &stubWebSourceStore{sources: []domain.WebSource{
		{ID: 1, SessionID: "sess-1", PolicyID: 7, URL: "https://gov.kr/a", Title: "공고 A", Score: &score},
	}}
	handler := newHandlerWithDeps(config.Config{}, testDeps{webSources: webSources})

	req := httptest.NewRequest(http.MethodGet, "/v1/web-sources?session_id=sess-1&policy_id=7&limit=5", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if webSources.lastSession != "sess-1" || webSources.lastPolicy != 7 || webSources.lastLimit != 5 {
		t.Fatalf("filters not forwarded: session=%q policy=%d limit=%d",
			webSources.lastSession, webSources.lastPolicy, webSources.lastLimit)
	}

	var got struct {
		Items []domain.WebSource `json:"items"`
		Total int                `json:"total"`
	}
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Total != 1 || len(got.Items) != 1 || got.Items[0].URL != "https://gov.kr/a" {
		t.Fatalf("unexpected listing: %+v", got)
	}
}

func TestGetWebSourceByIDRoute(t *testing.T) {
	webSources := &stubWebSourceStore{source: &domain.WebSource{ID: 3, URL: "https://gov.kr/a", Title: "공고 A"}}
	handler := newHandlerWithDeps(config.Config{}, testDeps{webSources: webSources})

	req := httptest.NewRequest(http.MethodGet, "/v1/web-sources/3", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var got domain.WebSource
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != 3 || got.Title != "공고 A" {
		t.Fatalf("unexpected source: %+v", got)
	}
}

func TestGetWebSourceNotFoundMapsTo404(t *testing.T) {
	handler := newHandlerWithDeps(config.Config{}, testDeps{webSources: &stubWebSourceStore{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/web-sources/404", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestRequestIDIsPropagatedFromHeader(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-fixed-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-fixed-1" {
		t.Fatalf("expected caller request id echoed, got %q", got)
	}
}

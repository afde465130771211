package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmkang/policy-qa-agent/internal/config"
	"github.com/jmkang/policy-qa-agent/internal/core/domain"
	"github.com/jmkang/policy-qa-agent/internal/core/ports"
	"github.com/jmkang/policy-qa-agent/internal/observability/metrics"
)

const serviceLabel = "api"

type Router struct {
	qa          ports.QAService
	search      ports.PolicySearchService
	eligibility ports.EligibilityService
	sessions    ports.SessionStore
	webSources  ports.WebSourceStore
	metrics     *metrics.HTTPServerMetrics
	logger      *slog.Logger
	cfg         config.Config
}

func NewRouter(
	qa ports.QAService,
	search ports.PolicySearchService,
	eligibility ports.EligibilityService,
	sessions ports.SessionStore,
	webSources ports.WebSourceStore,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
	cfg config.Config,
) *Router {
	return &Router{
		qa:          qa,
		search:      search,
		eligibility: eligibility,
		sessions:    sessions,
		webSources:  webSources,
		metrics:     m,
		logger:      logger,
		cfg:         cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/chat/qa", rt.chatQA)
	mux.HandleFunc("/v1/chat/session/reset", rt.resetSession)
	mux.HandleFunc("/v1/policies/search", rt.searchPolicies)
	mux.HandleFunc("/v1/policies/", rt.getPolicyByID)
	mux.HandleFunc("/v1/eligibility/start", rt.startEligibility)
	mux.HandleFunc("/v1/eligibility/answer", rt.answerEligibility)
	mux.HandleFunc("/v1/eligibility/result/", rt.eligibilityResult)
	mux.HandleFunc("/v1/web-sources", rt.listWebSources)
	mux.HandleFunc("/v1/web-sources/", rt.getWebSource)

	var handler http.Handler = mux
	handler = requestMetricsMiddleware(handler, rt.metrics, serviceLabel)
	if rt.cfg.APIMaxInFlight > 0 {
		wait := time.Duration(rt.cfg.APIBackpressureWait) * time.Millisecond
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, wait)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	handler = accessLogMiddleware(handler, rt.logger)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) chatQA(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		PolicyID  int64  `json:"policy_id"`
		Question  string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	// First-turn callers may omit the session id; the server opens one.
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = uuid.NewString()
	}

	result, err := rt.qa.Ask(r.Context(), req.SessionID, req.PolicyID, req.Question)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	outcome := "ok"
	if result.Err != "" {
		outcome = "degraded"
	}
	rt.metrics.ObserveQARun(serviceLabel, outcome, len(result.Evidence))

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) searchPolicies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	params := r.URL.Query()
	query := strings.TrimSpace(params.Get("query"))
	filter := domain.PolicyFilter{
		Region:   strings.TrimSpace(params.Get("region")),
		Category: strings.TrimSpace(params.Get("category")),
	}

	limit, err := intParam(params.Get("limit"), 10)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
		return
	}
	offset, err := intParam(params.Get("offset"), 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "offset must be an integer"})
		return
	}

	mode := "vector"
	if query == "" {
		mode = "relational"
	}
	rt.metrics.IncSearchRequest(serviceLabel, mode)

	result, err := rt.search.Search(r.Context(), query, filter, limit, offset)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getPolicyByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/v1/policies/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "policy id must be a positive integer"})
		return
	}

	policy, err := rt.search.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (rt *Router) resetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	found, err := rt.sessions.ResetSession(r.Context(), req.SessionID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	// Resetting a missing session is not an error; the caller just
	// learns nothing was there.
	message := "세션이 초기화되었습니다."
	if !found {
		message = "세션을 찾을 수 없거나 이미 삭제되었습니다."
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": req.SessionID,
		"success":    found,
		"message":    message,
	})
}

type eligibilityProgress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// eligibilityEnvelope is the wire shape shared by all three interview
// endpoints.
type eligibilityEnvelope struct {
	SessionID  string                        `json:"session_id"`
	PolicyID   int64                         `json:"policy_id"`
	Question   string                        `json:"question,omitempty"`
	Conditions []domain.EligibilityCondition `json:"conditions"`
	Progress   eligibilityProgress           `json:"progress"`
	Result     string                        `json:"result,omitempty"`
	Reason     string                        `json:"reason,omitempty"`
	Error      string                        `json:"error,omitempty"`
}

func toEligibilityEnvelope(check *domain.EligibilityCheck) eligibilityEnvelope {
	current := check.CurrentIndex
	if current > len(check.Conditions) {
		current = len(check.Conditions)
	}
	return eligibilityEnvelope{
		SessionID:  check.SessionID,
		PolicyID:   check.PolicyID,
		Question:   check.Question,
		Conditions: check.Conditions,
		Progress:   eligibilityProgress{Current: current, Total: len(check.Conditions)},
		Result:     string(check.Decision),
		Reason:     check.Reason,
		Error:      check.Err,
	}
}

func (rt *Router) startEligibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		PolicyID int64 `json:"policy_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.PolicyID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "policy_id must be a positive integer"})
		return
	}

	check, err := rt.eligibility.Start(r.Context(), req.PolicyID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toEligibilityEnvelope(check))
}

func (rt *Router) answerEligibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		Answer    string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	check, err := rt.eligibility.Answer(r.Context(), req.SessionID, req.Answer)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toEligibilityEnvelope(check))
}

func (rt *Router) eligibilityResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/v1/eligibility/result/")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}

	check, err := rt.eligibility.Result(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toEligibilityEnvelope(check))
}

func (rt *Router) listWebSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	params := r.URL.Query()
	sessionID := strings.TrimSpace(params.Get("session_id"))

	policyID := int64(0)
	if raw := strings.TrimSpace(params.Get("policy_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "policy_id must be an integer"})
			return
		}
		policyID = parsed
	}
	limit, err := intParam(params.Get("limit"), 10)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
		return
	}

	sources, err := rt.webSources.ListWebSources(r.Context(), sessionID, policyID, limit)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": sources,
		"total": len(sources),
	})
}

func (rt *Router) getWebSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/v1/web-sources/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "web source id must be a positive integer"})
		return
	}

	source, err := rt.webSources.GetWebSource(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, source)
}

func intParam(raw string, fallback int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

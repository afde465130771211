package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
	"github.com/jmkang/policy-qa-agent/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeVectorIndex struct {
	hits        []domain.VectorHit
	err         error
	searchCalls int
	indexed     []domain.Chunk
	lastLimit   int
	lastFilter  domain.VectorFilter
}

func (f *fakeVectorIndex) IndexChunks(_ context.Context, chunks []domain.Chunk, _ [][]float32) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, chunks...)
	return nil
}

func (f *fakeVectorIndex) Search(_ context.Context, _ []float32, limit int, _ float64, filter domain.VectorFilter) ([]domain.VectorHit, error) {
	f.searchCalls++
	f.lastLimit = limit
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakePolicyStore struct {
	policies map[int64]domain.Policy
	total    int
	listed   []domain.Policy
	created  []domain.Policy
	err      error
}

func (f *fakePolicyStore) Create(_ context.Context, policy *domain.Policy) error {
	if f.err != nil {
		return f.err
	}
	policy.ID = int64(len(f.created) + 1)
	f.created = append(f.created, *policy)
	return nil
}

func (f *fakePolicyStore) GetByID(_ context.Context, id int64) (*domain.Policy, error) {
	if f.err != nil {
		return nil, f.err
	}
	policy, ok := f.policies[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrPolicyNotFound, "get policy", fmt.Errorf("id %d", id))
	}
	return &policy, nil
}

func (f *fakePolicyStore) ListByIDs(_ context.Context, ids []int64) ([]domain.Policy, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Policy, 0, len(ids))
	for _, id := range ids {
		if policy, ok := f.policies[id]; ok {
			out = append(out, policy)
		}
	}
	return out, nil
}

func (f *fakePolicyStore) Search(_ context.Context, _ domain.PolicyFilter, limit, offset int) ([]domain.Policy, error) {
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.listed) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.listed) {
		end = len(f.listed)
	}
	return f.listed[offset:end], nil
}

func (f *fakePolicyStore) Count(_ context.Context, _ domain.PolicyFilter) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.total, nil
}

type fakeWebSearcher struct {
	results   []domain.WebResult
	err       error
	calls     int
	lastQuery string
	lastMax   int
}

func (f *fakeWebSearcher) Search(_ context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	f.calls++
	f.lastQuery = query
	f.lastMax = maxResults
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeGenerator struct {
	answer       string
	answers      []string // consumed first when set, one per call
	err          error
	calls        int
	lastMessages []ports.Message
}

func (f *fakeGenerator) Generate(_ context.Context, messages []ports.Message) (string, error) {
	f.calls++
	f.lastMessages = messages
	if f.err != nil {
		return "", f.err
	}
	if len(f.answers) > 0 {
		next := f.answers[0]
		f.answers = f.answers[1:]
		return next, nil
	}
	return f.answer, nil
}

type fakeSessionStore struct {
	history   []domain.ChatMessage
	appended  []domain.ChatMessage
	ensureErr error
	appendErr error
}

func (f *fakeSessionStore) EnsureSession(_ context.Context, _ string, _ int64) error {
	return f.ensureErr
}

func (f *fakeSessionStore) AppendMessage(_ context.Context, message domain.ChatMessage) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, message)
	return nil
}

func (f *fakeSessionStore) ListRecentMessages(_ context.Context, _ string, _ int) ([]domain.ChatMessage, error) {
	return f.history, nil
}

func (f *fakeSessionStore) ResetSession(_ context.Context, _ string) (bool, error) {
	return true, nil
}

type fakeWebSourceStore struct {
	saved []domain.WebResult
	err   error
}

func (f *fakeWebSourceStore) SaveWebSources(_ context.Context, _ string, _ int64, _ string, sources []domain.WebResult) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, sources...)
	return nil
}

func (f *fakeWebSourceStore) GetWebSource(_ context.Context, id int64) (*domain.WebSource, error) {
	return nil, domain.WrapError(domain.ErrWebSourceNotFound, "get web source", fmt.Errorf("id %d", id))
}

func (f *fakeWebSourceStore) ListWebSources(_ context.Context, _ string, _ int64, _ int) ([]domain.WebSource, error) {
	return nil, f.err
}

type fakeEligibilityStore struct {
	checks  map[string]domain.EligibilityCheck
	saveErr error
}

func (f *fakeEligibilityStore) SaveEligibilityCheck(_ context.Context, check *domain.EligibilityCheck) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.checks == nil {
		f.checks = map[string]domain.EligibilityCheck{}
	}
	f.checks[check.SessionID] = *check
	return nil
}

func (f *fakeEligibilityStore) GetEligibilityCheck(_ context.Context, sessionID string) (*domain.EligibilityCheck, error) {
	check, ok := f.checks[sessionID]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get eligibility check", fmt.Errorf("session %s", sessionID))
	}
	out := check
	return &out, nil
}

type fakeDocumentStore struct {
	docs []domain.PolicyDocument
	err  error
}

func (f *fakeDocumentStore) CreateDocument(_ context.Context, doc *domain.PolicyDocument) error {
	if f.err != nil {
		return f.err
	}
	doc.ID = int64(len(f.docs) + 1)
	f.docs = append(f.docs, *doc)
	return nil
}

func (f *fakeDocumentStore) ListByPolicyID(_ context.Context, policyID int64) ([]domain.PolicyDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.PolicyDocument, 0, len(f.docs))
	for _, doc := range f.docs {
		if doc.PolicyID == policyID {
			out = append(out, doc)
		}
	}
	return out, nil
}

type fakeExtractor struct {
	err error
}

func (f *fakeExtractor) Extract(_ context.Context, doc *domain.PolicyDocument) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return doc.Content, nil
}

type fakeQueue struct {
	published []int64
	err       error
}

func (f *fakeQueue) PublishPolicyIngested(_ context.Context, policyID int64) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, policyID)
	return nil
}

func (f *fakeQueue) SubscribePolicyIngested(context.Context, func(context.Context, int64) error) error {
	return nil
}

type fakeCatalogReader struct {
	policies []domain.Policy
	err      error
}

func (f *fakeCatalogReader) Read(string) ([]domain.Policy, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.policies, nil
}

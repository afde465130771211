package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
	"github.com/jmkang/policy-qa-agent/internal/core/ports"
)

// Workflow stage names, reported to the stage observer in execution
// order.
const (
	StageClassify    = "classify"
	StageRetrieve    = "retrieve"
	StageSufficiency = "check_sufficiency"
	StageWebSearch   = "web_search"
	StageSynthesize  = "synthesize"
)

const fallbackAnswerPrefix = "죄송합니다. 답변 생성 중 오류가 발생했습니다"

// StageObserver is invoked after every executed stage with its wall
// duration. Used for metrics; never for control flow.
type StageObserver func(stage string, duration time.Duration)

type QAWorkflowConfig struct {
	WebMaxResults       int
	SessionHistoryLimit int
	EvidenceContentMax  int
}

func (c QAWorkflowConfig) withDefaults() QAWorkflowConfig {
	if c.WebMaxResults <= 0 {
		c.WebMaxResults = 5
	}
	if c.SessionHistoryLimit <= 0 {
		c.SessionHistoryLimit = 10
	}
	if c.EvidenceContentMax <= 0 {
		c.EvidenceContentMax = 200
	}
	return c
}

// QAWorkflow is the retrieval-sufficiency decision pipeline:
// classify, retrieve, evaluate sufficiency, conditionally web-search,
// then synthesize. A strict linear pass with one conditional bypass;
// no stage failure aborts the run. Each invocation owns its state
// instance and always reaches a well-formed result.
type QAWorkflow struct {
	classifier *KeywordClassifier
	evaluator  *SufficiencyEvaluator
	retriever  *Retriever
	web        ports.WebSearcher
	generator  ports.AnswerGenerator
	policies   ports.PolicyStore
	sessions   ports.SessionStore
	webSources ports.WebSourceStore
	logger     *slog.Logger
	observer   StageObserver
	cfg        QAWorkflowConfig
}

func NewQAWorkflow(
	classifier *KeywordClassifier,
	evaluator *SufficiencyEvaluator,
	retriever *Retriever,
	web ports.WebSearcher,
	generator ports.AnswerGenerator,
	policies ports.PolicyStore,
	sessions ports.SessionStore,
	webSources ports.WebSourceStore,
	logger *slog.Logger,
	cfg QAWorkflowConfig,
) *QAWorkflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &QAWorkflow{
		classifier: classifier,
		evaluator:  evaluator,
		retriever:  retriever,
		web:        web,
		generator:  generator,
		policies:   policies,
		sessions:   sessions,
		webSources: webSources,
		logger:     logger,
		cfg:        cfg.withDefaults(),
	}
}

// SetStageObserver registers the per-stage timing callback.
func (w *QAWorkflow) SetStageObserver(observer StageObserver) {
	w.observer = observer
}

// Ask runs one full workflow pass. The returned result always carries
// a non-empty answer; Err is informational and never suppresses it.
func (w *QAWorkflow) Ask(ctx context.Context, sessionID string, policyID int64, question string) (domain.QAResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.QAResult{}, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("empty question"))
	}
	if sessionID == "" {
		return domain.QAResult{}, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("empty session id"))
	}

	state := &domain.QAState{
		SessionID: sessionID,
		PolicyID:  policyID,
		Query:     question,
	}
	w.loadHistory(ctx, state)

	w.runStage(state, StageClassify, func() error {
		state.NeedWebSearch = w.classifier.NeedsWebSearch(state.Query)
		return nil
	})

	w.runStage(state, StageRetrieve, func() error {
		passages, err := w.retriever.Retrieve(ctx, state.Query, state.PolicyID)
		if err != nil {
			state.Passages = nil
			return err
		}
		state.Passages = passages
		return nil
	})

	w.runStage(state, StageSufficiency, func() error {
		// Classifier decision is absolute: a flagged query goes to web
		// search regardless of retrieval quality.
		if state.NeedWebSearch {
			return nil
		}
		state.NeedWebSearch = !w.evaluator.IsSufficient(state.Passages)
		return nil
	})

	if state.NeedWebSearch {
		w.runStage(state, StageWebSearch, func() error {
			results, err := w.web.Search(ctx, state.Query, w.cfg.WebMaxResults)
			if err != nil {
				state.WebSources = nil
				return domain.WrapError(domain.ErrWebSearch, "web search", err)
			}
			state.WebSources = results
			return nil
		})
	}

	w.runStage(state, StageSynthesize, func() error {
		return w.synthesize(ctx, state)
	})

	w.persistOutcome(ctx, state)

	w.logger.Info("qa_workflow_done",
		"session_id", state.SessionID,
		"policy_id", state.PolicyID,
		"passages", len(state.Passages),
		"web_sources", len(state.WebSources),
		"need_web_search", state.NeedWebSearch,
		"degraded", state.Err != "",
	)

	return domain.QAResult{
		SessionID: state.SessionID,
		Answer:    state.Answer,
		Evidence:  state.Evidence,
		Err:       state.Err,
	}, nil
}

// runStage executes one stage, times it, and converts any failure into
// a recorded state error. No error crosses a stage boundary.
func (w *QAWorkflow) runStage(state *domain.QAState, name string, fn func() error) {
	started := time.Now()
	err := fn()
	duration := time.Since(started)

	if w.observer != nil {
		w.observer(name, duration)
	}
	if err != nil {
		state.SetError(fmt.Sprintf("%s: %v", name, err))
		w.logger.Warn("qa_stage_degraded",
			"stage", name,
			"session_id", state.SessionID,
			"error", err,
		)
	}
}

func (w *QAWorkflow) loadHistory(ctx context.Context, state *domain.QAState) {
	if err := w.sessions.EnsureSession(ctx, state.SessionID, state.PolicyID); err != nil {
		w.logger.Warn("ensure_session_failed", "session_id", state.SessionID, "error", err)
		return
	}
	history, err := w.sessions.ListRecentMessages(ctx, state.SessionID, w.cfg.SessionHistoryLimit)
	if err != nil {
		w.logger.Warn("load_history_failed", "session_id", state.SessionID, "error", err)
		return
	}
	state.History = history
}

func (w *QAWorkflow) synthesize(ctx context.Context, state *domain.QAState) error {
	var policy *domain.Policy
	if state.PolicyID > 0 {
		loaded, err := w.policies.GetByID(ctx, state.PolicyID)
		if err != nil {
			w.logger.Warn("load_policy_failed", "policy_id", state.PolicyID, "error", err)
		} else {
			policy = loaded
		}
	}

	messages := buildQAMessages(policy, state.History, state.Passages, state.WebSources, state.Query)
	answer, err := w.generator.Generate(ctx, messages)
	if err != nil {
		state.Answer = fmt.Sprintf("%s: %v", fallbackAnswerPrefix, err)
		state.Evidence = []domain.EvidenceItem{}
		return domain.WrapError(domain.ErrSynthesis, "generate answer", err)
	}
	if strings.TrimSpace(answer) == "" {
		state.Answer = fallbackAnswerPrefix + "."
		state.Evidence = []domain.EvidenceItem{}
		return domain.WrapError(domain.ErrSynthesis, "generate answer", fmt.Errorf("empty completion"))
	}

	state.Answer = answer
	state.Evidence = w.buildEvidence(state)
	return nil
}

func (w *QAWorkflow) buildEvidence(state *domain.QAState) []domain.EvidenceItem {
	evidence := make([]domain.EvidenceItem, 0, len(state.Passages)+len(state.WebSources))
	for _, passage := range state.Passages {
		score := passage.Score
		evidence = append(evidence, domain.EvidenceItem{
			Kind:    domain.EvidenceInternal,
			Source:  fmt.Sprintf("정책 문서 (섹션: %s)", passage.DocType),
			Content: truncateRunes(passage.Content, w.cfg.EvidenceContentMax),
			Score:   &score,
		})
	}
	for _, source := range state.WebSources {
		evidence = append(evidence, domain.EvidenceItem{
			Kind:    domain.EvidenceWeb,
			Source:  source.Title,
			Content: truncateRunes(source.Snippet, w.cfg.EvidenceContentMax),
			URL:     source.URL,
			Score:   source.Score,
		})
	}
	return evidence
}

// persistOutcome records the exchange and any web sources used.
// History persistence is an external collaborator; its failures are
// logged and never degrade the answer.
func (w *QAWorkflow) persistOutcome(ctx context.Context, state *domain.QAState) {
	if err := w.sessions.AppendMessage(ctx, domain.ChatMessage{
		SessionID: state.SessionID,
		PolicyID:  state.PolicyID,
		Role:      domain.RoleUser,
		Content:   state.Query,
	}); err != nil {
		w.logger.Warn("persist_user_turn_failed", "session_id", state.SessionID, "error", err)
	}
	if err := w.sessions.AppendMessage(ctx, domain.ChatMessage{
		SessionID: state.SessionID,
		PolicyID:  state.PolicyID,
		Role:      domain.RoleAssistant,
		Content:   state.Answer,
	}); err != nil {
		w.logger.Warn("persist_assistant_turn_failed", "session_id", state.SessionID, "error", err)
	}

	if len(state.WebSources) > 0 {
		if err := w.webSources.SaveWebSources(ctx, state.SessionID, state.PolicyID, state.Query, state.WebSources); err != nil {
			w.logger.Warn("persist_web_sources_failed", "session_id", state.SessionID, "error", err)
		}
	}
}

func truncateRunes(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
	"github.com/jmkang/policy-qa-agent/internal/core/ports"
)

const (
	conditionParserSystemPrompt = "당신은 정책 자격 조건 분석 전문가입니다."
	interviewerSystemPrompt     = "당신은 친절한 정책 상담사입니다."

	questionFallback = "질문 생성 중 오류가 발생했습니다."
)

// Condition types the rule matcher understands. Anything else is
// accepted as answered once the user responds.
const (
	conditionTypeBusinessStatus = "business_status"
	conditionTypeRegion         = "region"
	conditionTypeAge            = "age"
)

// EligibilityWorkflow runs the condition interview: extract structured
// conditions from the policy's apply-target text, settle what known
// slots already answer, then walk the remaining unknowns one turn at a
// time. Like the QA workflow, model failures degrade the interview
// instead of aborting it.
type EligibilityWorkflow struct {
	policies  ports.PolicyStore
	generator ports.AnswerGenerator
	store     ports.EligibilityStore
	logger    *slog.Logger
}

func NewEligibilityWorkflow(
	policies ports.PolicyStore,
	generator ports.AnswerGenerator,
	store ports.EligibilityStore,
	logger *slog.Logger,
) *EligibilityWorkflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &EligibilityWorkflow{
		policies:  policies,
		generator: generator,
		store:     store,
		logger:    logger,
	}
}

// Start opens an interview for one policy: parse its conditions, mark
// everything unknown, and prepare the first question.
func (w *EligibilityWorkflow) Start(ctx context.Context, policyID int64) (*domain.EligibilityCheck, error) {
	policy, err := w.policies.GetByID(ctx, policyID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	check := &domain.EligibilityCheck{
		SessionID: uuid.NewString(),
		PolicyID:  policyID,
		UserSlots: map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	conditions, err := w.parseConditions(ctx, policy.ApplyTarget)
	if err != nil {
		// The interview proceeds without conditions; the error is
		// recorded on the state for the caller to see.
		check.RecordError(err.Error())
		w.logger.Warn("eligibility_parse_degraded", "policy_id", policyID, "error", err)
	} else {
		check.Conditions = conditions
	}

	w.settleKnownSlots(check)
	w.advance(ctx, check, policy.ProgramName)

	if err := w.store.SaveEligibilityCheck(ctx, check); err != nil {
		return nil, fmt.Errorf("save eligibility check: %w", err)
	}

	w.logger.Info("eligibility_started",
		"session_id", check.SessionID,
		"policy_id", policyID,
		"conditions", len(check.Conditions),
	)
	return check, nil
}

// Answer applies the user's reply to the condition currently being
// asked, then prepares the next question or the verdict.
func (w *EligibilityWorkflow) Answer(ctx context.Context, sessionID, answer string) (*domain.EligibilityCheck, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "eligibility answer", fmt.Errorf("empty answer"))
	}

	check, err := w.store.GetEligibilityCheck(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	w.recordAnswer(check, answer)

	policyName := ""
	if policy, err := w.policies.GetByID(ctx, check.PolicyID); err != nil {
		w.logger.Warn("eligibility_policy_lookup_failed", "policy_id", check.PolicyID, "error", err)
	} else {
		policyName = policy.ProgramName
	}
	w.advance(ctx, check, policyName)

	check.UpdatedAt = time.Now().UTC()
	if err := w.store.SaveEligibilityCheck(ctx, check); err != nil {
		return nil, fmt.Errorf("save eligibility check: %w", err)
	}
	return check, nil
}

// Result renders the verdict from whatever has been resolved so far;
// unresolved conditions yield a partial decision.
func (w *EligibilityWorkflow) Result(ctx context.Context, sessionID string) (*domain.EligibilityCheck, error) {
	check, err := w.store.GetEligibilityCheck(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	decide(check)
	return check, nil
}

func (w *EligibilityWorkflow) parseConditions(ctx context.Context, applyTarget string) ([]domain.EligibilityCondition, error) {
	if strings.TrimSpace(applyTarget) == "" {
		return nil, fmt.Errorf("신청 대상 정보가 없습니다")
	}

	raw, err := w.generator.Generate(ctx, []ports.Message{
		{Role: "system", Content: conditionParserSystemPrompt},
		{Role: "user", Content: buildConditionParsePrompt(applyTarget)},
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrSynthesis, "extract conditions", err)
	}

	var conditions []domain.EligibilityCondition
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &conditions); err != nil {
		return nil, domain.WrapError(domain.ErrParse, "decode conditions", err)
	}
	for i := range conditions {
		conditions[i].Status = domain.ConditionUnknown
		conditions[i].Reason = ""
	}
	return conditions, nil
}

// settleKnownSlots resolves conditions that the collected slots already
// answer, without spending an interview turn on them.
func (w *EligibilityWorkflow) settleKnownSlots(check *domain.EligibilityCheck) {
	for i := range check.Conditions {
		condition := &check.Conditions[i]
		if condition.Status != domain.ConditionUnknown {
			continue
		}
		value := strings.ToLower(condition.Value)

		switch condition.Type {
		case conditionTypeBusinessStatus:
			slot, ok := check.UserSlots[conditionTypeBusinessStatus]
			if !ok {
				continue
			}
			user := strings.ToLower(slot)
			if strings.Contains(user, value) || strings.Contains(value, user) {
				condition.Status = domain.ConditionPass
				condition.Reason = "사용자 정보와 일치: " + slot
			}
		case conditionTypeRegion:
			slot, ok := check.UserSlots[conditionTypeRegion]
			if !ok {
				continue
			}
			user := strings.ToLower(slot)
			switch {
			case strings.Contains(value, "전국") || strings.Contains(user, "전국"):
				condition.Status = domain.ConditionPass
				condition.Reason = "전국 대상 정책입니다."
			case strings.Contains(value, user) || strings.Contains(user, value):
				condition.Status = domain.ConditionPass
				condition.Reason = "지역 조건 만족: " + slot
			}
		case conditionTypeAge:
			slot, ok := check.UserSlots[conditionTypeAge]
			if !ok {
				continue
			}
			condition.Status = domain.ConditionPass
			condition.Reason = "나이 조건 확인: " + slot
		}
	}
}

// recordAnswer rule-matches the reply against the condition currently
// being asked and stores it as a slot for later conditions.
func (w *EligibilityWorkflow) recordAnswer(check *domain.EligibilityCheck, answer string) {
	if check.Done() {
		return
	}
	condition := &check.Conditions[check.CurrentIndex]

	slot := condition.Type
	if slot == "" {
		slot = condition.Name
	}
	if check.UserSlots == nil {
		check.UserSlots = map[string]string{}
	}
	check.UserSlots[slot] = answer

	value := strings.ToLower(condition.Value)
	user := strings.ToLower(answer)

	switch condition.Type {
	case conditionTypeBusinessStatus:
		switch {
		case strings.Contains(value, "예비") && strings.Contains(user, "예비"):
			condition.Status = domain.ConditionPass
			condition.Reason = "예비창업자 조건을 만족합니다."
		case strings.Contains(value, "3년") && containsAny(user, "1년", "2년", "3년", "예비"):
			condition.Status = domain.ConditionPass
			condition.Reason = "업력 조건을 만족합니다."
		case strings.Contains(value, "창업") && strings.Contains(user, "창업"):
			condition.Status = domain.ConditionPass
			condition.Reason = "창업 조건을 만족합니다."
		default:
			condition.Status = domain.ConditionUnknown
			condition.Reason = fmt.Sprintf("답변: %s (추가 확인 필요)", answer)
		}
	case conditionTypeRegion:
		condition.Status = domain.ConditionPass
		if strings.Contains(value, "전국") {
			condition.Reason = "전국 대상 정책입니다."
		} else {
			condition.Reason = "지역: " + answer
		}
	default:
		condition.Status = domain.ConditionPass
		condition.Reason = "답변: " + answer
	}

	check.CurrentIndex++
}

// advance moves past already-resolved conditions, then either asks
// about the next unknown or renders the verdict.
func (w *EligibilityWorkflow) advance(ctx context.Context, check *domain.EligibilityCheck, policyName string) {
	for check.CurrentIndex < len(check.Conditions) &&
		check.Conditions[check.CurrentIndex].Status != domain.ConditionUnknown {
		check.CurrentIndex++
	}
	if check.Done() {
		check.Question = ""
		decide(check)
		return
	}

	question, err := w.generateQuestion(ctx, policyName, check.Conditions[check.CurrentIndex])
	if err != nil {
		check.Question = questionFallback
		check.RecordError(err.Error())
		w.logger.Warn("eligibility_question_degraded", "session_id", check.SessionID, "error", err)
		return
	}
	check.Question = question
}

func (w *EligibilityWorkflow) generateQuestion(ctx context.Context, policyName string, condition domain.EligibilityCondition) (string, error) {
	question, err := w.generator.Generate(ctx, []ports.Message{
		{Role: "system", Content: interviewerSystemPrompt},
		{Role: "user", Content: buildConditionQuestionPrompt(policyName, condition)},
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrSynthesis, "generate condition question", err)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", domain.WrapError(domain.ErrSynthesis, "generate condition question", fmt.Errorf("empty completion"))
	}
	return question, nil
}

// decide renders the verdict from the statuses collected so far.
func decide(check *domain.EligibilityCheck) {
	if len(check.Conditions) == 0 {
		check.Decision = domain.DecisionNotEligible
		check.Reason = "확인할 조건이 없습니다."
		return
	}

	var failed, unknown int
	for _, condition := range check.Conditions {
		switch condition.Status {
		case domain.ConditionFail:
			failed++
		case domain.ConditionUnknown:
			unknown++
		}
	}

	switch {
	case failed > 0:
		check.Decision = domain.DecisionNotEligible
		check.Reason = fmt.Sprintf("%d개 조건을 만족하지 못합니다.", failed)
	case unknown > 0:
		check.Decision = domain.DecisionPartiallyKnown
		check.Reason = fmt.Sprintf("%d개 조건은 추가 확인이 필요합니다.", unknown)
	default:
		check.Decision = domain.DecisionEligible
		check.Reason = "모든 자격 조건을 충족합니다."
	}
}

func buildConditionParsePrompt(applyTarget string) string {
	var b strings.Builder
	b.WriteString("다음 지원 사업의 신청 대상 텍스트에서 자격 조건을 추출하세요.\n\n")
	b.WriteString("신청 대상:\n")
	b.WriteString(applyTarget)
	b.WriteString("\n\n각 조건을 아래 형식의 JSON 배열로만 응답하세요. 다른 설명은 쓰지 마세요.\n")
	b.WriteString(`[{"name": "조건 이름", "description": "조건 설명", "type": "business_status | region | age | other", "value": "조건 값"}]`)
	return b.String()
}

func buildConditionQuestionPrompt(policyName string, condition domain.EligibilityCondition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "'%s' 지원 사업의 자격 조건을 확인하는 질문을 한 문장으로 만들어 주세요.\n\n", policyName)
	fmt.Fprintf(&b, "조건 이름: %s\n", condition.Name)
	fmt.Fprintf(&b, "조건 설명: %s\n", condition.Description)
	fmt.Fprintf(&b, "조건 유형: %s\n", condition.Type)
	b.WriteString("\n질문만 출력하세요.")
	return b.String()
}

// stripCodeFence unwraps a completion the model fenced as a markdown
// code block, with or without the json language tag.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, fence := range []string{"```json", "```"} {
		start := strings.Index(trimmed, fence)
		if start < 0 {
			continue
		}
		rest := trimmed[start+len(fence):]
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	return trimmed
}

func containsAny(text string, tokens ...string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

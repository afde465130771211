package usecase

import (
	"fmt"
	"strings"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
	"github.com/jmkang/policy-qa-agent/internal/core/ports"
)

const qaSystemPrompt = "당신은 정부 정책 전문 상담사입니다."

// buildQAMessages renders one synchronous completion request: system
// role, recent session history, then a single user turn carrying the
// policy metadata, retrieved passages, web sources and the question.
func buildQAMessages(
	policy *domain.Policy,
	history []domain.ChatMessage,
	passages []domain.RetrievedPassage,
	webSources []domain.WebResult,
	question string,
) []ports.Message {
	messages := make([]ports.Message, 0, len(history)+2)
	messages = append(messages, ports.Message{Role: "system", Content: qaSystemPrompt})
	for _, turn := range history {
		messages = append(messages, ports.Message{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, ports.Message{
		Role:    "user",
		Content: renderQAPrompt(policy, passages, webSources, question),
	})
	return messages
}

func renderQAPrompt(
	policy *domain.Policy,
	passages []domain.RetrievedPassage,
	webSources []domain.WebResult,
	question string,
) string {
	var b strings.Builder

	if policy != nil {
		b.WriteString("## 정책 정보\n")
		fmt.Fprintf(&b, "- 사업명: %s\n", policy.ProgramName)
		if policy.ProgramOverview != "" {
			fmt.Fprintf(&b, "- 사업 개요: %s\n", policy.ProgramOverview)
		}
		if policy.ApplyTarget != "" {
			fmt.Fprintf(&b, "- 신청 대상: %s\n", policy.ApplyTarget)
		}
		if policy.SupportDescription != "" {
			fmt.Fprintf(&b, "- 지원 내용: %s\n", policy.SupportDescription)
		}
		b.WriteString("\n")
	}

	if len(passages) > 0 {
		b.WriteString("## 검색된 정책 문서\n")
		for i, passage := range passages {
			fmt.Fprintf(&b, "[%d] (섹션: %s, 관련도: %.2f)\n%s\n\n", i+1, passage.DocType, passage.Score, passage.Content)
		}
	}

	if len(webSources) > 0 {
		b.WriteString("## 웹 검색 결과\n")
		for i, source := range webSources {
			fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, source.Title, source.URL, source.Snippet)
		}
	}

	b.WriteString("## 사용자 질문\n")
	b.WriteString(question)
	b.WriteString("\n\n위 자료를 근거로 정확하고 친절하게 한국어로 답변하세요. 자료에 없는 내용은 추측하지 마세요.")
	return b.String()
}

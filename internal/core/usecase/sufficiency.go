package usecase

import "github.com/jmkang/policy-qa-agent/internal/core/domain"

// SufficiencyEvaluator decides whether retrieved passages justify
// skipping web search: a count gate first, then an average-quality
// gate. Both thresholds bias toward triggering web search when local
// evidence is thin.
type SufficiencyEvaluator struct {
	minPassages int
	minAvgScore float64
}

func NewSufficiencyEvaluator(minPassages int, minAvgScore float64) *SufficiencyEvaluator {
	if minPassages <= 0 {
		minPassages = 2
	}
	if minAvgScore <= 0 {
		minAvgScore = 0.75
	}
	return &SufficiencyEvaluator{
		minPassages: minPassages,
		minAvgScore: minAvgScore,
	}
}

func (e *SufficiencyEvaluator) IsSufficient(passages []domain.RetrievedPassage) bool {
	if len(passages) < e.minPassages {
		return false
	}

	var sum float64
	for _, passage := range passages {
		sum += passage.Score
	}
	return sum/float64(len(passages)) >= e.minAvgScore
}

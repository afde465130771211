package usecase

import "strings"

// KeywordClassifier flags queries that intrinsically need live web
// data: requests for the latest announcement, application links,
// downloadable forms and the like. A substring match against the
// configured keyword set is enough; there is no model call here.
type KeywordClassifier struct {
	keywords []string
}

func NewKeywordClassifier(keywords []string) *KeywordClassifier {
	cleaned := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			cleaned = append(cleaned, keyword)
		}
	}
	return &KeywordClassifier{keywords: cleaned}
}

// NeedsWebSearch is pure and deterministic. Empty input never
// triggers.
func (c *KeywordClassifier) NeedsWebSearch(query string) bool {
	if query == "" {
		return false
	}
	for _, keyword := range c.keywords {
		if strings.Contains(query, keyword) {
			return true
		}
	}
	return false
}

package chunking

import (
	"strings"
	"unicode/utf8"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
)

// sentence terminators, Korean full stop included
const sentenceTerminators = ".!?。"

// Splitter packs whole sentences into chunks of at most ChunkSize
// runes and seeds each new chunk with the trailing Overlap runes of
// the previous one. A single sentence longer than ChunkSize is kept
// whole: mid-sentence cuts would destroy the meaning of the passage,
// so the size bound is intentionally soft for that one case.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string, meta domain.ChunkMetadata) []domain.Chunk {
	cleaned := cleanText(text)
	if cleaned == "" {
		return nil
	}

	sentences := splitSentences(cleaned)
	if len(sentences) == 0 {
		return nil
	}

	chunks := make([]domain.Chunk, 0, len(sentences))
	current := ""
	currentLen := 0

	appendChunk := func(content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		chunks = append(chunks, domain.Chunk{
			Index:    len(chunks),
			Content:  content,
			Metadata: meta,
		})
	}

	for _, sentence := range sentences {
		// The joining space counts toward the size bound.
		joinLen := utf8.RuneCountInString(sentence)
		if current != "" {
			joinLen++
		}

		if currentLen+joinLen > s.ChunkSize && current != "" {
			appendChunk(current)

			current = s.overlapTail(current) + " " + sentence
			currentLen = utf8.RuneCountInString(current)
			continue
		}

		if current == "" {
			current = sentence
		} else {
			current += " " + sentence
		}
		currentLen += joinLen
	}

	appendChunk(current)
	return chunks
}

func (s *Splitter) overlapTail(text string) string {
	runes := []rune(text)
	if len(runes) <= s.Overlap {
		return text
	}
	return string(runes[len(runes)-s.Overlap:])
}

func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func splitSentences(text string) []string {
	out := make([]string, 0, 8)
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if strings.ContainsRune(sentenceTerminators, r) {
			sentence := strings.TrimSpace(b.String())
			if sentence != "" {
				out = append(out, sentence)
			}
			b.Reset()
		}
	}
	if tail := strings.TrimSpace(b.String()); tail != "" {
		out = append(out, tail)
	}
	return out
}

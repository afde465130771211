package usecase

import (
	"context"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
	"github.com/jmkang/policy-qa-agent/internal/core/ports"
)

// Retriever embeds the query and runs a filtered nearest-neighbor
// search, mapping index hits into read-only passages.
type Retriever struct {
	embedder       ports.Embedder
	vectors        ports.VectorIndex
	topK           int
	scoreThreshold float64
}

func NewRetriever(embedder ports.Embedder, vectors ports.VectorIndex, topK int, scoreThreshold float64) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		embedder:       embedder,
		vectors:        vectors,
		topK:           topK,
		scoreThreshold: scoreThreshold,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, policyID int64) ([]domain.RetrievedPassage, error) {
	if query == "" {
		return nil, nil
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "embed query", err)
	}

	filter := domain.VectorFilter{}
	if policyID > 0 {
		filter.PolicyID = &policyID
	}

	hits, err := r.vectors.Search(ctx, vector, r.topK, r.scoreThreshold, filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "vector search", err)
	}

	passages := make([]domain.RetrievedPassage, 0, len(hits))
	for _, hit := range hits {
		passages = append(passages, domain.RetrievedPassage{
			Content:    hit.Content,
			Score:      hit.Score,
			DocType:    hit.DocType,
			PolicyID:   hit.PolicyID,
			ChunkIndex: hit.ChunkIndex,
		})
	}
	return passages, nil
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
	"github.com/jmkang/policy-qa-agent/internal/core/ports"
)

// Indexer turns one catalog row and its attached documents into
// embedded chunks in the vector index. Run by the worker on ingest
// events.
type Indexer struct {
	policies  ports.PolicyStore
	documents ports.DocumentStore
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectors   ports.VectorIndex
	logger    *slog.Logger
	onChunks  func(count int)
}

func NewIndexer(
	policies ports.PolicyStore,
	documents ports.DocumentStore,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectors ports.VectorIndex,
	logger *slog.Logger,
) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		policies:  policies,
		documents: documents,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectors:   vectors,
		logger:    logger,
	}
}

// SetChunkObserver registers a callback receiving the indexed chunk
// count per policy.
func (ix *Indexer) SetChunkObserver(observe func(count int)) {
	ix.onChunks = observe
}

func (ix *Indexer) IndexByPolicyID(ctx context.Context, policyID int64) error {
	policy, err := ix.policies.GetByID(ctx, policyID)
	if err != nil {
		return fmt.Errorf("load policy %d: %w", policyID, err)
	}

	meta := domain.ChunkMetadata{
		PolicyID: policy.ID,
		Region:   policy.Region,
		Category: policy.Category,
	}

	chunks := make([]domain.Chunk, 0, 16)
	for _, segment := range catalogSegments(policy) {
		segmentMeta := meta
		segmentMeta.DocType = segment.docType
		chunks = appendRenumbered(chunks, ix.chunker.Split(segment.text, segmentMeta))
	}

	documents, err := ix.documents.ListByPolicyID(ctx, policyID)
	if err != nil {
		return fmt.Errorf("list documents for policy %d: %w", policyID, err)
	}
	for i := range documents {
		doc := documents[i]
		text, err := ix.extractor.Extract(ctx, &doc)
		if err != nil {
			// One unreadable attachment must not block the catalog segments.
			ix.logger.Warn("extract_document_failed", "policy_id", policyID, "document_id", doc.ID, "error", err)
			continue
		}
		docMeta := meta
		docMeta.DocType = doc.DocType
		if docMeta.DocType == "" {
			docMeta.DocType = domain.SegmentOther
		}
		chunks = appendRenumbered(chunks, ix.chunker.Split(text, docMeta))
	}

	if len(chunks) == 0 {
		ix.logger.Warn("nothing_to_index", "policy_id", policyID)
		return nil
	}

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Content)
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks for policy %d: %w", policyID, err)
	}

	if err := ix.vectors.IndexChunks(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks for policy %d: %w", policyID, err)
	}

	if ix.onChunks != nil {
		ix.onChunks(len(chunks))
	}
	ix.logger.Info("policy_indexed", "policy_id", policyID, "chunks", len(chunks))
	return nil
}

type catalogSegment struct {
	docType domain.SegmentType
	text    string
}

// catalogSegments flattens the structured catalog row into indexable
// section texts.
func catalogSegments(policy *domain.Policy) []catalogSegment {
	segments := []catalogSegment{
		{domain.SegmentOverview, policy.ProgramName + ". " + policy.ProgramOverview},
		{domain.SegmentTarget, policy.ApplyTarget},
		{domain.SegmentSupport, strings.TrimSpace(policy.SupportDescription + " " + policy.SupportScale)},
		{domain.SegmentProcess, strings.Join(policy.ApplicationMethod, ". ")},
		{domain.SegmentContact, strings.Join(append(append([]string{}, policy.ContactAgency...), policy.ContactNumber...), ". ")},
	}

	out := segments[:0]
	for _, segment := range segments {
		if strings.TrimSpace(strings.Trim(segment.text, ". ")) == "" {
			continue
		}
		out = append(out, segment)
	}
	return out
}

// appendRenumbered keeps chunk indexes unique across segments of one
// policy.
func appendRenumbered(dst []domain.Chunk, chunks []domain.Chunk) []domain.Chunk {
	base := len(dst)
	for _, chunk := range chunks {
		chunk.Index = base + chunk.Index
		dst = append(dst, chunk)
	}
	return dst
}

// CatalogImportService loads a collected catalog workbook into the
// relational store and emits one ingest event per created row.
type CatalogImportService struct {
	reader   ports.CatalogReader
	policies ports.PolicyStore
	queue    ports.MessageQueue
	logger   *slog.Logger
}

func NewCatalogImportService(
	reader ports.CatalogReader,
	policies ports.PolicyStore,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *CatalogImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogImportService{
		reader:   reader,
		policies: policies,
		queue:    queue,
		logger:   logger,
	}
}

// Import returns the number of catalog rows created. A failed publish
// leaves the row in place; the worker can be replayed later.
func (s *CatalogImportService) Import(ctx context.Context, path string) (int, error) {
	policies, err := s.reader.Read(path)
	if err != nil {
		return 0, domain.WrapError(domain.ErrParse, "read catalog", err)
	}

	created := 0
	for i := range policies {
		policy := policies[i]
		if err := s.policies.Create(ctx, &policy); err != nil {
			return created, fmt.Errorf("create policy %q: %w", policy.ProgramName, err)
		}
		created++

		if err := s.queue.PublishPolicyIngested(ctx, policy.ID); err != nil {
			s.logger.Warn("publish_ingest_event_failed", "policy_id", policy.ID, "error", err)
		}
	}

	s.logger.Info("catalog_imported", "path", path, "created", created)
	return created, nil
}

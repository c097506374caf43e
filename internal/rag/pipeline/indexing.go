package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ReckonAssist/internal/rag/docstore"
	"ReckonAssist/internal/rag/embeddings"
	"ReckonAssist/internal/rag/interfaces"
	"ReckonAssist/internal/rag/schema"
	"ReckonAssist/pkg/logger"
)

// Ingest validation errors.
var (
	ErrEmptyContent = errors.New("document content is empty")
	ErrEmptyTitle   = errors.New("document title is empty")
	ErrBadLanguage  = errors.New("language must be \"en\" or \"hi\"")
)

// PartitionManager prepares the storage namespace before the first write.
// The Milvus client satisfies it; tests substitute a no-op.
type PartitionManager interface {
	EnsurePartition(ctx context.Context, partition string) error
}

// IndexingOptions tunes the write path.
type IndexingOptions struct {
	Namespace      string
	ChunkSize      int
	ChunkOverlap   int
	Workers        int     // concurrent embed+upsert workers
	EmbedRateLimit float64 // remote embed calls per second
}

// IndexingPipeline turns raw documents into embedded, searchable chunks:
// chunk, register, then embed and upsert each chunk concurrently. A chunk is
// marked embedded only after its vector is stored, so a partial failure
// leaves the registry reflecting exactly what the index holds.
type IndexingPipeline struct {
	chunker    interfaces.Chunker
	provider   *embeddings.Provider
	store      interfaces.VectorStore
	docs       *docstore.Store
	partitions PartitionManager
	opts       IndexingOptions
	limiter    *rate.Limiter
	log        *logger.Logger
}

func NewIndexingPipeline(
	chunker interfaces.Chunker,
	provider *embeddings.Provider,
	store interfaces.VectorStore,
	docs *docstore.Store,
	partitions PartitionManager,
	opts IndexingOptions,
	log *logger.Logger,
) *IndexingPipeline {
	if opts.Workers <= 0 {
		opts.Workers = 10
	}
	if opts.EmbedRateLimit <= 0 {
		opts.EmbedRateLimit = 5
	}
	return &IndexingPipeline{
		chunker:    chunker,
		provider:   provider,
		store:      store,
		docs:       docs,
		partitions: partitions,
		opts:       opts,
		limiter:    rate.NewLimiter(rate.Limit(opts.EmbedRateLimit), opts.Workers),
		log:        log.WithComponent("indexing_pipeline"),
	}
}

// Ingest processes one document end to end. The returned result reports how
// many chunks were produced and how many made it into the vector index; the
// two counts differ only when some embeddings failed to store.
func (p *IndexingPipeline) Ingest(ctx context.Context, req schema.IngestRequest) (*schema.IngestResult, error) {
	start := time.Now()

	if err := validateIngest(req); err != nil {
		return nil, err
	}

	doc := &schema.Document{
		ID:           uuid.New().String(),
		Title:        req.Title,
		RawText:      req.Content,
		DocumentType: req.DocumentType,
		Industry:     req.Industry,
		Language:     req.Language,
		CreatedAt:    time.Now().UTC(),
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = p.opts.ChunkSize
	}
	overlap := req.ChunkOverlap
	if overlap <= 0 {
		overlap = p.opts.ChunkOverlap
	}

	chunks := p.chunker.Chunk(doc.RawText, chunkSize, overlap)
	for i := range chunks {
		chunks[i].DocumentID = doc.ID
	}
	p.docs.Add(doc, chunks)

	if len(chunks) == 0 {
		return &schema.IngestResult{
			DocumentID:       doc.ID,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	if p.partitions != nil {
		if err := p.partitions.EnsurePartition(ctx, p.opts.Namespace); err != nil {
			return nil, fmt.Errorf("failed to prepare namespace %s: %w", p.opts.Namespace, err)
		}
	}

	embedded, err := p.embedAndStore(ctx, doc, chunks)
	if err != nil {
		return nil, err
	}

	p.log.WithPayload(map[string]interface{}{
		"document_id": doc.ID,
		"chunks":      len(chunks),
		"embedded":    embedded,
	}).Info("document ingested")

	return &schema.IngestResult{
		DocumentID:        doc.ID,
		ChunksCreated:     len(chunks),
		EmbeddingsCreated: embedded,
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
	}, nil
}

// embedAndStore runs embed+upsert for every chunk with bounded concurrency.
// The rate limiter throttles remote embedding calls; fallback-embedded
// chunks pass through it too, which only errs on the slow side.
func (p *IndexingPipeline) embedAndStore(ctx context.Context, doc *schema.Document, chunks []schema.Chunk) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	done := make(chan string, len(chunks))
	for i := range chunks {
		chunk := chunks[i]
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return err
			}
			outcome, err := p.provider.Embed(gctx, chunk.Text, embeddings.RolePassage)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %s: %w", chunk.ID, err)
			}
			record := schema.VectorRecord{
				ID:     chunk.ID,
				Vector: outcome.Vector.Values,
				Metadata: schema.VectorMetadata{
					ChunkID:      chunk.ID,
					DocumentID:   doc.ID,
					ChunkIndex:   int64(chunk.Index),
					SectionTitle: chunk.SectionTitle,
					Keywords:     strings.Join(chunk.Keywords, ","),
					QualityScore: chunk.QualityScore,
					Industry:     doc.Industry,
					DocumentType: doc.DocumentType,
					Language:     doc.Language,
					ChunkText:    chunk.Text,
				},
			}
			if err := p.store.Upsert(gctx, p.opts.Namespace, []schema.VectorRecord{record}); err != nil {
				return fmt.Errorf("failed to store chunk %s: %w", chunk.ID, err)
			}
			if err := p.docs.MarkEmbedded(doc.ID, chunk.ID, chunk.ID); err != nil {
				return err
			}
			done <- chunk.ID
			return nil
		})
	}

	err := g.Wait()
	close(done)
	embedded := len(done)
	if err != nil {
		return embedded, err
	}
	return embedded, nil
}

// DeleteDocument removes a document from the registry and cascades the
// delete into the vector index. The DeleteByDocument sweep also covers
// vectors from a previous ingest of the same document id whose chunks are
// no longer registered.
func (p *IndexingPipeline) DeleteDocument(ctx context.Context, documentID string) error {
	chunkIDs := p.docs.Delete(documentID)
	if len(chunkIDs) > 0 {
		if err := p.store.DeleteByIDs(ctx, p.opts.Namespace, chunkIDs); err != nil {
			return fmt.Errorf("failed to delete vectors for document %s: %w", documentID, err)
		}
	}
	if err := p.store.DeleteByDocument(ctx, p.opts.Namespace, documentID); err != nil {
		return fmt.Errorf("failed to sweep vectors for document %s: %w", documentID, err)
	}
	p.log.WithPayload(map[string]interface{}{
		"document_id": documentID,
		"chunks":      len(chunkIDs),
	}).Info("document deleted")
	return nil
}

func validateIngest(req schema.IngestRequest) error {
	if strings.TrimSpace(req.Content) == "" {
		return ErrEmptyContent
	}
	if strings.TrimSpace(req.Title) == "" {
		return ErrEmptyTitle
	}
	if req.Language != schema.LanguageEnglish && req.Language != schema.LanguageHindi {
		return ErrBadLanguage
	}
	return nil
}

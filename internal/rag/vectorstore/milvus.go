package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"ReckonAssist/internal/database/milvus"
	"ReckonAssist/internal/rag/interfaces"
	"ReckonAssist/internal/rag/schema"
	"ReckonAssist/pkg/logger"
)

// keywordPlaceholderScore is assigned to keyword-pass matches, which have
// no vector similarity of their own.
const keywordPlaceholderScore = 0.5

var outputFields = []string{
	milvus.FieldChunkID,
	milvus.FieldDocumentID,
	milvus.FieldChunkIndex,
	milvus.FieldSectionTitle,
	milvus.FieldKeywords,
	milvus.FieldQualityScore,
	milvus.FieldIndustry,
	milvus.FieldDocumentType,
	milvus.FieldLanguage,
	milvus.FieldChunkText,
}

// MilvusStore implements the VectorStore interface on a Milvus collection.
// A namespace maps to a Milvus partition, so one deployment can keep
// several isolated datasets in the same collection.
type MilvusStore struct {
	log        *logger.Logger
	client     client.Client
	collection string
}

// NewMilvusStore creates a store backed by an existing Milvus connection.
func NewMilvusStore(mc *milvus.Client, log *logger.Logger) (*MilvusStore, error) {
	if mc == nil || mc.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	return &MilvusStore{
		log:        log,
		client:     mc.Client,
		collection: mc.Collection,
	}, nil
}

// Upsert writes the records into the namespace partition. An existing id
// is replaced entirely, vector and metadata both.
func (s *MilvusStore) Upsert(ctx context.Context, namespace string, records []schema.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	ids := make([]string, n)
	vectors := make([][]float32, n)
	chunkIDs := make([]string, n)
	documentIDs := make([]string, n)
	chunkIndexes := make([]int64, n)
	sectionTitles := make([]string, n)
	keywords := make([]string, n)
	qualityScores := make([]float64, n)
	industries := make([]string, n)
	documentTypes := make([]string, n)
	languages := make([]string, n)
	chunkTexts := make([]string, n)

	dim := 0
	for i, rec := range records {
		ids[i] = rec.ID
		vectors[i] = rec.Vector
		if len(rec.Vector) > dim {
			dim = len(rec.Vector)
		}
		md := rec.Metadata
		chunkIDs[i] = md.ChunkID
		documentIDs[i] = md.DocumentID
		chunkIndexes[i] = md.ChunkIndex
		sectionTitles[i] = md.SectionTitle
		keywords[i] = md.Keywords
		qualityScores[i] = md.QualityScore
		industries[i] = md.Industry
		documentTypes[i] = md.DocumentType
		languages[i] = md.Language
		chunkTexts[i] = md.ChunkText
	}

	cols := []entity.Column{
		entity.NewColumnVarChar(milvus.FieldID, ids),
		entity.NewColumnFloatVector(milvus.FieldEmbedding, dim, vectors),
		entity.NewColumnVarChar(milvus.FieldChunkID, chunkIDs),
		entity.NewColumnVarChar(milvus.FieldDocumentID, documentIDs),
		entity.NewColumnInt64(milvus.FieldChunkIndex, chunkIndexes),
		entity.NewColumnVarChar(milvus.FieldSectionTitle, sectionTitles),
		entity.NewColumnVarChar(milvus.FieldKeywords, keywords),
		entity.NewColumnDouble(milvus.FieldQualityScore, qualityScores),
		entity.NewColumnVarChar(milvus.FieldIndustry, industries),
		entity.NewColumnVarChar(milvus.FieldDocumentType, documentTypes),
		entity.NewColumnVarChar(milvus.FieldLanguage, languages),
		entity.NewColumnVarChar(milvus.FieldChunkText, chunkTexts),
	}

	s.log.Debug(fmt.Sprintf("Upserting %d vectors into %s/%s", n, s.collection, namespace))
	if _, err := s.client.Upsert(ctx, s.collection, namespace, cols...); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

// Query runs a cosine similarity search constrained by the metadata filter.
func (s *MilvusStore) Query(ctx context.Context, namespace string, vector []float32, topK int, filter schema.SearchFilter) ([]schema.VectorMatch, error) {
	expr := BuildFilterExpression(filter)

	sp, err := entity.NewIndexIvfFlatSearchParam(10)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	results, err := s.client.Search(
		ctx, s.collection, []string{namespace}, expr, outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		milvus.FieldEmbedding, entity.COSINE, topK, sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	var matches []schema.VectorMatch
	for _, res := range results {
		decoded, err := decodeSearchResult(res)
		if err != nil {
			s.log.Warn(fmt.Sprintf("Skipping malformed search result: %v", err))
			continue
		}
		matches = append(matches, decoded...)
	}
	return matches, nil
}

// KeywordQuery returns chunks whose text contains every term. Matches carry
// a placeholder score; real ranking happens in the hybrid blend.
func (s *MilvusStore) KeywordQuery(ctx context.Context, namespace string, terms []string, topK int, filter schema.SearchFilter) ([]schema.VectorMatch, error) {
	expr := BuildKeywordExpression(terms, filter)
	if expr == "" {
		return nil, nil
	}

	rs, err := s.client.Query(ctx, s.collection, []string{namespace}, expr, outputFields, client.WithLimit(int64(topK)))
	if err != nil {
		return nil, fmt.Errorf("failed to run keyword query: %w", err)
	}

	matches := decodeResultSet(rs)
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteByIDs removes the given vector ids from the namespace.
func (s *MilvusStore) DeleteByIDs(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", sanitize(id))
	}
	expr := fmt.Sprintf("%s in [%s]", milvus.FieldID, strings.Join(quoted, ", "))
	if err := s.client.Delete(ctx, s.collection, namespace, expr); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

// DeleteByDocument removes every vector belonging to the document, the
// cascade half of document deletion.
func (s *MilvusStore) DeleteByDocument(ctx context.Context, namespace string, documentID string) error {
	expr := fmt.Sprintf("%s == %q", milvus.FieldDocumentID, sanitize(documentID))
	if err := s.client.Delete(ctx, s.collection, namespace, expr); err != nil {
		return fmt.Errorf("failed to delete document vectors: %w", err)
	}
	return nil
}

// BuildFilterExpression compiles a SearchFilter into a Milvus boolean
// expression. Zero-valued fields contribute no condition.
func BuildFilterExpression(filter schema.SearchFilter) string {
	var conditions []string

	if len(filter.DocumentTypes) > 0 {
		conditions = append(conditions, inCondition(milvus.FieldDocumentType, filter.DocumentTypes))
	}
	if len(filter.Industries) > 0 {
		conditions = append(conditions, inCondition(milvus.FieldIndustry, filter.Industries))
	}
	if filter.Language != "" {
		conditions = append(conditions, fmt.Sprintf("%s == %q", milvus.FieldLanguage, sanitize(filter.Language)))
	}
	if filter.MinQuality > 0 {
		conditions = append(conditions, fmt.Sprintf("%s >= %v", milvus.FieldQualityScore, filter.MinQuality))
	}

	return strings.Join(conditions, " and ")
}

// BuildKeywordExpression compiles the keyword pass: the chunk text must
// contain every term, combined with the metadata filter. Returns "" when no
// usable term remains after sanitizing.
func BuildKeywordExpression(terms []string, filter schema.SearchFilter) string {
	var conditions []string
	for _, term := range terms {
		term = sanitizeTerm(term)
		if term == "" {
			continue
		}
		conditions = append(conditions, fmt.Sprintf("%s like \"%%%s%%\"", milvus.FieldChunkText, term))
	}
	if len(conditions) == 0 {
		return ""
	}
	if metaExpr := BuildFilterExpression(filter); metaExpr != "" {
		conditions = append(conditions, metaExpr)
	}
	return strings.Join(conditions, " and ")
}

func inCondition(field string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", sanitize(v))
	}
	return fmt.Sprintf("%s in [%s]", field, strings.Join(quoted, ", "))
}

// sanitize strips expression metacharacters from a filter value.
func sanitize(v string) string {
	return strings.NewReplacer(`"`, "", `\`, "").Replace(v)
}

func sanitizeTerm(term string) string {
	return strings.NewReplacer(`"`, "", `\`, "", "%", "", "_", "").Replace(strings.TrimSpace(term))
}

func decodeSearchResult(res client.SearchResult) ([]schema.VectorMatch, error) {
	find := func(name string) entity.Column {
		for _, field := range res.Fields {
			if field.Name() == name {
				return field
			}
		}
		return nil
	}

	chunkIDCol, ok := find(milvus.FieldChunkID).(*entity.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("search result is missing the %s field", milvus.FieldChunkID)
	}

	matches := make([]schema.VectorMatch, 0, res.ResultCount)
	for i := 0; i < res.ResultCount; i++ {
		md := schema.VectorMetadata{
			ChunkID:      chunkIDCol.Data()[i],
			DocumentID:   varcharAt(find(milvus.FieldDocumentID), i),
			ChunkIndex:   int64At(find(milvus.FieldChunkIndex), i),
			SectionTitle: varcharAt(find(milvus.FieldSectionTitle), i),
			Keywords:     varcharAt(find(milvus.FieldKeywords), i),
			QualityScore: doubleAt(find(milvus.FieldQualityScore), i),
			Industry:     varcharAt(find(milvus.FieldIndustry), i),
			DocumentType: varcharAt(find(milvus.FieldDocumentType), i),
			Language:     varcharAt(find(milvus.FieldLanguage), i),
			ChunkText:    varcharAt(find(milvus.FieldChunkText), i),
		}
		matches = append(matches, schema.VectorMatch{
			ID:       md.ChunkID,
			Score:    ClampScore(float64(res.Scores[i])),
			Metadata: md,
		})
	}
	return matches, nil
}

func decodeResultSet(rs client.ResultSet) []schema.VectorMatch {
	chunkIDs := varcharData(rs.GetColumn(milvus.FieldChunkID))
	matches := make([]schema.VectorMatch, 0, len(chunkIDs))
	for i := range chunkIDs {
		md := schema.VectorMetadata{
			ChunkID:      chunkIDs[i],
			DocumentID:   varcharAt(rs.GetColumn(milvus.FieldDocumentID), i),
			ChunkIndex:   int64At(rs.GetColumn(milvus.FieldChunkIndex), i),
			SectionTitle: varcharAt(rs.GetColumn(milvus.FieldSectionTitle), i),
			Keywords:     varcharAt(rs.GetColumn(milvus.FieldKeywords), i),
			QualityScore: doubleAt(rs.GetColumn(milvus.FieldQualityScore), i),
			Industry:     varcharAt(rs.GetColumn(milvus.FieldIndustry), i),
			DocumentType: varcharAt(rs.GetColumn(milvus.FieldDocumentType), i),
			Language:     varcharAt(rs.GetColumn(milvus.FieldLanguage), i),
			ChunkText:    varcharAt(rs.GetColumn(milvus.FieldChunkText), i),
		}
		matches = append(matches, schema.VectorMatch{
			ID:       md.ChunkID,
			Score:    keywordPlaceholderScore,
			Metadata: md,
		})
	}
	return matches
}

// ClampScore maps a raw cosine score into [0,1]. Milvus COSINE scores live
// in [-1,1]; everything below zero is noise for ranking purposes.
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func varcharData(col entity.Column) []string {
	if c, ok := col.(*entity.ColumnVarChar); ok {
		return c.Data()
	}
	return nil
}

func varcharAt(col entity.Column, i int) string {
	if c, ok := col.(*entity.ColumnVarChar); ok && i < len(c.Data()) {
		return c.Data()[i]
	}
	return ""
}

func int64At(col entity.Column, i int) int64 {
	if c, ok := col.(*entity.ColumnInt64); ok && i < len(c.Data()) {
		return c.Data()[i]
	}
	return 0
}

func doubleAt(col entity.Column, i int) float64 {
	if c, ok := col.(*entity.ColumnDouble); ok && i < len(c.Data()) {
		return c.Data()[i]
	}
	return 0
}

var _ interfaces.VectorStore = (*MilvusStore)(nil)

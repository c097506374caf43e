package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"ReckonAssist/internal/config"
	"ReckonAssist/pkg/logger"
)

// Field names of the knowledge collection. These are part of the index's
// compatibility surface; renaming one is a data migration.
const (
	FieldID           = "id"
	FieldEmbedding    = "embedding"
	FieldChunkID      = "chunk_id"
	FieldDocumentID   = "document_id"
	FieldChunkIndex   = "chunk_index"
	FieldSectionTitle = "section_title"
	FieldKeywords     = "keywords"
	FieldQualityScore = "quality_score"
	FieldIndustry     = "industry"
	FieldDocumentType = "document_type"
	FieldLanguage     = "language"
	FieldChunkText    = "chunk_text"
)

// Client wraps the Milvus SDK client together with the collection settings.
// It is constructor-injected wherever Milvus access is needed; there is no
// package-level singleton.
type Client struct {
	Client     client.Client
	Collection string
	Dimension  int
	log        *logger.Logger
}

// Connect dials Milvus and ensures the knowledge collection, its index and
// initial load are in place.
func Connect(ctx context.Context, cfg *config.MilvusConfig, log *logger.Logger) (*Client, error) {
	c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", cfg.Address, err)
	}

	mc := &Client{
		Client:     c,
		Collection: cfg.CollectionName,
		Dimension:  cfg.Dimension,
		log:        log,
	}
	if err := mc.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	log.Info(fmt.Sprintf("Connected to Milvus, collection %q ready", cfg.CollectionName))
	return mc, nil
}

func (c *Client) ensureCollection(ctx context.Context) error {
	has, err := c.Client.HasCollection(ctx, c.Collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", c.Collection, err)
	}

	if !has {
		schema := entity.NewSchema().
			WithName(c.Collection).
			WithDescription("ReckonSales support knowledge base").
			WithField(entity.NewField().WithName(FieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(FieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(c.Dimension))).
			WithField(entity.NewField().WithName(FieldChunkID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
			WithField(entity.NewField().WithName(FieldDocumentID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
			WithField(entity.NewField().WithName(FieldChunkIndex).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(FieldSectionTitle).WithDataType(entity.FieldTypeVarChar).WithMaxLength(512)).
			WithField(entity.NewField().WithName(FieldKeywords).WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
			WithField(entity.NewField().WithName(FieldQualityScore).WithDataType(entity.FieldTypeDouble)).
			WithField(entity.NewField().WithName(FieldIndustry).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
			WithField(entity.NewField().WithName(FieldDocumentType).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
			WithField(entity.NewField().WithName(FieldLanguage).WithDataType(entity.FieldTypeVarChar).WithMaxLength(8)).
			WithField(entity.NewField().WithName(FieldChunkText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192))

		if err := c.Client.CreateCollection(ctx, schema, 1); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", c.Collection, err)
		}

		index, err := entity.NewIndexIvfFlat(entity.COSINE, 128)
		if err != nil {
			return fmt.Errorf("failed to build index definition: %w", err)
		}
		if err := c.Client.CreateIndex(ctx, c.Collection, FieldEmbedding, index, false); err != nil {
			return fmt.Errorf("failed to create vector index: %w", err)
		}
	}

	if err := c.Client.LoadCollection(ctx, c.Collection, false); err != nil {
		return fmt.Errorf("failed to load collection %s: %w", c.Collection, err)
	}
	return nil
}

// EnsurePartition creates the namespace partition if it does not exist.
func (c *Client) EnsurePartition(ctx context.Context, partition string) error {
	has, err := c.Client.HasPartition(ctx, c.Collection, partition)
	if err != nil {
		return fmt.Errorf("failed to check partition %s: %w", partition, err)
	}
	if has {
		return nil
	}
	if err := c.Client.CreatePartition(ctx, c.Collection, partition); err != nil {
		return fmt.Errorf("failed to create partition %s: %w", partition, err)
	}
	return nil
}

// HealthCheck verifies the connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("milvus health check failed: %w", err)
	}
	return nil
}

// Close shuts down the connection.
func (c *Client) Close() {
	if c.Client != nil {
		c.Client.Close()
		c.log.Info("Milvus connection closed")
	}
}

package embeddings

import (
	"context"
	"fmt"
	"math"

	"ReckonAssist/internal/rag/interfaces"
	"ReckonAssist/internal/rag/schema"
	"ReckonAssist/pkg/logger"
)

// Role distinguishes query and passage embeddings. Role-aware models such
// as the bge family perform measurably better with the matching prefix.
type Role int

const (
	RoleQuery Role = iota
	RolePassage
)

func (r Role) prefix() string {
	if r == RoleQuery {
		return "query: "
	}
	return "passage: "
}

// Source tags where a vector came from, so downstream quality-aware logic
// can discount fallback-origin vectors without inspecting magic values.
type Source int

const (
	SourcePrimary Source = iota
	SourceFallback
)

func (s Source) String() string {
	if s == SourcePrimary {
		return "primary"
	}
	return "fallback"
}

// Outcome is the tagged result of an embed call. Vectors leave the provider
// already unit-norm, so Normalized is always true on success.
type Outcome struct {
	Vector schema.EmbeddingVector
	Source Source
}

// Provider wraps a remote embedding model with role prefixing, input
// truncation, dimension validation, L2 normalization, and a deterministic
// local fallback. Embed fails only if both paths fail, which for the hash
// fallback means never in practice.
type Provider struct {
	primary       interfaces.EmbeddingModel // nil means fallback-only
	dimension     int
	contextLength int // character budget before truncation
	log           *logger.Logger
}

// NewProvider creates a Provider. primary may be nil to force the
// deterministic fallback, which is useful in tests and offline deployments.
func NewProvider(primary interfaces.EmbeddingModel, dimension, contextLength int, log *logger.Logger) *Provider {
	return &Provider{
		primary:       primary,
		dimension:     dimension,
		contextLength: contextLength,
		log:           log,
	}
}

// Dimension returns the provider's fixed vector dimension.
func (p *Provider) Dimension() int {
	return p.dimension
}

// Embed turns text into a unit-norm vector of the provider's dimension.
// Any primary-path failure (network error, wrong shape, zero vector) falls
// back to the deterministic hash vector.
func (p *Provider) Embed(ctx context.Context, text string, role Role) (Outcome, error) {
	truncated := truncate(text, p.contextLength)
	prefixed := role.prefix() + truncated

	if p.primary != nil {
		vec, err := p.primary.Embed(ctx, prefixed)
		switch {
		case err != nil:
			p.log.Warn(fmt.Sprintf("Primary embedding failed, using fallback: %v", err))
		case len(vec) != p.dimension:
			p.log.Warn(fmt.Sprintf("Primary embedding returned %d dimensions, expected %d, using fallback", len(vec), p.dimension))
		case isZero(vec):
			p.log.Warn("Primary embedding returned a zero vector, using fallback")
		default:
			Normalize(vec)
			return Outcome{Vector: wrap(vec, p.dimension), Source: SourcePrimary}, nil
		}
	}

	vec := FallbackVector(prefixed, p.dimension)
	if vec == nil || isZero(vec) {
		return Outcome{}, fmt.Errorf("embedding failed for both primary and fallback paths")
	}
	return Outcome{Vector: wrap(vec, p.dimension), Source: SourceFallback}, nil
}

func wrap(vec []float32, dimension int) schema.EmbeddingVector {
	return schema.EmbeddingVector{
		Dimension:  dimension,
		Values:     vec,
		Normalized: true,
	}
}

// Normalize scales the vector to unit L2 norm in place. Zero vectors are
// left untouched.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// truncate limits text to the model's context budget, in characters.
func truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"ReckonAssist/internal/rag/interfaces"
	"ReckonAssist/internal/rag/schema"
	"ReckonAssist/pkg/logger"
)

// RedisAnswerCache caches full responses keyed by query and filters.
// Cache faults degrade to a miss; the pipeline works identically without it.
type RedisAnswerCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisAnswerCache creates a cache on an existing Redis client.
func NewRedisAnswerCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisAnswerCache {
	return &RedisAnswerCache{client: client, ttl: ttl, log: log}
}

// CacheKey derives a stable key from the query request.
func CacheKey(req schema.QueryRequest) string {
	raw := strings.Join([]string{
		req.Query,
		strings.Join(req.DocumentTypes, ","),
		strings.Join(req.Industries, ","),
		req.Language,
		fmt.Sprintf("%d:%v", req.TopK, req.MinConfidence),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return "answer:" + hex.EncodeToString(sum[:])
}

// Get returns the cached response for the key, if present and decodable.
func (c *RedisAnswerCache) Get(ctx context.Context, key string) (*schema.RAGResponse, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn(fmt.Sprintf("Answer cache read failed: %v", err))
		}
		return nil, false
	}

	var resp schema.RAGResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.log.Warn(fmt.Sprintf("Answer cache entry is corrupt, dropping: %v", err))
		c.client.Del(ctx, key)
		return nil, false
	}
	return &resp, true
}

// Set stores the response under the key with the configured TTL.
func (c *RedisAnswerCache) Set(ctx context.Context, key string, resp *schema.RAGResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.log.Warn(fmt.Sprintf("Failed to marshal response for cache: %v", err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn(fmt.Sprintf("Answer cache write failed: %v", err))
	}
}

var _ interfaces.AnswerCache = (*RedisAnswerCache)(nil)

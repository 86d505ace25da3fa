package indexing

import (
	"context"
	"errors"
	"time"

	"github.com/voxlane/voice-platform/pkg/redis"
)

// pipelineCacheTTL bounds staleness if a pipeline is recreated vendor-side.
const pipelineCacheTTL = 24 * time.Hour

// PipelineCache caches agent-to-pipeline id mappings in Redis so repeated
// document and query operations skip the vendor lookup. Safe across
// instances because the id is derived from vendor state, not local state.
type PipelineCache struct {
	redis  redis.RedisServiceInterface
	client *Client
}

// NewPipelineCache creates a new pipeline cache
func NewPipelineCache(redisService redis.RedisServiceInterface, client *Client) *PipelineCache {
	return &PipelineCache{redis: redisService, client: client}
}

// PipelineFor returns the pipeline id for an agent, consulting the cache
// before the vendor.
func (c *PipelineCache) PipelineFor(ctx context.Context, agentID string) (string, error) {
	key := c.redis.GenerateKey(redis.PIPELINE_CACHE, agentID)

	cached, err := c.redis.GetValue(ctx, key)
	if err == nil && cached != "" {
		return cached, nil
	}
	if err != nil && !errors.Is(err, redis.ErrKeyNotExist) {
		// Cache trouble is not fatal, fall through to the vendor.
		cached = ""
	}

	pipelineID, err := c.client.EnsurePipeline(ctx, agentID)
	if err != nil {
		return "", err
	}

	// Best effort, a failed cache write just costs the next lookup.
	_ = c.redis.SetValue(ctx, key, pipelineID, pipelineCacheTTL)

	return pipelineID, nil
}

// Invalidate drops the cached pipeline id for an agent.
func (c *PipelineCache) Invalidate(ctx context.Context, agentID string) {
	_ = c.redis.DelValue(ctx, c.redis.GenerateKey(redis.PIPELINE_CACHE, agentID))
}

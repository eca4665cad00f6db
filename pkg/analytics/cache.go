package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fitsnap/pipewatch/pkg/observability"
	"github.com/go-redis/redis/v8"
)

// SummaryCache is a short-TTL Redis cache for summary responses. Dashboards
// poll aggressively; rollups only change once per aggregation tick, so a
// brief TTL absorbs most of the read traffic. Cache failures are logged and
// treated as misses.
type SummaryCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *observability.Logger
}

// NewSummaryCache creates a cache over an existing Redis client.
func NewSummaryCache(client *redis.Client, ttl time.Duration, logger *observability.Logger) *SummaryCache {
	return &SummaryCache{
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}
}

func summaryKey(timeRange string) string {
	return fmt.Sprintf("pipewatch:summary:%s", timeRange)
}

// Get returns the cached summary for a normalized time range, if present.
func (c *SummaryCache) Get(ctx context.Context, timeRange string) (*Summary, bool) {
	data, err := c.redis.Get(ctx, summaryKey(timeRange)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("summary cache read failed")
		}
		return nil, false
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		c.logger.WithError(err).Warn("summary cache entry corrupt, ignoring")
		return nil, false
	}
	return &summary, true
}

// Set stores a summary under its normalized time range.
func (c *SummaryCache) Set(ctx context.Context, timeRange string, summary *Summary) {
	data, err := json.Marshal(summary)
	if err != nil {
		c.logger.WithError(err).Warn("summary cache encode failed")
		return
	}
	if err := c.redis.Set(ctx, summaryKey(timeRange), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("summary cache write failed")
	}
}

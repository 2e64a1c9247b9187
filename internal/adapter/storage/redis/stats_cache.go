package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wildlife-governance/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// StatsCache implements ports.StatsCache as a single JSON value.
type StatsCache struct {
	client goredis.Cmdable
}

func NewStatsCache(client goredis.Cmdable) *StatsCache {
	return &StatsCache{client: client}
}

func (c *StatsCache) Get(ctx context.Context) (*ports.GovernanceStats, error) {
	raw, err := c.client.Get(ctx, prefixStats).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis stats get: %w", err)
	}
	var stats ports.GovernanceStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("decode cached stats: %w", err)
	}
	return &stats, nil
}

func (c *StatsCache) Set(ctx context.Context, stats *ports.GovernanceStats, ttl time.Duration) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := c.client.Set(ctx, prefixStats, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis stats set: %w", err)
	}
	return nil
}

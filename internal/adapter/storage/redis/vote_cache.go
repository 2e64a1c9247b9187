package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// VoteCache implements ports.VoteCache with one SET NX key per ballot.
type VoteCache struct {
	client goredis.Cmdable
}

// NewVoteCache creates a Redis-backed vote cache.
func NewVoteCache(client goredis.Cmdable) *VoteCache {
	return &VoteCache{client: client}
}

func voteKey(projectID int64, voter string) string {
	return prefixVoted + strconv.FormatInt(projectID, 10) + ":" + voter
}

// MarkVoted records a committed ballot. It returns false if the ballot was already recorded.
func (c *VoteCache) MarkVoted(ctx context.Context, projectID int64, voter string, ttl time.Duration) (bool, error) {
	result, err := c.client.SetArgs(ctx, voteKey(projectID, voter), 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis mark voted: %w", err)
	}
	return result == "OK", nil
}

// HasVoted reports whether a ballot is cached. A miss says nothing; callers fall back to the database.
func (c *VoteCache) HasVoted(ctx context.Context, projectID int64, voter string) (bool, error) {
	n, err := c.client.Exists(ctx, voteKey(projectID, voter)).Result()
	if err != nil {
		return false, fmt.Errorf("redis has voted: %w", err)
	}
	return n == 1, nil
}

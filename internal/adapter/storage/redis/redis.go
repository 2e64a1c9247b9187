package redis

import (
	"context"
	"fmt"

	"wildlife-governance/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Key prefixes. Every key this package writes starts with one of these.
const (
	prefixIdempotency = "wld:idempotency:"
	prefixVoted       = "wld:voted:"
	prefixStats       = "wld:stats"
	prefixRateLimit   = "wld:ratelimit:"
)

// NewClient creates a Redis client and verifies connectivity. The startup
// ping gets a few op timeouts of slack before Redis is declared unreachable.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	opts := &goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.OpTimeout > 0 {
		opts.ReadTimeout = cfg.OpTimeout
		opts.WriteTimeout = cfg.OpTimeout
	}
	client := goredis.NewClient(opts)

	pingCtx := ctx
	if cfg.OpTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, 4*cfg.OpTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr(), err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Int("pool_size", client.Options().PoolSize).
		Dur("op_timeout", cfg.OpTimeout).
		Msg("Redis connection established")

	return client, nil
}

// Health reports whether Redis answers PING. The caches degrade to the
// primary store when it does not, so an unhealthy Redis is not fatal.
type Health struct {
	client goredis.Cmdable
}

func NewHealth(client goredis.Cmdable) *Health {
	return &Health{client: client}
}

func (h *Health) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

func (h *Health) Name() string { return "redis" }

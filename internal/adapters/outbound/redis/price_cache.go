// Package redis provides a Redis implementation of the PriceUpdateCache port,
// so price updates fetched by one process can be reused by others within
// their TTL. Keys have the form prefix:chainID:feedID.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/redis/go-redis/v9"

	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

var _ outbound.PriceUpdateCache = (*PriceUpdateCache)(nil)

type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr     string
	Password string
	DB       int

	// KeyPrefix is prepended to all cache keys
	KeyPrefix string

	// ChainID namespaces keys per network.
	ChainID int64
}

func ConfigDefaults() Config {
	return Config{
		Addr:      "localhost:6379",
		KeyPrefix: "snx:pyth",
	}
}

type PriceUpdateCache struct {
	client    *redis.Client
	keyPrefix string
	chainID   int64
	logger    *slog.Logger
}

func NewPriceUpdateCache(cfg Config, logger *slog.Logger) (*PriceUpdateCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if logger == nil {
		logger = slog.Default()
	}

	return &PriceUpdateCache{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		chainID:   cfg.ChainID,
		logger:    logger.With("component", "redis-price-cache"),
	}, nil
}

// Ping checks the Redis connection.
func (c *PriceUpdateCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *PriceUpdateCache) Close() error {
	return c.client.Close()
}

func (c *PriceUpdateCache) key(feedID [32]byte) string {
	return fmt.Sprintf("%s:%d:%s", c.keyPrefix, c.chainID, hexutil.Encode(feedID[:]))
}

func (c *PriceUpdateCache) Get(ctx context.Context, feedID [32]byte) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key(feedID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get price update: %w", err)
	}
	return data, true, nil
}

func (c *PriceUpdateCache) Set(ctx context.Context, feedID [32]byte, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		if err := c.client.Del(ctx, c.key(feedID)).Err(); err != nil {
			return fmt.Errorf("failed to delete price update: %w", err)
		}
		return nil
	}
	if err := c.client.Set(ctx, c.key(feedID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache price update: %w", err)
	}
	return nil
}

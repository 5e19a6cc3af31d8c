// Package price_feed serves Pyth price updates to the oracle fulfillment
// engine, reusing recently fetched payloads from a cache.
package price_feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

var _ outbound.FreshPriceUpdateProvider = (*Service)(nil)

type Config struct {
	ChainID int64

	// CacheTTL is how long a fetched payload is reused. Zero disables caching.
	CacheTTL time.Duration

	Logger *slog.Logger
}

func ConfigDefaults() Config {
	return Config{
		ChainID:  10,
		CacheTTL: 2 * time.Second,
		Logger:   slog.Default(),
	}
}

// Service decorates an upstream PriceUpdateProvider with a per-feed cache.
// A request is served from cache where possible and the remaining feeds are
// fetched in a single upstream call.
type Service struct {
	chainID  int64
	ttl      time.Duration
	upstream outbound.PriceUpdateProvider
	cache    outbound.PriceUpdateCache
	metrics  outbound.MetricsRecorder
	logger   *slog.Logger
}

// NewService creates the service. cache and metrics may be nil.
func NewService(config Config, upstream outbound.PriceUpdateProvider, cache outbound.PriceUpdateCache, metrics outbound.MetricsRecorder) (*Service, error) {
	if upstream == nil {
		return nil, fmt.Errorf("upstream price provider is required")
	}
	if config.CacheTTL < 0 {
		return nil, fmt.Errorf("cache TTL must not be negative, got %s", config.CacheTTL)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Service{
		chainID:  config.ChainID,
		ttl:      config.CacheTTL,
		upstream: upstream,
		cache:    cache,
		metrics:  metrics,
		logger:   config.Logger.With("component", "price-feed-service"),
	}, nil
}

func (s *Service) cachingEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

// GetFeedsData returns one payload per feed id, in request order.
func (s *Service) GetFeedsData(ctx context.Context, feedIDs [][32]byte) ([][]byte, error) {
	return s.feedsData(ctx, feedIDs, s.ttl)
}

// GetFreshFeedsData is GetFeedsData for a consumer that rejects payloads
// older than maxAge. Cached entries can be up to CacheTTL old, so a shorter
// maxAge bypasses the cache. Fetched payloads are still cached.
func (s *Service) GetFreshFeedsData(ctx context.Context, feedIDs [][32]byte, maxAge time.Duration) ([][]byte, error) {
	return s.feedsData(ctx, feedIDs, maxAge)
}

func (s *Service) feedsData(ctx context.Context, feedIDs [][32]byte, maxAge time.Duration) ([][]byte, error) {
	payloads := make([][]byte, len(feedIDs))
	if len(feedIDs) == 0 {
		return payloads, nil
	}
	useCache := s.cachingEnabled() && maxAge >= s.ttl

	// Positions of each feed still needed, keyed by id so duplicates are fetched once.
	pending := make(map[[32]byte][]int)
	var missing [][32]byte
	hits := 0

	for i, id := range feedIDs {
		if positions, seen := pending[id]; seen {
			pending[id] = append(positions, i)
			continue
		}
		if !useCache {
			pending[id] = []int{i}
			missing = append(missing, id)
			continue
		}
		if payload, ok := s.lookup(ctx, id); ok {
			payloads[i] = payload
			hits++
			continue
		}
		pending[id] = []int{i}
		missing = append(missing, id)
	}

	if s.metrics != nil && useCache {
		s.metrics.RecordCacheLookup(ctx, hits, len(feedIDs)-hits)
	}

	if len(missing) == 0 {
		return payloads, nil
	}

	fetched, err := s.fetch(ctx, missing)
	if err != nil {
		return nil, err
	}

	for j, id := range missing {
		for _, i := range pending[id] {
			payloads[i] = fetched[j]
		}
		s.store(ctx, id, fetched[j])
	}
	return payloads, nil
}

// GetTokensData fetches updates for token symbols using the network's feed table.
func (s *Service) GetTokensData(ctx context.Context, symbols []string) ([][]byte, error) {
	ids, err := FeedIDs(s.chainID, symbols)
	if err != nil {
		return nil, err
	}
	return s.GetFeedsData(ctx, ids)
}

func (s *Service) fetch(ctx context.Context, ids [][32]byte) ([][]byte, error) {
	start := time.Now()
	fetched, err := s.upstream.GetFeedsData(ctx, ids)
	if err == nil && len(fetched) != len(ids) {
		err = fmt.Errorf("price service returned %d updates for %d feeds", len(fetched), len(ids))
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.RecordUpstreamFetch(ctx, len(ids), time.Since(start), status)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("fetched price updates", "feeds", len(ids), "duration", time.Since(start))
	return fetched, nil
}

// lookup treats cache errors as misses; the upstream remains authoritative.
func (s *Service) lookup(ctx context.Context, id [32]byte) ([]byte, bool) {
	payload, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Warn("price cache lookup failed", "feedID", fmt.Sprintf("%x", id), "error", err)
		return nil, false
	}
	return payload, ok
}

func (s *Service) store(ctx context.Context, id [32]byte, payload []byte) {
	if !s.cachingEnabled() {
		return
	}
	if err := s.cache.Set(ctx, id, payload, s.ttl); err != nil {
		s.logger.Warn("price cache store failed", "feedID", fmt.Sprintf("%x", id), "error", err)
	}
}

package outbound

import (
	"context"
	"time"
)

// PriceUpdateCache stores recently fetched price-update payloads keyed by feed id.
type PriceUpdateCache interface {
	// Get returns the cached payload for a feed, and whether it was present.
	Get(ctx context.Context, feedID [32]byte) ([]byte, bool, error)

	// Set stores a payload for a feed. It expires after ttl.
	Set(ctx context.Context, feedID [32]byte, payload []byte, ttl time.Duration) error

	// Close releases any underlying connection.
	Close() error
}

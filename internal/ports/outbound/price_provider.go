package outbound

import (
	"context"
	"time"
)

// PriceUpdateProvider fetches signed price-update payloads from an off-chain price service.
type PriceUpdateProvider interface {
	// GetFeedsData returns one opaque payload per feed id, in the order requested.
	GetFeedsData(ctx context.Context, feedIDs [][32]byte) ([][]byte, error)
}

// FreshPriceUpdateProvider is implemented by providers that keep payloads
// around. GetFreshFeedsData only serves payloads fetched within maxAge.
type FreshPriceUpdateProvider interface {
	PriceUpdateProvider
	GetFreshFeedsData(ctx context.Context, feedIDs [][32]byte, maxAge time.Duration) ([][]byte, error)
}

// SettlementDataProvider resolves an off-chain settlement URL into the
// price update payload it serves.
type SettlementDataProvider interface {
	GetSettlementData(ctx context.Context, url string) ([]byte, error)
}

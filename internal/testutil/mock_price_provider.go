package testutil

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockPriceProvider implements outbound.PriceUpdateProvider for testing.
type MockPriceProvider struct {
	mu         sync.Mutex
	GetFeedsFn func(ctx context.Context, feedIDs [][32]byte) ([][]byte, error)
	Requests   [][][32]byte
}

func (m *MockPriceProvider) GetFeedsData(ctx context.Context, feedIDs [][32]byte) ([][]byte, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, append([][32]byte(nil), feedIDs...))
	m.mu.Unlock()
	if m.GetFeedsFn != nil {
		return m.GetFeedsFn(ctx, feedIDs)
	}
	return nil, errors.New("GetFeedsData not mocked")
}

// CallCount returns the number of fetches made.
func (m *MockPriceProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// EchoPayloads returns a provider whose payload for each feed is the feed id
// prefixed with "vaa-".
func EchoPayloads() *MockPriceProvider {
	return &MockPriceProvider{
		GetFeedsFn: func(_ context.Context, feedIDs [][32]byte) ([][]byte, error) {
			out := make([][]byte, len(feedIDs))
			for i, id := range feedIDs {
				out[i] = append([]byte("vaa-"), id[:]...)
			}
			return out, nil
		},
	}
}

// MockFreshPriceProvider is a MockPriceProvider that also honours a maximum
// payload age. Every maxAge it is asked for is recorded.
type MockFreshPriceProvider struct {
	MockPriceProvider
	MaxAges []time.Duration
}

func (m *MockFreshPriceProvider) GetFreshFeedsData(ctx context.Context, feedIDs [][32]byte, maxAge time.Duration) ([][]byte, error) {
	m.mu.Lock()
	m.MaxAges = append(m.MaxAges, maxAge)
	m.mu.Unlock()
	return m.GetFeedsData(ctx, feedIDs)
}

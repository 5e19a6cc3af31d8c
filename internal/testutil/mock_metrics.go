package testutil

import (
	"context"
	"sync"
	"time"
)

// MockMetricsRecorder implements outbound.MetricsRecorder, accumulating totals.
type MockMetricsRecorder struct {
	mu           sync.Mutex
	Hits         int
	Misses       int
	Fetches      int
	FetchedFeeds int
	Statuses     []string
}

func (m *MockMetricsRecorder) RecordCacheLookup(_ context.Context, hits, misses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Hits += hits
	m.Misses += misses
}

func (m *MockMetricsRecorder) RecordUpstreamFetch(_ context.Context, feeds int, _ time.Duration, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fetches++
	m.FetchedFeeds += feeds
	m.Statuses = append(m.Statuses, status)
}

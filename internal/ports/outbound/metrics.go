package outbound

import (
	"context"
	"time"
)

// MetricsRecorder records price feed metrics without depending on a
// specific telemetry implementation.
type MetricsRecorder interface {
	// RecordCacheLookup records how many requested feeds were served from
	// cache and how many had to be fetched.
	RecordCacheLookup(ctx context.Context, hits, misses int)

	// RecordUpstreamFetch records one call to the price service.
	RecordUpstreamFetch(ctx context.Context, feeds int, duration time.Duration, status string)
}

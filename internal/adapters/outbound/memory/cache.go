// cache.go provides an in-memory PriceUpdateCache.
//
// Entries expire lazily on read. All operations are thread-safe; data is lost
// on process restart. Use the redis adapter to share updates across processes.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

var _ outbound.PriceUpdateCache = (*PriceUpdateCache)(nil)

var ErrClosed = errors.New("cache is closed")

type entry struct {
	payload   []byte
	expiresAt time.Time
}

type PriceUpdateCache struct {
	mu      sync.RWMutex
	entries map[[32]byte]entry
	closed  bool
	now     func() time.Time
}

func NewPriceUpdateCache() *PriceUpdateCache {
	return &PriceUpdateCache{
		entries: make(map[[32]byte]entry),
		now:     time.Now,
	}
}

func (c *PriceUpdateCache) Get(_ context.Context, feedID [32]byte) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false, ErrClosed
	}
	e, ok := c.entries[feedID]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return append([]byte(nil), e.payload...), true, nil
}

func (c *PriceUpdateCache) Set(_ context.Context, feedID [32]byte, payload []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if ttl <= 0 {
		delete(c.entries, feedID)
		return nil
	}
	c.entries[feedID] = entry{
		payload:   append([]byte(nil), payload...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Purge drops expired entries and returns how many were removed.
func (c *PriceUpdateCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *PriceUpdateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *PriceUpdateCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.entries = nil
	return nil
}

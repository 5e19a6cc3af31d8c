package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

func TestNewPriceUpdateCache_CreatesWithConfig(t *testing.T) {
	cfg := Config{
		Addr:      "localhost:6379",
		Password:  "secret",
		DB:        1,
		KeyPrefix: "test",
		ChainID:   10,
	}

	cache, err := NewPriceUpdateCache(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cache.Close()

	if cache.keyPrefix != "test" || cache.chainID != 10 {
		t.Errorf("keyPrefix/chainID = %s/%d", cache.keyPrefix, cache.chainID)
	}
	if cache.client == nil || cache.logger == nil {
		t.Fatal("expected client and logger to be set")
	}
}

func TestNewPriceUpdateCache_EmptyAddrReturnsError(t *testing.T) {
	_, err := NewPriceUpdateCache(Config{}, nil)
	if err == nil || !strings.Contains(err.Error(), "redis address is required") {
		t.Fatalf("err = %v, want 'redis address is required'", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	defaults := ConfigDefaults()
	if defaults.Addr != "localhost:6379" {
		t.Errorf("Addr = %s, want localhost:6379", defaults.Addr)
	}
	if defaults.KeyPrefix != "snx:pyth" {
		t.Errorf("KeyPrefix = %s, want snx:pyth", defaults.KeyPrefix)
	}
}

func TestPriceUpdateCache_KeyFormat(t *testing.T) {
	cache, err := NewPriceUpdateCache(Config{Addr: "localhost:6379", KeyPrefix: "snx:pyth", ChainID: 420}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cache.Close()

	var id [32]byte
	id[31] = 0xab
	want := "snx:pyth:420:0x00000000000000000000000000000000000000000000000000000000000000ab"
	if got := cache.key(id); got != want {
		t.Errorf("key = %s, want %s", got, want)
	}

	var other [32]byte
	other[0] = 0xab
	if cache.key(other) == cache.key(id) {
		t.Error("distinct feed ids must map to distinct keys")
	}
}

func TestPriceUpdateCache_UnreachableServer(t *testing.T) {
	// Port 1 is never a Redis server; errors must surface, not read as misses.
	cache, err := NewPriceUpdateCache(Config{Addr: "127.0.0.1:1"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, ok, err := cache.Get(ctx, [32]byte{}); err == nil || ok {
		t.Errorf("Get = %v, %v; want error", ok, err)
	}
	if err := cache.Set(ctx, [32]byte{}, []byte("x"), time.Second); err == nil {
		t.Error("Set: expected error")
	}
}

func TestPriceUpdateCache_ImplementsInterface(t *testing.T) {
	cache, err := NewPriceUpdateCache(Config{Addr: "localhost:6379"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cache.Close()

	var _ outbound.PriceUpdateCache = cache
}

package cache

import (
	"testing"
	"time"
)

func TestTTLCacheSetAndGet(t *testing.T) {
	c := NewTTLCache[string, string](1*time.Second, 0, 10)
	defer c.Stop()

	c.Set("key", "value")

	if c.Count() != 1 {
		t.Fatalf("expected count 1, got %d", c.Count())
	}

	v, ok := c.Get("key")
	if !ok {
		t.Fatalf("expected to find key")
	}
	if v != "value" {
		t.Errorf("expected value 'value', got %v", v)
	}
}

func TestTTLCacheExpiration(t *testing.T) {
	c := NewTTLCache[string, string](50*time.Millisecond, 10*time.Millisecond, 10)
	defer c.Stop()

	c.Set("temp", "data")
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("temp"); ok {
		t.Errorf("expected item to expire")
	}
	if c.Count() != 0 {
		t.Errorf("expected cache to be empty after expiration, got %d", c.Count())
	}
}

func TestTTLCacheEviction(t *testing.T) {
	c := NewTTLCache[string, int](1*time.Second, 0, 2)
	defer c.Stop()

	c.Set("a", 1)
	time.Sleep(time.Millisecond)
	c.Set("b", 2)
	time.Sleep(time.Millisecond)
	c.Set("c", 3) // should evict "a"

	if c.Count() != 2 {
		t.Fatalf("expected count 2 after eviction, got %d", c.Count())
	}

	if _, ok := c.Get("a"); ok {
		t.Errorf("expected 'a' to be evicted")
	}

	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("expected to get 2 for 'b', got %v", v)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("expected to get 3 for 'c', got %v", v)
	}
}

func TestTTLCacheNoExpiry(t *testing.T) {
	c := NewTTLCache[string, int](0, 0, 0)
	defer c.Stop()

	c.Set("forever", 1)
	if v, ok := c.Get("forever"); !ok || v != 1 {
		t.Errorf("expected item without TTL to persist, got %v %v", v, ok)
	}
}

func TestTTLCacheStats(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute, 0, 10)
	defer c.Stop()

	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Items != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	c.Clear()
	if c.Count() != 0 {
		t.Errorf("expected empty cache after Clear, got %d", c.Count())
	}
}

func TestTTLCacheStopIsIdempotent(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute, time.Millisecond, 10)
	c.Stop()
	c.Stop()
}

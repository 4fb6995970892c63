package cache

import (
	"testing"
	"time"
)

func TestTTLCache_ExpiresEntries(t *testing.T) {
	c := NewTTLCache(time.Minute)

	now := time.Now()
	c.SetClock(func() time.Time { return now })

	c.Set("k", "v")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("expected fresh entry, got %v ok=%v", v, ok)
	}

	now = now.Add(61 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to expire after TTL")
	}
}

func TestTTLCache_SetReplacesWholesale(t *testing.T) {
	c := NewTTLCache(time.Minute)
	c.Set("k", 1)
	c.Set("k", 2)

	v, ok := c.Get("k")
	if !ok || v != 2 {
		t.Fatalf("expected replacement value 2, got %v", v)
	}
	if c.Len() != 1 {
		t.Fatalf("expected single entry, got %d", c.Len())
	}
}

func TestTTLCache_RemovesExpiredEntries(t *testing.T) {
	c := NewTTLCache(time.Minute)

	now := time.Now()
	c.SetClock(func() time.Time { return now })

	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(61 * time.Second)

	// Reading an expired key deletes it.
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry")
	}
	if c.Len() != 1 {
		t.Fatalf("expected expired key to be deleted on Get, Len=%d", c.Len())
	}

	// Writing sweeps every remaining expired key.
	c.Set("c", 3)
	if c.Len() != 1 {
		t.Fatalf("expected Set to sweep expired entries, Len=%d", c.Len())
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("expected fresh entry to survive the sweep")
	}
}

func TestNameCache(t *testing.T) {
	c := NewNameCache()
	if _, ok := c.Get("AAPL"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Set("AAPL", "Apple Inc.")
	name, ok := c.Get("AAPL")
	if !ok || name != "Apple Inc." {
		t.Fatalf("expected cached name, got %q ok=%v", name, ok)
	}
}

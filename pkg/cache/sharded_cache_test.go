package cache

import (
	"testing"
	"time"
)

func TestSetGetDelete(t *testing.T) {
	c := NewSharded(0)

	c.Set("AAPL|1m", 42)
	v, ok := c.Get("AAPL|1m")
	if !ok || v.(int) != 42 {
		t.Fatalf("Get = %v, %v, expected 42, true", v, ok)
	}

	c.Delete("AAPL|1m")
	if _, ok := c.Get("AAPL|1m"); ok {
		t.Fatal("Get after Delete reported a hit")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewSharded(10 * time.Millisecond)

	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Fatal("fresh entry reported as miss")
	}

	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry reported as hit")
	}
	if n := c.Len(); n != 0 {
		t.Fatalf("Len after lazy eviction = %d, expected 0", n)
	}
}

func TestCleanup(t *testing.T) {
	c := NewSharded(10 * time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(25 * time.Millisecond)
	c.Set("c", 3)

	if removed := c.Cleanup(); removed != 2 {
		t.Fatalf("Cleanup removed %d entries, expected 2", removed)
	}
	if n := c.Len(); n != 1 {
		t.Fatalf("Len after cleanup = %d, expected 1", n)
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("live entry removed by cleanup")
	}
}

func TestStats(t *testing.T) {
	c := NewSharded(time.Minute)

	c.Set("a", 1)
	time.Sleep(5 * time.Millisecond)
	c.Set("b", 2)

	stats := c.Stats()
	if stats.TotalItems != 2 {
		t.Fatalf("TotalItems = %d, expected 2", stats.TotalItems)
	}
	if stats.OldestAge < 5*time.Millisecond {
		t.Fatalf("OldestAge = %v, expected at least 5ms", stats.OldestAge)
	}
}

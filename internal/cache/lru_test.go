package cache

import (
	"testing"
	"time"
)

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *time.Time) {
	c := NewLRUCache[string](size, ttl)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a")
	}
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("a should survive, got %q %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	c, now := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	*now = now.Add(30 * time.Second)
	c.Set("b", "3")

	*now = now.Add(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	if v, ok := c.Get("b"); !ok || v != "3" {
		t.Fatalf("overwrite must refresh ttl, got %q %v", v, ok)
	}

	*now = now.Add(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 expired entry, got %d", n)
	}
}

func TestLRUPurgeAndStats(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Get("a")
	c.Get("missing")
	c.Purge()
	c.Get("a")

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 2 || s.Size != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	c1, now1 := newTestCache(10, time.Second)
	c2, _ := newTestCache(10, time.Hour)
	c1.Set("x", "1")
	c2.Set("y", "2")
	*now1 = now1.Add(2 * time.Second)

	m := NewManager(nil)
	m.Register(c1)
	m.Register(c2)
	if n := m.CleanAll(); n != 1 {
		t.Fatalf("expected 1 removed entry, got %d", n)
	}
	m.StartCleanup(time.Hour)
	m.Stop()
}

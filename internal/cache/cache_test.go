package cache

import (
	"testing"
	"time"
)

func TestTierPutGet(t *testing.T) {
	tier := NewTier[string](10, 0, AccessTTL)
	tier.Put("en_us:app:hello", "Hello")
	v, ok := tier.Get("en_us:app:hello")
	if !ok || v != "Hello" {
		t.Fatalf("got %q, ok=%v", v, ok)
	}
}

func TestTierEvictsOnOverflow(t *testing.T) {
	tier := NewTier[string](2, 0, AccessTTL)
	tier.Put("a", "1")
	tier.Put("b", "2")
	tier.Put("c", "3") // evicts "a" (least recently used)

	if _, ok := tier.Get("a"); ok {
		t.Fatal("expected a to be evicted")
	}
	if _, ok := tier.Get("b"); !ok {
		t.Fatal("expected b to survive")
	}
	if tier.Stats().Evictions != 1 {
		t.Fatalf("evictions = %d, want 1", tier.Stats().Evictions)
	}
}

func TestTierTTLExpiry(t *testing.T) {
	tier := NewTier[string](10, time.Millisecond, AccessTTL)
	tier.Put("k", "v")
	time.Sleep(5 * time.Millisecond)
	if _, ok := tier.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestInvalidateNamespace(t *testing.T) {
	tier := NewTier[string](10, 0, AccessTTL)
	tier.Put(MakeKey("en_us", "app", "a"), "1")
	tier.Put(MakeKey("en_us", "shop", "b"), "2")
	tier.InvalidateNamespace("app")

	if _, ok := tier.Get(MakeKey("en_us", "app", "a")); ok {
		t.Fatal("expected app namespace entries to be gone")
	}
	if _, ok := tier.Get(MakeKey("en_us", "shop", "b")); !ok {
		t.Fatal("expected shop namespace entries to survive")
	}
}

func TestNamespaceExtraction(t *testing.T) {
	ns, ok := Namespace("en_us:app:hello.one")
	if !ok || ns != "app" {
		t.Fatalf("got ns=%q ok=%v", ns, ok)
	}
}

func TestHitMissStats(t *testing.T) {
	tier := NewTier[string](10, 0, AccessTTL)
	tier.Get("missing")
	tier.Put("k", "v")
	tier.Get("k")
	stats := tier.Stats()
	if stats.Misses != 1 || stats.Hits != 1 {
		t.Fatalf("got %+v", stats)
	}
}

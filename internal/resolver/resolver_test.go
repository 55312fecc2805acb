package resolver

import (
	"testing"

	"github.com/afterlands/langforge/internal/cache"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/plural"
	"github.com/afterlands/langforge/internal/registry"
)

func newTestResolver(t *testing.T, defaultLang string) (*Resolver, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	tiered := cache.NewTiered(cache.Config{L1MaxSize: 100, L3MaxSize: 100})
	r := New(Config{DefaultLanguage: defaultLang, LogMissing: true}, reg, tiered, logging.NewDiscard())
	return r, reg
}

func intPtr(n int) *int { return &n }

// S1 — per-user resolution with fallback.
func TestResolveS1FallbackToDefault(t *testing.T) {
	r, reg := newTestResolver(t, "pt_br")
	reg.Register(registry.Translation{Namespace: "app", Key: "hello", Language: "pt_br", Text: "Olá, {name}!"})

	got := r.Resolve("en_us", "app", "hello", map[string]string{"name": "Ana"}, nil)
	if got != "Olá, Ana!" {
		t.Fatalf("got %q", got)
	}
}

// S2 — missing key.
func TestResolveS2MissingKey(t *testing.T) {
	r, _ := newTestResolver(t, "pt_br")
	got := r.Resolve("en_us", "app", "bye", map[string]string{}, nil)
	if got != "[Missing: bye]" {
		t.Fatalf("got %q", got)
	}
}

// S3 — plural selection.
func TestResolveS3PluralSelection(t *testing.T) {
	r, reg := newTestResolver(t, "en_us")
	reg.Register(registry.Translation{
		Namespace: "shop", Key: "items", Language: "en_us",
		Text:        "{count} items",
		PluralForms: map[plural.Category]string{plural.One: "1 item", plural.Other: "{count} items"},
	})
	reg.Register(registry.Translation{Namespace: "shop", Key: "items.one", Language: "en_us", Text: "1 item"})
	reg.Register(registry.Translation{Namespace: "shop", Key: "items.other", Language: "en_us", Text: "{count} items"})

	got := r.Resolve("en_us", "shop", "items", map[string]string{}, intPtr(1))
	if got != "1 item" {
		t.Fatalf("got %q", got)
	}
	got = r.Resolve("en_us", "shop", "items", map[string]string{}, intPtr(5))
	if got != "5 items" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveCachesPlaceholderFreeResult(t *testing.T) {
	r, reg := newTestResolver(t, "en_us")
	reg.Register(registry.Translation{Namespace: "app", Key: "title", Language: "en_us", Text: "Title"})

	_ = r.Resolve("en_us", "app", "title", nil, nil)
	key := cache.MakeKey("en_us", "app", "title")
	if _, ok := r.cache.L1.Get(key); !ok {
		t.Fatal("expected placeholder-free, count-free resolution to populate L1")
	}
}

func TestResolveDoesNotCacheWithPlaceholders(t *testing.T) {
	r, reg := newTestResolver(t, "en_us")
	reg.Register(registry.Translation{Namespace: "app", Key: "greet", Language: "en_us", Text: "Hi {name}"})

	_ = r.Resolve("en_us", "app", "greet", map[string]string{"name": "Ana"}, nil)
	key := cache.MakeKey("en_us", "app", "greet")
	if _, ok := r.cache.L1.Get(key); ok {
		t.Fatal("expected placeholder-bearing resolution to skip L1")
	}
}

func TestResolveTracksMissingKeyOnce(t *testing.T) {
	r, _ := newTestResolver(t, "en_us")
	r.Resolve("en_us", "app", "absent", nil, nil)
	r.Resolve("en_us", "app", "absent", nil, nil)
	if r.MissingKeyCount() != 1 {
		t.Fatalf("got %d, want 1", r.MissingKeyCount())
	}
}

// Package resolver implements the Resolver (spec.md §4.G): the
// fallback chain, placeholder application, and plural dispatch that
// turns a (language, namespace, key) lookup into final display text.
// The Resolver never fails visibly — every uncovered case degrades to
// the configured missing-format (spec.md §7: "Resolver never fails
// visibly").
package resolver

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/afterlands/langforge/internal/cache"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/plural"
	"github.com/afterlands/langforge/internal/registry"
	"github.com/afterlands/langforge/internal/template"
)

// Config holds the spec.md §6 missing.* and language.default options.
type Config struct {
	DefaultLanguage string
	MissingFormat   string // default "[Missing: {key}]"
	LogMissing      bool
}

func (c Config) withDefaults() Config {
	if c.MissingFormat == "" {
		c.MissingFormat = "[Missing: {key}]"
	}
	return c
}

// Resolver wires the Registry, Tiered Cache, Template Engine, and
// Plural Selector together.
type Resolver struct {
	cfg   Config
	reg   *registry.Registry
	cache *cache.Tiered
	log   *logging.Logger

	missingMu  sync.Mutex
	missingSet map[string]struct{}
}

func New(cfg Config, reg *registry.Registry, tiered *cache.Tiered, log *logging.Logger) *Resolver {
	return &Resolver{
		cfg:        cfg.withDefaults(),
		reg:        reg,
		cache:      tiered,
		log:        log,
		missingSet: make(map[string]struct{}),
	}
}

// Resolve implements spec.md §4.G's five-step algorithm.
func (r *Resolver) Resolve(lang, ns, key string, placeholders map[string]string, count *int) string {
	effectiveKey := key
	if count != nil {
		effectiveKey = r.pluralKey(lang, ns, key, *count)
	}

	cacheable := len(placeholders) == 0 && count == nil
	cacheKey := cache.MakeKey(lang, ns, effectiveKey)

	if cacheable {
		if v, ok := r.cache.L1.Get(cacheKey); ok {
			return v
		}
	}

	compiled, ok := r.compiledTemplate(cacheKey, lang, ns, effectiveKey, key)
	if !ok {
		return r.missingText(key)
	}

	if count != nil {
		placeholders = withCount(placeholders, *count)
	}
	result := template.Apply(compiled, placeholders)

	if cacheable {
		r.cache.L1.Put(cacheKey, result)
	}
	return result
}

// withCount returns a copy of placeholders with "count" bound to n,
// unless the caller already supplied its own "count" override.
func withCount(placeholders map[string]string, n int) map[string]string {
	if _, ok := placeholders["count"]; ok {
		return placeholders
	}
	merged := make(map[string]string, len(placeholders)+1)
	for k, v := range placeholders {
		merged[k] = v
	}
	merged["count"] = strconv.Itoa(n)
	return merged
}

// pluralKey rewrites key to key.<category> per spec.md §4.G step 1,
// falling back to key.other, then the bare key if neither template
// form exists in the Registry under either the requested or default
// language.
func (r *Resolver) pluralKey(lang, ns, key string, count int) string {
	category, err := plural.Select(lang, count)
	if err != nil {
		return key
	}
	candidate := key + "." + category.Suffix()
	if r.existsEitherLanguage(lang, ns, candidate) {
		return candidate
	}
	otherCandidate := key + "." + plural.Other.Suffix()
	if r.existsEitherLanguage(lang, ns, otherCandidate) {
		return otherCandidate
	}
	return key
}

func (r *Resolver) existsEitherLanguage(lang, ns, key string) bool {
	if _, ok := r.reg.Get(lang, ns, key); ok {
		return true
	}
	if _, ok := r.reg.Get(r.cfg.DefaultLanguage, ns, key); ok {
		return true
	}
	return false
}

// compiledTemplate implements the L3 lookup plus fallback-chain
// compile-on-miss of spec.md §4.G step 3.
func (r *Resolver) compiledTemplate(cacheKey, lang, ns, effectiveKey, originalKey string) (template.CompiledTemplate, bool) {
	if ct, ok := r.cache.L3.Get(cacheKey); ok {
		return ct, true
	}

	text, found := r.fallbackText(lang, ns, effectiveKey)
	if !found {
		r.recordMissing(ns, originalKey)
		return template.CompiledTemplate{}, false
	}

	text, _, _ = template.StripLangDirective(text)
	compiled := template.Compile(text)
	r.cache.L3.Put(cacheKey, compiled)
	return compiled, true
}

func (r *Resolver) fallbackText(lang, ns, key string) (string, bool) {
	if t, ok := r.reg.Get(lang, ns, key); ok {
		return t.Text, true
	}
	if lang != r.cfg.DefaultLanguage {
		if t, ok := r.reg.Get(r.cfg.DefaultLanguage, ns, key); ok {
			return t.Text, true
		}
	}
	return "", false
}

func (r *Resolver) missingText(key string) string {
	compiled := template.Compile(r.cfg.MissingFormat)
	return template.Apply(compiled, map[string]string{"key": key})
}

// recordMissing logs a distinct missing key once (spec.md §4.G:
// "optionally log once per distinct missing key, tracked in a bounded
// set").
func (r *Resolver) recordMissing(ns, key string) {
	if !r.cfg.LogMissing {
		return
	}
	id := ns + "/" + key
	r.missingMu.Lock()
	defer r.missingMu.Unlock()
	if _, seen := r.missingSet[id]; seen {
		return
	}
	const maxTracked = 10000
	if len(r.missingSet) >= maxTracked {
		return
	}
	r.missingSet[id] = struct{}{}
	if r.log != nil {
		r.log.Warn(fmt.Sprintf("missing translation key %s", id))
	}
}

// MissingKeyCount reports how many distinct missing keys have been
// tracked since startup (or since ResetMissingTracking).
func (r *Resolver) MissingKeyCount() int {
	r.missingMu.Lock()
	defer r.missingMu.Unlock()
	return len(r.missingSet)
}

// ResetMissingTracking clears the bounded missing-key set. spec.md §9
// leaves whether deleteAllTranslations(ns) should also reset missing
// tracking as an open question; this module exposes it as an explicit
// caller-invoked reset rather than folding it into delete, so callers
// opt in.
func (r *Resolver) ResetMissingTracking() {
	r.missingMu.Lock()
	defer r.missingMu.Unlock()
	r.missingSet = make(map[string]struct{})
}

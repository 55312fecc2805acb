// Package registry is the canonical in-memory translation store
// (spec.md §4.C): a (language, namespace, key) -> Translation map with
// reverse indices for size, per-namespace enumeration, and
// clear-by-namespace. The Registry exclusively owns Translation
// objects in memory (spec.md §3 Ownership).
//
// Concurrency follows the same shape as the teacher's endpoint
// manager (internal/endpoint.Manager): a single sync.RWMutex guards
// the nested maps. Readers vastly outnumber writers here, and writes
// are already serialized per-namespace by the Namespace Manager
// (spec.md §4.C), so one RWMutex giving readers a lock-free-relative
// fast path is sufficient — a sharded map would add complexity this
// workload does not need.
package registry

import (
	"regexp"
	"sync"
	"time"

	"github.com/afterlands/langforge/internal/apperr"
	"github.com/afterlands/langforge/internal/plural"
)

var languageCodePattern = regexp.MustCompile(`^[a-z]{2}_[a-z]{2}$`)

// ValidLanguageCode reports whether code matches ^[a-z]{2}_[a-z]{2}$
// (spec.md §3, §8 invariant 1).
func ValidLanguageCode(code string) bool {
	return languageCodePattern.MatchString(code)
}

// Translation is (namespace, key, language) -> { text, pluralForms?,
// updatedAt, sourceHash? }. If PluralForms is non-nil, Other must be
// present (spec.md §3, §8 invariant 4).
type Translation struct {
	Namespace   string
	Key         string
	Language    string
	Text        string
	PluralForms map[plural.Category]string
	UpdatedAt   time.Time
	SourceHash  string
}

// Validate enforces the Translation invariants independent of where
// it came from (file load, dynamic API, sync download).
func (t Translation) Validate() error {
	if !ValidLanguageCode(t.Language) {
		return apperr.Config("invalid language code %q", t.Language)
	}
	if t.Namespace == "" || t.Key == "" {
		return apperr.Config("namespace and key must be non-empty")
	}
	if t.PluralForms != nil {
		if _, ok := t.PluralForms[plural.Other]; !ok {
			return apperr.Config("plural forms for %s/%s/%s missing OTHER", t.Namespace, t.Key, t.Language)
		}
	}
	return nil
}

// key identifies one entry within a single language's namespace map.
type key struct {
	namespace string
	key       string
}

// Registry is the canonical language -> namespace -> key -> Translation store.
type Registry struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]Translation // lang -> ns -> key -> Translation
}

func New() *Registry {
	return &Registry{data: make(map[string]map[string]map[string]Translation)}
}

// Register upserts a Translation, validating it first.
func (r *Registry) Register(t Translation) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(t.Language, t.Namespace)
	r.data[t.Language][t.Namespace][t.Key] = t
	return nil
}

// RegisterMany upserts a batch atomically with respect to readers:
// all entries become visible together under a single write lock. It
// adds to what is already registered; the Namespace Manager's atomic
// reload goes through ClearNamespace instead.
func (r *Registry) RegisterMany(ts []Translation) error {
	for _, t := range ts {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range ts {
		r.ensureLocked(t.Language, t.Namespace)
		r.data[t.Language][t.Namespace][t.Key] = t
	}
	return nil
}

func (r *Registry) ensureLocked(lang, ns string) {
	if r.data[lang] == nil {
		r.data[lang] = make(map[string]map[string]Translation)
	}
	if r.data[lang][ns] == nil {
		r.data[lang][ns] = make(map[string]Translation)
	}
}

// Unregister removes a single entry.
func (r *Registry) Unregister(ns, key, lang string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if byNs, ok := r.data[lang]; ok {
		if byKey, ok := byNs[ns]; ok {
			delete(byKey, key)
		}
	}
}

// ClearNamespace removes every entry for ns across all languages and
// replaces it atomically with replacement (which may be empty) — the
// pre-step of a namespace reload (spec.md §4.F).
func (r *Registry) ClearNamespace(ns string, replacement []Translation) error {
	for _, t := range replacement {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for lang := range r.data {
		delete(r.data[lang], ns)
	}
	for _, t := range replacement {
		r.ensureLocked(t.Language, t.Namespace)
		r.data[t.Language][t.Namespace][t.Key] = t
	}
	return nil
}

// Get looks up a single translation. The zero value and false are
// returned on miss; callers never receive an error for a missing key
// (spec.md §7: NotFound is never thrown from the Registry itself).
func (r *Registry) Get(lang, ns, key string) (Translation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byNs, ok := r.data[lang]
	if !ok {
		return Translation{}, false
	}
	byKey, ok := byNs[ns]
	if !ok {
		return Translation{}, false
	}
	t, ok := byKey[key]
	return t, ok
}

// Size returns the total number of translation entries across all
// languages and namespaces.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, byNs := range r.data {
		for _, byKey := range byNs {
			total += len(byKey)
		}
	}
	return total
}

// Namespaces returns the set of namespace names registered under any language.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, byNs := range r.data {
		for ns := range byNs {
			seen[ns] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	return out
}

// Languages returns every language code the Registry currently holds
// at least one entry for, across all namespaces.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.data))
	for lang, byNs := range r.data {
		for _, byKey := range byNs {
			if len(byKey) > 0 {
				out = append(out, lang)
				break
			}
		}
	}
	return out
}

// CountFor returns the number of translation entries in ns, summed
// across all languages.
func (r *Registry) CountFor(ns string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, byNs := range r.data {
		if byKey, ok := byNs[ns]; ok {
			total += len(byKey)
		}
	}
	return total
}

// Snapshot returns every Translation registered for (lang, ns) — used
// by the Sync Engine to take an upload snapshot (spec.md §4.L step 1).
func (r *Registry) Snapshot(lang, ns string) []Translation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byNs, ok := r.data[lang]
	if !ok {
		return nil
	}
	byKey, ok := byNs[ns]
	if !ok {
		return nil
	}
	out := make([]Translation, 0, len(byKey))
	for _, t := range byKey {
		out = append(out, t)
	}
	return out
}

// Package namespace implements the Namespace Manager (spec.md §4.F):
// register, reload, and list namespaces, coordinating the YAML
// loader, the Registry, and the Tiered Cache. Reload of namespace X
// must never block readers of namespace Y — each namespace gets its
// own mutex, the same per-resource-lock shape the teacher used to
// keep endpoint reconfiguration from stalling unrelated endpoints
// (internal/endpoint.Manager's mutex scoped to the manager, not a
// global server lock).
package namespace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/afterlands/langforge/internal/apperr"
	"github.com/afterlands/langforge/internal/cache"
	"github.com/afterlands/langforge/internal/capability"
	"github.com/afterlands/langforge/internal/events"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/plural"
	"github.com/afterlands/langforge/internal/registry"
	"github.com/afterlands/langforge/internal/yamlloader"
)

// LanguageConfig describes one enabled/disabled language entry
// (spec.md §6: language.languages.<code>.enabled).
type LanguageConfig struct {
	Code    string
	Enabled bool
}

// Stats describes what Stats(ns) reports.
type Stats struct {
	Namespace  string
	EntryCount int
	Languages  []string
}

// Manager coordinates namespace lifecycle: registered -> loaded ->
// (reloaded)* -> unregistered.
type Manager struct {
	root           string // <dataRoot>/languages
	languages      []LanguageConfig
	sourceLanguage string
	registry       *registry.Registry
	cache          *cache.Tiered
	bus            *events.Bus
	scheduler      capability.Scheduler
	log            *logging.Logger

	mu         sync.RWMutex
	registered map[string]struct{}
	nsMutexes  map[string]*sync.Mutex
}

// NewManager builds a Manager. sourceLanguage is the one language
// whose directory gets seeded from defaultSourceDir on registration
// (spec.md §4.F step 2: "if source language directory is empty...");
// every other enabled language is left untranslated until a human or
// the Sync Engine populates it.
func NewManager(root string, languages []LanguageConfig, sourceLanguage string, reg *registry.Registry, tiered *cache.Tiered, bus *events.Bus, sched capability.Scheduler, log *logging.Logger) *Manager {
	return &Manager{
		root:           root,
		languages:      languages,
		sourceLanguage: sourceLanguage,
		registry:       reg,
		cache:          tiered,
		bus:            bus,
		scheduler:      sched,
		log:            log,
		registered:     make(map[string]struct{}),
		nsMutexes:      make(map[string]*sync.Mutex),
	}
}

func (m *Manager) enabledLanguages() []string {
	var out []string
	for _, l := range m.languages {
		if l.Enabled {
			out = append(out, l.Code)
		}
	}
	return out
}

func (m *Manager) nsMutex(ns string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	mu, ok := m.nsMutexes[ns]
	if !ok {
		mu = &sync.Mutex{}
		m.nsMutexes[ns] = mu
	}
	return mu
}

// RegisterNamespace implements spec.md §4.F's registration algorithm,
// run asynchronously on the worker pool (spec.md §5: filesystem scans
// never touch the primary thread).
func (m *Manager) RegisterNamespace(ns string, defaultSourceDir string) *capability.Future[struct{}] {
	return m.scheduler.RunAsync(func() error {
		nsMu := m.nsMutex(ns)
		nsMu.Lock()
		defer nsMu.Unlock()

		if err := m.loadAndSwapLocked(ns, defaultSourceDir); err != nil {
			return err
		}

		m.mu.Lock()
		m.registered[ns] = struct{}{}
		m.mu.Unlock()

		m.cache.InvalidateNamespace(ns)
		m.bus.Publish(events.Event{Kind: events.NamespaceReloaded, Namespace: ns})
		return nil
	})
}

// ReloadNamespace clears and reloads ns from disk. Per spec.md §4.F,
// a failed reload leaves the previous registry snapshot intact
// because the write only happens after load fully succeeds
// (spec.md §7 Recovery).
func (m *Manager) ReloadNamespace(ns string) *capability.Future[struct{}] {
	return m.scheduler.RunAsync(func() error {
		nsMu := m.nsMutex(ns)
		nsMu.Lock()
		defer nsMu.Unlock()

		if err := m.loadAndSwapLocked(ns, ""); err != nil {
			return err
		}

		m.cache.InvalidateNamespace(ns)
		m.bus.Publish(events.Event{Kind: events.NamespaceReloaded, Namespace: ns})
		return nil
	})
}

// ReloadAll reloads every registered namespace. Namespaces are
// independent (spec.md §5: "across namespaces, no ordering
// guarantees") so each reload runs as its own scheduled task.
func (m *Manager) ReloadAll() *capability.Future[struct{}] {
	return m.scheduler.RunAsync(func() error {
		for _, ns := range m.Registered() {
			if _, err := m.ReloadNamespace(ns).MustWait(); err != nil {
				m.log.Error("namespace reload failed during reloadAll", err, logrus.Fields{"namespace": ns})
			}
		}
		return nil
	})
}

// loadAndSwapLocked performs the load-then-atomic-registry-swap
// sequence. Caller must hold the per-namespace mutex.
func (m *Manager) loadAndSwapLocked(ns string, defaultSourceDir string) error {
	langs := m.enabledLanguages()
	var all []registry.Translation

	for _, lang := range langs {
		dir := filepath.Join(m.root, lang, ns)

		if defaultSourceDir != "" && lang == m.sourceLanguage {
			if empty, _ := dirEmpty(dir); empty {
				if err := copyDefaults(defaultSourceDir, dir); err != nil {
					return apperr.IO(fmt.Sprintf("seeding defaults for %s/%s", lang, ns), err)
				}
			}
		}

		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}

		flat, err := yamlloader.LoadNamespace(dir)
		if err != nil {
			return err
		}

		translations, err := materialize(ns, lang, flat)
		if err != nil {
			return err
		}
		all = append(all, translations...)
	}

	return m.registry.ClearNamespace(ns, all)
}

// materialize groups flat dotted keys into Translations, folding
// pluralization-suffixed siblings (key.one, key.other, ...) into one
// Translation's PluralForms map (spec.md §4.E, §4.C).
func materialize(ns, lang string, flat map[string]string) ([]registry.Translation, error) {
	type pluralAccumulator struct {
		forms map[plural.Category]string
	}
	plurals := make(map[string]*pluralAccumulator)
	scalars := make(map[string]string)

	suffixToCategory := map[string]plural.Category{
		".zero": plural.Zero, ".one": plural.One, ".two": plural.Two,
		".few": plural.Few, ".many": plural.Many, ".other": plural.Other,
	}

	for key, text := range flat {
		base, found := yamlloader.PluralBaseKey(key)
		if !found {
			scalars[key] = text
			continue
		}
		suffix := key[len(base):]
		cat := suffixToCategory[suffix]
		acc, ok := plurals[base]
		if !ok {
			acc = &pluralAccumulator{forms: make(map[plural.Category]string)}
			plurals[base] = acc
		}
		acc.forms[cat] = text
	}

	out := make([]registry.Translation, 0, len(scalars)+len(plurals)*2)
	for key, text := range scalars {
		out = append(out, registry.Translation{Namespace: ns, Key: key, Language: lang, Text: text})
	}
	for base, acc := range plurals {
		text := acc.forms[plural.Other]
		// The grouped entry carries every form for Dynamic Store /
		// introspection consumers (spec.md §3 Translation.pluralForms).
		out = append(out, registry.Translation{
			Namespace: ns, Key: base, Language: lang, Text: text, PluralForms: acc.forms,
		})
		// Individual per-category entries are what the Resolver's
		// key.<category> fallback chain actually looks up
		// (spec.md §4.G step 1).
		for cat, formText := range acc.forms {
			out = append(out, registry.Translation{
				Namespace: ns, Key: base + "." + cat.Suffix(), Language: lang, Text: formText,
			})
		}
	}
	return out, nil
}

func dirEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

func copyDefaults(srcDir, dstDir string) error {
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(srcDir, e.Name()))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dstDir, e.Name()), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) Unregister(ns string) {
	m.mu.Lock()
	delete(m.registered, ns)
	m.mu.Unlock()
	m.registry.ClearNamespace(ns, nil)
	m.cache.InvalidateNamespace(ns)
}

func (m *Manager) IsRegistered(ns string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.registered[ns]
	return ok
}

func (m *Manager) Registered() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.registered))
	for ns := range m.registered {
		out = append(out, ns)
	}
	return out
}

func (m *Manager) Stats(ns string) Stats {
	return Stats{
		Namespace:  ns,
		EntryCount: m.registry.CountFor(ns),
		Languages:  m.enabledLanguages(),
	}
}

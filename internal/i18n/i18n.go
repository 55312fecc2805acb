// Package i18n is the host-neutral public API (spec.md §6): the
// single facade a plugin host's commands and listeners call into. It
// wires together the Registry, Resolver, Tiered Cache, Player
// Language Store, Namespace Manager, Dynamic Store, Content
// Extractor, and Sync Engine, none of which a caller outside this
// package needs to reach directly. Generalized from the teacher's
// internal/endpoint.Manager, which plays the same "one manager wraps
// several collaborating subsystems behind a small method set" role
// for endpoint configuration.
package i18n

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/afterlands/langforge/internal/apperr"
	"github.com/afterlands/langforge/internal/cache"
	"github.com/afterlands/langforge/internal/capability"
	"github.com/afterlands/langforge/internal/dynamic"
	"github.com/afterlands/langforge/internal/extractor"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/namespace"
	"github.com/afterlands/langforge/internal/playerlang"
	"github.com/afterlands/langforge/internal/plural"
	"github.com/afterlands/langforge/internal/registry"
	"github.com/afterlands/langforge/internal/resolver"
	"github.com/afterlands/langforge/internal/scheduler"
	"github.com/afterlands/langforge/internal/syncengine"
	"github.com/afterlands/langforge/internal/yamlloader"
)

// Engine is the facade. It owns no I/O of its own; every operation
// delegates to the subsystem that does.
type Engine struct {
	dataRoot   string
	defLang    string
	sourceLang string
	reg        *registry.Registry
	resolve    *resolver.Resolver
	tiered     *cache.Tiered
	players    *playerlang.Store
	ns         *namespace.Manager
	dyn        *dynamic.Store
	sync       *syncengine.Engine
	sched      *scheduler.Scheduler
	host       capability.Scheduler
	messenger  capability.Messenger
	log        *logging.Logger
}

// Dependencies bundles the already-constructed subsystems a
// composition root assembles before building the facade. The facade
// itself never constructs a subsystem; main.go owns wiring order.
type Dependencies struct {
	DataRoot        string // <dataRoot>/languages, <dataRoot>/cache, ...
	DefaultLanguage string
	// SourceLanguage is the untranslated-original language: crowdin.yml's
	// source-language when Crowdin sync is configured, DefaultLanguage
	// otherwise. Content extraction writes here, not to DefaultLanguage,
	// since the two are independently configurable (spec.md §6).
	SourceLanguage string
	Registry       *registry.Registry
	Resolver       *resolver.Resolver
	Cache          *cache.Tiered
	Players        *playerlang.Store
	Namespaces     *namespace.Manager
	Dynamic        *dynamic.Store
	Sync           *syncengine.Engine
	Scheduler      *scheduler.Scheduler
	Host           capability.Scheduler
	Messenger      capability.Messenger
	Log            *logging.Logger
}

// sourceLanguageOrDefault falls back to defLang when no explicit
// source language was configured (e.g. Crowdin sync disabled).
func sourceLanguageOrDefault(source, defLang string) string {
	if source == "" {
		return defLang
	}
	return source
}

// New builds the facade from already-wired subsystems.
func New(deps Dependencies) *Engine {
	return &Engine{
		dataRoot:   deps.DataRoot,
		defLang:    deps.DefaultLanguage,
		sourceLang: sourceLanguageOrDefault(deps.SourceLanguage, deps.DefaultLanguage),
		reg:        deps.Registry,
		resolve:    deps.Resolver,
		tiered:     deps.Cache,
		players:    deps.Players,
		ns:         deps.Namespaces,
		dyn:        deps.Dynamic,
		sync:       deps.Sync,
		sched:      deps.Scheduler,
		host:       deps.Host,
		messenger:  deps.Messenger,
		log:        deps.Log,
	}
}

// --- Resolution & delivery -------------------------------------------------

// playerLanguage returns the caller's stored preference, falling back
// to the configured default (spec.md §4.G fallback chain starts from
// the requester's own language). Consults only the in-memory cache,
// never blocking (spec.md §9: "only cache/registry lookups... may
// touch the primary thread").
func (e *Engine) playerLanguage(playerID string) string {
	if p, ok := e.players.GetCached(playerID); ok {
		return p.Language
	}
	return e.defLang
}

// Get resolves (playerID, ns, key) to display text without delivering
// it anywhere.
func (e *Engine) Get(playerID, ns, key string, placeholders map[string]string) string {
	return e.resolve.Resolve(e.playerLanguage(playerID), ns, key, placeholders, nil)
}

// GetCount resolves a plural-aware key for count.
func (e *Engine) GetCount(playerID, ns, key string, count int, placeholders map[string]string) string {
	return e.resolve.Resolve(e.playerLanguage(playerID), ns, key, placeholders, &count)
}

// GetOrDefault resolves (ns, key); if the resolution degrades to the
// missing-format (i.e. no Registry entry exists under the requester's
// or the default language), fallback is returned instead.
func (e *Engine) GetOrDefault(playerID, ns, key, fallback string, placeholders map[string]string) string {
	lang := e.playerLanguage(playerID)
	if _, ok := e.reg.Get(lang, ns, key); ok {
		return e.resolve.Resolve(lang, ns, key, placeholders, nil)
	}
	if _, ok := e.reg.Get(e.defLang, ns, key); ok {
		return e.resolve.Resolve(lang, ns, key, placeholders, nil)
	}
	return fallback
}

// Send resolves (ns, key) for playerID and delivers it through the
// host's Messenger. Delivery re-enters the primary thread via the
// host scheduler (spec.md §9's thread-affinity hand-off rule).
func (e *Engine) Send(playerID, ns, key string, placeholders map[string]string) {
	text := e.Get(playerID, ns, key, placeholders)
	e.deliverToPlayer(playerID, text)
}

// SendCount is the plural-aware counterpart of Send.
func (e *Engine) SendCount(playerID, ns, key string, count int, placeholders map[string]string) {
	text := e.GetCount(playerID, ns, key, count, placeholders)
	e.deliverToPlayer(playerID, text)
}

// Broadcast resolves (ns, key) once, in the default language, and
// delivers that one text to every player holding permission ("" means
// everyone). It does not resolve per player language; hosts wanting a
// per-player-language broadcast iterate ListByLanguage themselves and
// call Send per group.
func (e *Engine) Broadcast(ns, key, permission string, placeholders map[string]string) {
	text := e.resolve.Resolve(e.defLang, ns, key, placeholders, nil)
	e.host.RunOnPrimary(func() {
		e.messenger.Broadcast(permission, text)
	})
}

// SendBatch resolves each key in keys against shared placeholders and
// delivers them to playerID as one sequence, avoiding a cache/registry
// round trip per key when a command needs to print several lines.
func (e *Engine) SendBatch(playerID, ns string, keys []string, shared map[string]string) {
	lang := e.playerLanguage(playerID)
	texts := make([]string, 0, len(keys))
	for _, key := range keys {
		texts = append(texts, e.resolve.Resolve(lang, ns, key, shared, nil))
	}
	e.host.RunOnPrimary(func() {
		for _, text := range texts {
			e.messenger.SendToPlayer(playerID, text)
		}
	})
}

func (e *Engine) deliverToPlayer(playerID, text string) {
	e.host.RunOnPrimary(func() {
		e.messenger.SendToPlayer(playerID, text)
	})
}

// --- Player language ---------------------------------------------------

// GetPlayerLanguage returns playerID's stored language, defaulting to
// DefaultLanguage() if no preference is recorded yet.
func (e *Engine) GetPlayerLanguage(playerID string) string {
	return e.playerLanguage(playerID)
}

// SetPlayerLanguage writes through the Player Language Store's
// cache-then-persist path (spec.md §4.H).
func (e *Engine) SetPlayerLanguage(playerID, code string) error {
	if !registry.ValidLanguageCode(code) {
		return apperr.Config("invalid language code %q", code)
	}
	e.players.Set(playerID, code, false)
	return nil
}

// AvailableLanguages lists every language the Registry currently
// holds at least one translation for.
func (e *Engine) AvailableLanguages() []string {
	return e.reg.Languages()
}

// DefaultLanguage returns the configured fallback language.
func (e *Engine) DefaultLanguage() string { return e.defLang }

// --- Namespace lifecycle -------------------------------------------------

// RegisterNamespace idempotently registers ns, first running the
// Content Extractor against any messages.yml/inventories.yml the
// owner ships in ownerDir, then loading the resulting (and any
// hand-authored) files under <dataRoot>/languages/*/ns into the
// Registry (spec.md §6: "registerNamespace(owner, ns) — idempotent;
// triggers extractors if the owner ships messages.yml/inventories.yml").
func (e *Engine) RegisterNamespace(owner, ns, ownerDir string) *capability.Future[struct{}] {
	return e.host.RunAsync(func() error {
		if err := e.extractOwnerContent(ns, ownerDir); err != nil {
			return err
		}
		_, err := e.ns.RegisterNamespace(ns, "").MustWait()
		return err
	})
}

func (e *Engine) extractOwnerContent(ns, ownerDir string) error {
	if ownerDir == "" {
		return nil
	}
	candidates := []struct {
		file    string
		extract func(map[string]any) map[string]any
	}{
		{"messages.yml", extractor.ExtractMessages},
		{"inventories.yml", extractor.ExtractInventory},
	}
	for _, c := range candidates {
		src := filepath.Join(ownerDir, c.file)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		tree, err := extractor.LoadTree(src)
		if err != nil {
			return err
		}
		extracted := c.extract(tree)
		if err := e.writeExtractedAllLanguages(ns, c.file, extracted); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) writeExtractedAllLanguages(ns, filename string, extracted map[string]any) error {
	dir := filepath.Join(e.dataRoot, "languages", e.sourceLang, ns)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.IO(fmt.Sprintf("creating %s", dir), err)
	}
	return extractor.WriteOutput(extracted, filepath.Join(dir, filename), true)
}

// ReloadNamespace re-reads ns from disk without touching the
// registration set.
func (e *Engine) ReloadNamespace(ns string) *capability.Future[struct{}] {
	return e.ns.ReloadNamespace(ns)
}

// --- Dynamic translations --------------------------------------------------

// CreateTranslation saves a scalar dynamic translation.
func (e *Engine) CreateTranslation(ns, key, lang, text string) error {
	return e.dyn.Save(ns, key, lang, text, "admin")
}

// CreateTranslationWithPlurals saves a pluralized dynamic translation.
func (e *Engine) CreateTranslationWithPlurals(ns, key, lang string, forms map[plural.Category]string) error {
	return e.dyn.SaveWithPlurals(ns, key, lang, forms, "admin")
}

// UpdateTranslation is the same write path as create; Dynamic Store
// upserts by (namespace, key, language).
func (e *Engine) UpdateTranslation(ns, key, lang, text string) error {
	return e.dyn.Save(ns, key, lang, text, "admin")
}

// UpdatePlurals is the same write path as createWithPlurals.
func (e *Engine) UpdatePlurals(ns, key, lang string, forms map[plural.Category]string) error {
	return e.dyn.SaveWithPlurals(ns, key, lang, forms, "admin")
}

// DeleteTranslation removes one dynamic translation, reporting
// whether a row existed.
func (e *Engine) DeleteTranslation(ns, key, lang string) (bool, error) {
	return e.dyn.Delete(ns, key, lang)
}

// DeleteAllTranslations removes every dynamic translation in ns,
// reporting the count removed.
func (e *Engine) DeleteAllTranslations(ns string) (int, error) {
	return e.dyn.DeleteNamespace(ns)
}

// GetTranslation resolves a namespace/key/language triple from the
// Registry, the same source the Resolver reads from, independent of
// whether it originated from a static file or the Dynamic Store.
func (e *Engine) GetTranslation(lang, ns, key string) (string, bool) {
	t, ok := e.reg.Get(lang, ns, key)
	if !ok {
		return "", false
	}
	return t.Text, true
}

// CountTranslations reports how many dynamic rows exist for ns.
func (e *Engine) CountTranslations(ns string) (int, error) {
	return e.dyn.Count(ns)
}

// ExistsTranslation reports whether a dynamic row exists for the
// triple.
func (e *Engine) ExistsTranslation(ns, key, lang string) (bool, error) {
	return e.dyn.Exists(ns, key, lang)
}

// InvalidateCache drops every cached entry for ns across both cache
// tiers.
func (e *Engine) InvalidateCache(ns string) {
	e.tiered.InvalidateNamespace(ns)
}

// Reload is an alias surfaced at the facade level for
// ReloadNamespace, matching spec.md §6's "reload(ns)" naming.
func (e *Engine) Reload(ns string) *capability.Future[struct{}] {
	return e.ReloadNamespace(ns)
}

// ExportNamespace serializes every Registry translation for
// (lang, ns) back to a nested YAML document, the same format the
// Sync Engine uploads (spec.md §6 "exportNamespace").
func (e *Engine) ExportNamespace(lang, ns string) ([]byte, error) {
	snapshot := e.reg.Snapshot(lang, ns)
	flat := make(map[string]string, len(snapshot))
	for _, t := range snapshot {
		if t.PluralForms != nil {
			for category, text := range t.PluralForms {
				flat[t.Key+"."+category.Suffix()] = text
			}
			continue
		}
		flat[t.Key] = t.Text
	}
	return yamlloader.ToNestedYAML(flat)
}

// ImportTranslations parses file as a translation YAML document and
// upserts every key into the Dynamic Store for (ns, lang). When
// overwrite is false, keys already present in the Registry for
// (lang, ns) are skipped, preserving existing edits.
func (e *Engine) ImportTranslations(file, ns, lang string, overwrite bool) (imported int, skipped int, err error) {
	flat, err := yamlloader.LoadFile(file)
	if err != nil {
		return 0, 0, err
	}
	for key, text := range flat {
		if !overwrite {
			// A plural-suffixed key (e.g. "items.one") is grouped under
			// its base key in the Registry, so existence must be
			// checked against the base, not the suffixed form.
			checkKey := key
			if base, ok := yamlloader.PluralBaseKey(key); ok {
				checkKey = base
			}
			if _, ok := e.reg.Get(lang, ns, checkKey); ok {
				skipped++
				continue
			}
		}
		if err := e.dyn.Save(ns, key, lang, text, "import"); err != nil {
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}

// --- Crowdin synchronization --------------------------------------------
//
// The facade re-exposes the Sync Engine's namespace operations
// directly: they already return the exact types spec.md §6 names
// (SyncResult, bool), so no adapter is needed beyond delegation.

// SyncNamespace uploads then downloads ns.
func (e *Engine) SyncNamespace(ctx context.Context, ns string) (syncengine.Result, error) {
	return e.sync.SyncNamespace(ctx, ns)
}

func (e *Engine) SyncAll(ctx context.Context) ([]syncengine.Result, error) {
	return e.sync.SyncAll(ctx)
}

func (e *Engine) UploadNamespace(ctx context.Context, ns string) (syncengine.Result, error) {
	return e.sync.UploadNamespace(ctx, ns)
}

func (e *Engine) DownloadNamespace(ctx context.Context, ns string) (syncengine.Result, error) {
	return e.sync.DownloadNamespace(ctx, ns)
}

func (e *Engine) IsSyncInProgress() bool {
	return e.sync.IsSyncInProgress()
}

func (e *Engine) GetLastSyncResult(ns string) (syncengine.Result, bool) {
	return e.sync.GetLastSyncResult(ns)
}

// TestConnection verifies Crowdin connectivity/credentials.
func (e *Engine) TestConnection(ctx context.Context) error {
	return e.sync.TestConnection(ctx)
}

// --- Lifecycle --------------------------------------------------------

// Start registers the scheduled full-sync task, if configured.
func (e *Engine) Start() {
	if e.sched != nil {
		e.sched.Start()
	}
}

// Shutdown stops the scheduled sync task and flushes the Player
// Language Store's in-memory cache to disk (spec.md §5: "graceful
// shutdown flushes cached player preferences"), waiting at most 10s
// for the flush to finish.
func (e *Engine) Shutdown() {
	if e.sched != nil {
		e.sched.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.players.SaveAll().Wait(ctx)
}

// Package dynamic implements the Dynamic Store (spec.md §4.I): the
// persistent, GORM-backed table of runtime-created translations with
// plural-form columns and sync-reconciliation metadata. Every mutating
// operation obeys the same four-step contract: persist, register in
// the Registry, invalidate the cache slice, emit a lifecycle event
// (spec.md §4.I).
package dynamic

import (
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/afterlands/langforge/internal/apperr"
	"github.com/afterlands/langforge/internal/cache"
	"github.com/afterlands/langforge/internal/events"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/plural"
	"github.com/afterlands/langforge/internal/registry"
	"github.com/afterlands/langforge/internal/sqlitestore"
)

// SyncStatus mirrors spec.md §3 SyncState.syncStatus.
type SyncStatus string

const (
	StatusPending  SyncStatus = "pending"
	StatusSynced   SyncStatus = "synced"
	StatusConflict SyncStatus = "conflict"
	StatusError    SyncStatus = "error"
)

// Entry is one dynamic translation, assembled from the row plus any
// populated plural columns.
type Entry struct {
	Namespace    string
	Key          string
	Language     string
	Text         string
	PluralForms  map[plural.Category]string
	Source       string
	Status       string
	SyncStatus   SyncStatus
	CrowdinHash  string
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Hash returns md5(text) hex-encoded, the change-detection hash used
// by the Sync Engine's upload pipeline (spec.md §4.L step 2).
func Hash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Store is the Dynamic Store.
type Store struct {
	db    dbBackend
	reg   *registry.Registry
	cache *cache.Tiered
	bus   *events.Bus
	log   *logging.Logger
}

// Open constructs a Store backed by a SQLite database at cfg.Path and
// wires it to the Registry/Cache/Bus it must keep consistent.
func Open(cfg sqlitestore.Config, reg *registry.Registry, tiered *cache.Tiered, bus *events.Bus, log *logging.Logger) (*Store, error) {
	gdb, _, err := sqlitestore.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&model{}, &conflictModel{}); err != nil {
		return nil, err
	}
	return &Store{db: gormBackend{gdb}, reg: reg, cache: tiered, bus: bus, log: log}, nil
}

// Save upserts a single-text dynamic translation (no plural forms).
func (s *Store) Save(ns, key, lang, text, source string) error {
	return s.save(ns, key, lang, text, nil, source)
}

// SaveWithPlurals upserts a translation carrying per-category forms.
// forms must contain OTHER (spec.md §3 invariant 4); the stored scalar
// text is forms[OTHER].
func (s *Store) SaveWithPlurals(ns, key, lang string, forms map[plural.Category]string, source string) error {
	if _, ok := forms[plural.Other]; !ok {
		return apperr.Config("plural forms for %s/%s/%s missing OTHER", ns, key, lang)
	}
	return s.save(ns, key, lang, forms[plural.Other], forms, source)
}

func (s *Store) save(ns, key, lang, text string, forms map[plural.Category]string, source string) error {
	m := model{
		Namespace: ns, TranslationKey: key, Language: lang, Text: text,
		Source: source, Status: "active", SyncStatus: string(StatusPending),
		UpdatedAt: time.Now().UTC(),
	}
	m.CreatedAt = m.UpdatedAt
	applyPluralColumns(&m, forms)

	if err := s.db.upsert(&m); err != nil {
		return apperr.IO("saving dynamic translation", err)
	}
	return s.registerAndPublish(ns, key, lang, text, forms, events.Updated)
}

// registerAndPublish implements steps (ii)-(iv) of the mutating-
// operation contract shared by every write path in this package.
func (s *Store) registerAndPublish(ns, key, lang, text string, forms map[plural.Category]string, kind events.Kind) error {
	t := registry.Translation{Namespace: ns, Key: key, Language: lang, Text: text, PluralForms: forms, UpdatedAt: time.Now().UTC()}
	if err := s.reg.Register(t); err != nil {
		return err
	}
	for cat, formText := range forms {
		suffixed := registry.Translation{Namespace: ns, Key: key + "." + cat.Suffix(), Language: lang, Text: formText, UpdatedAt: t.UpdatedAt}
		if err := s.reg.Register(suffixed); err != nil {
			return err
		}
	}
	s.cache.InvalidateNamespace(ns)
	s.bus.Publish(events.Event{Kind: kind, Namespace: ns, Key: key, Language: lang, New: text})
	return nil
}

// Delete removes one entry, reporting whether it existed.
func (s *Store) Delete(ns, key, lang string) (bool, error) {
	existed, err := s.db.delete(ns, key, lang)
	if err != nil {
		return false, apperr.IO("deleting dynamic translation", err)
	}
	if !existed {
		return false, nil
	}
	s.reg.Unregister(ns, key, lang)
	for _, suffix := range plural.AllSuffixes() {
		s.reg.Unregister(ns, key+"."+suffix, lang)
	}
	s.cache.InvalidateNamespace(ns)
	s.bus.Publish(events.Event{Kind: events.Deleted, Namespace: ns, Key: key, Language: lang})
	return true, nil
}

// DeleteNamespace removes every dynamic entry in ns, returning the
// count removed.
func (s *Store) DeleteNamespace(ns string) (int, error) {
	n, err := s.db.deleteNamespace(ns)
	if err != nil {
		return 0, apperr.IO("deleting namespace", err)
	}
	s.reg.ClearNamespace(ns, nil)
	s.cache.InvalidateNamespace(ns)
	s.bus.Publish(events.Event{Kind: events.Deleted, Namespace: ns})
	return n, nil
}

func (s *Store) Count(ns string) (int, error) {
	return s.db.count(ns)
}

func (s *Store) Exists(ns, key, lang string) (bool, error) {
	return s.db.exists(ns, key, lang)
}

// UpdateSyncStatus sets syncStatus for one entry.
func (s *Store) UpdateSyncStatus(ns, key, lang string, status SyncStatus) error {
	return s.db.updateSyncStatus(ns, key, lang, status)
}

// UpdateCrowdinHash records the remote hash and lastSyncedAt for one
// entry, the bookkeeping write at the end of a successful upload
// (spec.md §4.L step 10).
func (s *Store) UpdateCrowdinHash(ns, key, lang, hash string) error {
	return s.db.updateCrowdinHash(ns, key, lang, hash, time.Now().UTC())
}

// FindPendingSync returns every entry in ns awaiting upload.
func (s *Store) FindPendingSync(ns string) ([]Entry, error) {
	models, err := s.db.findByStatus(ns, StatusPending)
	if err != nil {
		return nil, err
	}
	return toEntries(models), nil
}

func (s *Store) FindByStatus(ns string, status SyncStatus) ([]Entry, error) {
	models, err := s.db.findByStatus(ns, status)
	if err != nil {
		return nil, err
	}
	return toEntries(models), nil
}

// GetCrowdinHashes returns namespace/key/language -> stored hash, the
// map the upload pipeline diffs against (spec.md §4.L step 3).
func (s *Store) GetCrowdinHashes(ns string) (map[string]string, error) {
	models, err := s.db.all(ns)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(models))
	for _, m := range models {
		out[fullKey(m.Namespace, m.TranslationKey, m.Language)] = m.CrowdinHash
	}
	return out, nil
}

// BatchUpdateSyncStatus updates status for many entries identified by
// fullKey() strings in one call, the bulk finalize step after a
// successful upload (spec.md §4.L step 10).
func (s *Store) BatchUpdateSyncStatus(fullKeys []string, status SyncStatus) error {
	return s.db.batchUpdateSyncStatus(fullKeys, status)
}

func fullKey(ns, key, lang string) string {
	return ns + "/" + key + "/" + lang
}

func toEntries(models []model) []Entry {
	out := make([]Entry, 0, len(models))
	for _, m := range models {
		out = append(out, toEntry(m))
	}
	return out
}

func toEntry(m model) Entry {
	e := Entry{
		Namespace: m.Namespace, Key: m.TranslationKey, Language: m.Language, Text: m.Text,
		Source: m.Source, Status: m.Status, SyncStatus: SyncStatus(m.SyncStatus),
		CrowdinHash: m.CrowdinHash, LastSyncedAt: m.LastSyncedAt,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
	forms := pluralColumnsToMap(m)
	if len(forms) > 0 {
		if _, ok := forms[plural.Other]; !ok {
			forms[plural.Other] = m.Text
		}
		e.PluralForms = forms
	}
	return e
}

// ListConflicts returns the MANUAL-policy conflict ledger entries for
// ns, supplementing spec.md §4.I/§4.L per SPEC_FULL.md's Conflict
// Ledger addition.
func (s *Store) ListConflicts(ns string) ([]ConflictRecord, error) {
	return s.db.listConflicts(ns)
}

// ResolveConflict applies a human decision to a recorded conflict:
// keepLocal=true discards the remote value; false applies it via the
// normal save path (persist, register, invalidate, emit).
func (s *Store) ResolveConflict(id string, keepLocal bool) error {
	rec, err := s.db.getConflict(id)
	if err != nil {
		return err
	}
	if !keepLocal {
		if err := s.save(rec.Namespace, rec.Key, rec.Language, rec.RemoteText, nil, "crowdin-sync"); err != nil {
			return err
		}
		if err := s.UpdateSyncStatus(rec.Namespace, rec.Key, rec.Language, StatusSynced); err != nil {
			return err
		}
	} else if err := s.UpdateSyncStatus(rec.Namespace, rec.Key, rec.Language, StatusSynced); err != nil {
		return err
	}
	return s.db.deleteConflict(id)
}

// RecordConflict persists a MANUAL-policy conflict for later human
// resolution, called by the Sync Engine's download pipeline.
func (s *Store) RecordConflict(ns, key, lang, localText, remoteText string) (ConflictRecord, error) {
	rec := ConflictRecord{
		ID: uuid.NewString(), Namespace: ns, Key: key, Language: lang,
		LocalText: localText, RemoteText: remoteText, DetectedAt: time.Now().UTC(),
	}
	if err := s.db.saveConflict(rec); err != nil {
		return ConflictRecord{}, err
	}
	return rec, nil
}

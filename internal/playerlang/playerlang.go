// Package playerlang implements the Player Language Store (spec.md
// §4.H): an in-memory write-through cache over a SQLite-backed table
// mapping player UUID to language preference. Persistence happens on
// the worker pool; the cache is always updated synchronously so a
// caller's own next read never stalls on a database round trip
// (spec.md §5: "write path is write-through-cache").
package playerlang

import (
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/afterlands/langforge/internal/capability"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/sqlitestore"
)

// Pref is one player's language preference.
type Pref struct {
	PlayerID     string
	Language     string
	AutoDetected bool
	FirstSeenAt  time.Time
	UpdatedAt    time.Time
}

// model is the GORM row shape for the player_language table
// (spec.md §6: player_language(uuid PK, language, auto_detected,
// first_join, updated_at, INDEX(language))).
type model struct {
	UUID         string    `gorm:"column:uuid;primaryKey"`
	Language     string    `gorm:"column:language;index"`
	AutoDetected bool      `gorm:"column:auto_detected"`
	FirstJoin    time.Time `gorm:"column:first_join"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (model) TableName() string { return "player_language" }

func toPref(m model) Pref {
	return Pref{PlayerID: m.UUID, Language: m.Language, AutoDetected: m.AutoDetected, FirstSeenAt: m.FirstJoin, UpdatedAt: m.UpdatedAt}
}

func fromPref(p Pref) model {
	return model{UUID: p.PlayerID, Language: p.Language, AutoDetected: p.AutoDetected, FirstJoin: p.FirstSeenAt, UpdatedAt: p.UpdatedAt}
}

type db interface {
	get(uuid string) (model, bool, error)
	upsert(m model) error
	delete(uuid string) (bool, error)
	all() ([]model, error)
}

// Store is the Player Language Store.
type Store struct {
	mu    sync.RWMutex
	cache map[string]Pref

	store     db
	dbCfg     sqlitestore.Config
	scheduler capability.Scheduler
	log       *logging.Logger

	regionMu sync.RWMutex
	regions  map[string]string
}

// defaultRegions is the canonical bare-subtag -> full locale mapping
// table used when auto-detection only yields a base language code
// (spec.md §4.H: "bare xx -> a canonical region mapping").
var defaultRegions = map[string]string{
	"en": "en_us",
	"pt": "pt_br",
	"es": "es_es",
	"fr": "fr_fr",
	"de": "de_de",
	"it": "it_it",
	"ja": "ja_jp",
	"ko": "ko_kr",
	"ru": "ru_ru",
	"zh": "zh_cn",
}

// Open constructs a Store backed by a SQLite database at cfg.Path.
func Open(cfg sqlitestore.Config, scheduler capability.Scheduler, log *logging.Logger) (*Store, error) {
	gdb, resolved, err := sqlitestore.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&model{}); err != nil {
		return nil, err
	}
	regions := make(map[string]string, len(defaultRegions))
	for k, v := range defaultRegions {
		regions[k] = v
	}
	return &Store{
		cache:     make(map[string]Pref),
		store:     gormDB{gdb},
		dbCfg:     resolved,
		scheduler: scheduler,
		log:       log,
		regions:   regions,
	}, nil
}

// RegisterRegionMapping lets callers extend the bare-subtag -> locale
// table (e.g. adding "nl" -> "nl_nl") without touching this package.
func (s *Store) RegisterRegionMapping(baseLang, locale string) {
	s.regionMu.Lock()
	defer s.regionMu.Unlock()
	s.regions[baseLang] = locale
}

// NormalizeLocale converts a raw detected locale string into the
// canonical xx_yy form (spec.md §4.H): "xx-YY" -> "xx_yy", bare "xx"
// looked up in the region mapping table.
func (s *Store) NormalizeLocale(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	raw = strings.ReplaceAll(raw, "-", "_")
	if strings.Contains(raw, "_") {
		return raw
	}
	s.regionMu.RLock()
	defer s.regionMu.RUnlock()
	if mapped, ok := s.regions[raw]; ok {
		return mapped
	}
	return raw
}

// GetCached returns the cached preference without touching the
// database (spec.md §4.H: "getCached(id) -> Option (non-blocking)").
func (s *Store) GetCached(playerID string) (Pref, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.cache[playerID]
	return p, ok
}

// Get returns the preference, consulting cache first and issuing one
// query on miss; the result is cached before return.
func (s *Store) Get(playerID string) *capability.Future[*Pref] {
	if p, ok := s.GetCached(playerID); ok {
		return capability.Resolved[*Pref](&p, nil)
	}
	return capability.RunAsyncTyped(s.scheduler, func() (*Pref, error) {
		if p, ok := s.GetCached(playerID); ok {
			return &p, nil
		}
		m, found, err := s.store.get(playerID)
		if err != nil {
			if s.log != nil {
				s.log.Error("player language lookup failed", err, logrus.Fields{"player": playerID})
			}
			return nil, err
		}
		if !found {
			return nil, nil
		}
		p := toPref(m)
		s.mu.Lock()
		s.cache[playerID] = p
		s.mu.Unlock()
		return &p, nil
	})
}

// Set writes through: cache is updated synchronously, persistence is
// dispatched to the worker pool (spec.md §4.H, §5).
func (s *Store) Set(playerID, language string, autoDetected bool) *capability.Future[struct{}] {
	now := time.Now().UTC()
	s.mu.Lock()
	existing, had := s.cache[playerID]
	p := Pref{PlayerID: playerID, Language: language, AutoDetected: autoDetected, UpdatedAt: now}
	if had {
		p.FirstSeenAt = existing.FirstSeenAt
	} else {
		p.FirstSeenAt = now
	}
	s.cache[playerID] = p
	s.mu.Unlock()

	return s.scheduler.RunAsync(func() error {
		if err := s.store.upsert(fromPref(p)); err != nil {
			if s.log != nil {
				s.log.Error("player language persist failed", err, logrus.Fields{"player": playerID})
			}
			return err
		}
		return nil
	})
}

// Remove deletes a preference from cache and database, reporting
// whether it was cached or a database row was deleted.
func (s *Store) Remove(playerID string) *capability.Future[bool] {
	s.mu.Lock()
	_, had := s.cache[playerID]
	delete(s.cache, playerID)
	s.mu.Unlock()

	return capability.RunAsyncTyped(s.scheduler, func() (bool, error) {
		removed, err := s.store.delete(playerID)
		if err != nil {
			return false, err
		}
		return removed || had, nil
	})
}

// ListByLanguage returns every player id currently set to language,
// from the authoritative database (not the partial in-memory cache).
func (s *Store) ListByLanguage(language string) *capability.Future[[]string] {
	return capability.RunAsyncTyped(s.scheduler, func() ([]string, error) {
		all, err := s.store.all()
		if err != nil {
			return nil, err
		}
		var ids []string
		for _, m := range all {
			if m.Language == language {
				ids = append(ids, m.UUID)
			}
		}
		return ids, nil
	})
}

// Histogram returns a count of players per language.
func (s *Store) Histogram() *capability.Future[map[string]int] {
	return capability.RunAsyncTyped(s.scheduler, func() (map[string]int, error) {
		all, err := s.store.all()
		if err != nil {
			return nil, err
		}
		hist := make(map[string]int)
		for _, m := range all {
			hist[m.Language]++
		}
		return hist, nil
	})
}

// SaveAll flushes the entire in-memory cache to the database, used on
// graceful shutdown (spec.md §5: "graceful shutdown flushes cached
// player preferences with a 10s deadline").
func (s *Store) SaveAll() *capability.Future[struct{}] {
	s.mu.RLock()
	snapshot := make([]Pref, 0, len(s.cache))
	for _, p := range s.cache {
		snapshot = append(snapshot, p)
	}
	s.mu.RUnlock()

	return s.scheduler.RunAsync(func() error {
		var firstErr error
		for _, p := range snapshot {
			if err := s.store.upsert(fromPref(p)); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				if s.log != nil {
					s.log.Error("saveAll persist failed", err, logrus.Fields{"player": p.PlayerID})
				}
			}
		}
		return firstErr
	})
}

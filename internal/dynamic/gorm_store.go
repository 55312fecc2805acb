package dynamic

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/afterlands/langforge/internal/apperr"
	"github.com/afterlands/langforge/internal/plural"
	"github.com/afterlands/langforge/internal/sqlitestore"
)

// model is the GORM row shape for dynamic_translations
// (spec.md §6: dynamic_translations(id PK, namespace, translation_key,
// language, text, plural_{zero,one,two,few,many,other}, source,
// status, sync_status, crowdin_hash, last_synced_at, created_at,
// updated_at, UNIQUE(namespace, translation_key, language),
// INDEX(namespace), INDEX(language), INDEX(sync_status)).
type model struct {
	ID             uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Namespace      string `gorm:"column:namespace;index;uniqueIndex:uq_dynamic_translation"`
	TranslationKey string `gorm:"column:translation_key;uniqueIndex:uq_dynamic_translation"`
	Language       string `gorm:"column:language;index;uniqueIndex:uq_dynamic_translation"`
	Text           string `gorm:"column:text"`

	PluralZero  *string `gorm:"column:plural_zero"`
	PluralOne   *string `gorm:"column:plural_one"`
	PluralTwo   *string `gorm:"column:plural_two"`
	PluralFew   *string `gorm:"column:plural_few"`
	PluralMany  *string `gorm:"column:plural_many"`
	PluralOther *string `gorm:"column:plural_other"`

	Source       string     `gorm:"column:source"`
	Status       string     `gorm:"column:status"`
	SyncStatus   string     `gorm:"column:sync_status;index"`
	CrowdinHash  string     `gorm:"column:crowdin_hash"`
	LastSyncedAt *time.Time `gorm:"column:last_synced_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (model) TableName() string { return "dynamic_translations" }

// conflictModel is the GORM row shape for the conflict ledger added by
// SPEC_FULL.md (not named in spec.md's logical schema; additive).
type conflictModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	Namespace  string    `gorm:"column:namespace;index"`
	Key        string    `gorm:"column:translation_key"`
	Language   string    `gorm:"column:language"`
	LocalText  string    `gorm:"column:local_text"`
	RemoteText string    `gorm:"column:remote_text"`
	DetectedAt time.Time `gorm:"column:detected_at"`
}

func (conflictModel) TableName() string { return "translation_conflicts" }

// ConflictRecord is the public shape returned by ListConflicts.
type ConflictRecord struct {
	ID         string
	Namespace  string
	Key        string
	Language   string
	LocalText  string
	RemoteText string
	DetectedAt time.Time
}

func applyPluralColumns(m *model, forms map[plural.Category]string) {
	assign := func(dst **string, text string, ok bool) {
		if ok {
			v := text
			*dst = &v
		} else {
			*dst = nil
		}
	}
	zero, hasZero := forms[plural.Zero]
	one, hasOne := forms[plural.One]
	two, hasTwo := forms[plural.Two]
	few, hasFew := forms[plural.Few]
	many, hasMany := forms[plural.Many]
	other, hasOther := forms[plural.Other]
	assign(&m.PluralZero, zero, hasZero)
	assign(&m.PluralOne, one, hasOne)
	assign(&m.PluralTwo, two, hasTwo)
	assign(&m.PluralFew, few, hasFew)
	assign(&m.PluralMany, many, hasMany)
	assign(&m.PluralOther, other, hasOther)
}

// pluralColumnsToMap assembles the plural forms map when any column is
// non-null (spec.md §4.I: "on read, any non-null plural column
// triggers map assembly").
func pluralColumnsToMap(m model) map[plural.Category]string {
	cols := map[plural.Category]*string{
		plural.Zero: m.PluralZero, plural.One: m.PluralOne, plural.Two: m.PluralTwo,
		plural.Few: m.PluralFew, plural.Many: m.PluralMany, plural.Other: m.PluralOther,
	}
	var any bool
	for _, v := range cols {
		if v != nil {
			any = true
			break
		}
	}
	if !any {
		return nil
	}
	out := make(map[plural.Category]string)
	for cat, v := range cols {
		if v != nil {
			out[cat] = *v
		}
	}
	return out
}

type dbBackend interface {
	upsert(m *model) error
	delete(ns, key, lang string) (bool, error)
	deleteNamespace(ns string) (int, error)
	count(ns string) (int, error)
	exists(ns, key, lang string) (bool, error)
	updateSyncStatus(ns, key, lang string, status SyncStatus) error
	updateCrowdinHash(ns, key, lang, hash string, syncedAt time.Time) error
	findByStatus(ns string, status SyncStatus) ([]model, error)
	all(ns string) ([]model, error)
	batchUpdateSyncStatus(fullKeys []string, status SyncStatus) error
	listConflicts(ns string) ([]ConflictRecord, error)
	getConflict(id string) (ConflictRecord, error)
	saveConflict(rec ConflictRecord) error
	deleteConflict(id string) error
}

type gormBackend struct {
	conn *gorm.DB
}

func (g gormBackend) upsert(m *model) error {
	return sqlitestore.WithBusyRetry(sqlitestore.Config{}, func() error {
		return g.conn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "translation_key"}, {Name: "language"}},
			UpdateAll: true,
		}).Create(m).Error
	})
}

func (g gormBackend) delete(ns, key, lang string) (bool, error) {
	result := g.conn.Where("namespace = ? AND translation_key = ? AND language = ?", ns, key, lang).Delete(&model{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (g gormBackend) deleteNamespace(ns string) (int, error) {
	result := g.conn.Where("namespace = ?", ns).Delete(&model{})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (g gormBackend) count(ns string) (int, error) {
	var n int64
	err := g.conn.Model(&model{}).Where("namespace = ?", ns).Count(&n).Error
	return int(n), err
}

func (g gormBackend) exists(ns, key, lang string) (bool, error) {
	var n int64
	err := g.conn.Model(&model{}).Where("namespace = ? AND translation_key = ? AND language = ?", ns, key, lang).Count(&n).Error
	return n > 0, err
}

func (g gormBackend) updateSyncStatus(ns, key, lang string, status SyncStatus) error {
	return g.conn.Model(&model{}).
		Where("namespace = ? AND translation_key = ? AND language = ?", ns, key, lang).
		Update("sync_status", string(status)).Error
}

func (g gormBackend) updateCrowdinHash(ns, key, lang, hash string, syncedAt time.Time) error {
	return g.conn.Model(&model{}).
		Where("namespace = ? AND translation_key = ? AND language = ?", ns, key, lang).
		Updates(map[string]any{"crowdin_hash": hash, "last_synced_at": syncedAt}).Error
}

func (g gormBackend) findByStatus(ns string, status SyncStatus) ([]model, error) {
	var models []model
	err := g.conn.Where("namespace = ? AND sync_status = ?", ns, string(status)).Find(&models).Error
	return models, err
}

func (g gormBackend) all(ns string) ([]model, error) {
	var models []model
	err := g.conn.Where("namespace = ?", ns).Find(&models).Error
	return models, err
}

func (g gormBackend) batchUpdateSyncStatus(fullKeys []string, status SyncStatus) error {
	for _, fk := range fullKeys {
		ns, key, lang, ok := splitFullKey(fk)
		if !ok {
			continue
		}
		if err := g.updateSyncStatus(ns, key, lang, status); err != nil {
			return err
		}
	}
	return nil
}

func splitFullKey(fk string) (ns, key, lang string, ok bool) {
	// fullKey format is "ns/key/lang"; key itself never contains "/" in
	// this domain (YAML dotted keys use ".", not "/").
	var parts [3]string
	idx := 0
	start := 0
	for i := 0; i < len(fk); i++ {
		if fk[i] == '/' {
			if idx >= 2 {
				return "", "", "", false
			}
			parts[idx] = fk[start:i]
			idx++
			start = i + 1
		}
	}
	if idx != 2 {
		return "", "", "", false
	}
	parts[2] = fk[start:]
	return parts[0], parts[1], parts[2], true
}

func (g gormBackend) listConflicts(ns string) ([]ConflictRecord, error) {
	var rows []conflictModel
	if err := g.conn.Where("namespace = ?", ns).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ConflictRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, ConflictRecord{ID: r.ID, Namespace: r.Namespace, Key: r.Key, Language: r.Language, LocalText: r.LocalText, RemoteText: r.RemoteText, DetectedAt: r.DetectedAt})
	}
	return out, nil
}

func (g gormBackend) getConflict(id string) (ConflictRecord, error) {
	var r conflictModel
	err := g.conn.Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ConflictRecord{}, apperr.NotFound
	}
	if err != nil {
		return ConflictRecord{}, err
	}
	return ConflictRecord{ID: r.ID, Namespace: r.Namespace, Key: r.Key, Language: r.Language, LocalText: r.LocalText, RemoteText: r.RemoteText, DetectedAt: r.DetectedAt}, nil
}

func (g gormBackend) saveConflict(rec ConflictRecord) error {
	m := conflictModel{ID: rec.ID, Namespace: rec.Namespace, Key: rec.Key, Language: rec.Language, LocalText: rec.LocalText, RemoteText: rec.RemoteText, DetectedAt: rec.DetectedAt}
	return g.conn.Create(&m).Error
}

func (g gormBackend) deleteConflict(id string) error {
	return g.conn.Where("id = ?", id).Delete(&conflictModel{}).Error
}

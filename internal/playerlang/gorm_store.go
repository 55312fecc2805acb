package playerlang

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/afterlands/langforge/internal/sqlitestore"
)

// gormDB implements the db interface over a *gorm.DB, retrying writes
// on SQLITE_BUSY the way the teacher's SaveLog did
// (internal/logger/gorm_storage.go).
type gormDB struct {
	conn *gorm.DB
}

func (g gormDB) get(uuid string) (model, bool, error) {
	var m model
	err := g.conn.Where("uuid = ?", uuid).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model{}, false, nil
	}
	if err != nil {
		return model{}, false, err
	}
	return m, true, nil
}

// upsert inserts or fully replaces the row for m.UUID. plain Save
// would issue an UPDATE-only statement whenever the primary key field
// is already populated (it always is here), silently dropping writes
// for players seen for the first time — so this uses an explicit
// ON CONFLICT upsert instead.
func (g gormDB) upsert(m model) error {
	return sqlitestore.WithBusyRetry(sqlitestore.Config{}, func() error {
		return g.conn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			UpdateAll: true,
		}).Create(&m).Error
	})
}

func (g gormDB) delete(uuid string) (bool, error) {
	result := g.conn.Where("uuid = ?", uuid).Delete(&model{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (g gormDB) all() ([]model, error) {
	var models []model
	if err := g.conn.Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}

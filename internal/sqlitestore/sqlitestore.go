// Package sqlitestore opens a GORM-backed SQLite connection tuned the
// way the teacher's request-log storage tuned its own connection
// (internal/logger/gorm_storage.go): WAL journal mode, NORMAL
// synchronous, a bounded busy timeout, and a save-retry loop for
// SQLITE_BUSY. Both the Player Language Store (spec.md §4.H) and the
// Dynamic Store (spec.md §4.I) open their database through this
// package instead of duplicating the pragma tuning twice.
package sqlitestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Config controls connection sizing and retry behavior (spec.md §6
// database.* options).
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeoutMs   int
	MaxRetries      int
}

func (c Config) withDefaults() Config {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.BusyTimeoutMs == 0 {
		c.BusyTimeoutMs = 5000
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	return c
}

// Open connects to a WAL-mode SQLite database at cfg.Path, creating
// parent directories as needed, and returns the ready-to-migrate
// *gorm.DB plus the resolved Config (defaults filled in).
func Open(cfg Config) (*gorm.DB, Config, error) {
	cfg = cfg.withDefaults()

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cfg, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_timeout=%d&_busy_timeout=%d", cfg.Path, cfg.BusyTimeoutMs, cfg.BusyTimeoutMs)
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, cfg, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, cfg, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = memory",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeoutMs),
	}
	for _, p := range pragmas {
		if err := db.Exec(p).Error; err != nil {
			return nil, cfg, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	return db, cfg, nil
}

// WithBusyRetry runs fn, retrying with backoff when SQLite reports the
// database is locked/busy, mirroring the teacher's SaveLog retry loop.
func WithBusyRetry(cfg Config, fn func() error) error {
	cfg = cfg.withDefaults()
	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if isBusyErr(err) && attempt < cfg.MaxRetries-1 {
			time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
			continue
		}
		return err
	}
	return lastErr
}

func isBusyErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

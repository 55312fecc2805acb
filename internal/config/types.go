package config

import (
	"time"

	"github.com/afterlands/langforge/internal/cache"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/namespace"
	"github.com/afterlands/langforge/internal/resolver"
	"github.com/afterlands/langforge/internal/sqlitestore"
	"github.com/afterlands/langforge/internal/syncengine"
	"github.com/afterlands/langforge/internal/webhook"
)

// Config is the root configuration surface (spec.md §6): language
// table, cache sizing, missing-key behavior, database location, and
// Crowdin integration. Loaded from a single YAML file at startup.
type Config struct {
	DataRoot string         `yaml:"data-root"`
	Logging  LoggingConfig  `yaml:"logging"`
	Language LanguageConfig `yaml:"language"`
	Cache    CacheConfig    `yaml:"cache"`
	Missing  MissingConfig  `yaml:"missing"`
	Database DatabaseConfig `yaml:"database"`
	Crowdin  CrowdinConfig  `yaml:"crowdin"`
}

// LoggingConfig configures the structured logger every subsystem
// shares (spec.md §1 ambient stack).
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// LanguageConfig declares the default language and the full set of
// languages the deployment serves.
type LanguageConfig struct {
	Default   string                         `yaml:"default"`
	Languages map[string]LanguageEntryConfig `yaml:"languages"`
}

// LanguageEntryConfig describes one entry in language.languages.<code>.
type LanguageEntryConfig struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}

// CacheConfig sizes the L1 (resolved string) and L3 (compiled
// template) tiers of the Tiered Cache (spec.md §4.D).
type CacheConfig struct {
	L1 CacheTierConfig `yaml:"l1"`
	L3 CacheTierConfig `yaml:"l3"`
}

type CacheTierConfig struct {
	MaxSize    int `yaml:"max-size"`
	TTLSeconds int `yaml:"ttl-seconds"`
}

// MissingConfig controls what the Resolver does on a missing key
// (spec.md §4.E).
type MissingConfig struct {
	ShowKey bool   `yaml:"show-key"`
	Format  string `yaml:"format"`
	Log     bool   `yaml:"log"`
}

// DatabaseConfig locates the SQLite store backing the Player Language
// Store and Dynamic Store (spec.md §4.G, §4.H).
type DatabaseConfig struct {
	Datasource string               `yaml:"datasource"`
	Tables     DatabaseTablesConfig `yaml:"tables"`
}

type DatabaseTablesConfig struct {
	PlayerLanguage      string `yaml:"player-language"`
	DynamicTranslations string `yaml:"dynamic-translations"`
}

// CrowdinConfig controls whether and how the Sync Engine and Webhook
// Receiver talk to Crowdin (spec.md §4.L, §4.M).
type CrowdinConfig struct {
	Enabled                 bool                 `yaml:"enabled"`
	Token                   string               `yaml:"token"`
	ProjectID               string               `yaml:"project-id"`
	ServerID                string               `yaml:"server-id"`
	NamespaceDirectories    map[string]string    `yaml:"namespace-directories"`
	AutoSyncIntervalMinutes int                  `yaml:"auto-sync-interval-minutes"`
	ConflictResolution      string               `yaml:"conflict-resolution"` // "remote_wins" | "local_wins" | "manual"
	Webhook                 CrowdinWebhookConfig `yaml:"webhook"`
	UploadTranslations      bool                 `yaml:"upload-translations"`
	HotReload               bool                 `yaml:"hot-reload"`
	BackupBeforeSync        bool                 `yaml:"backup-before-sync"`
}

type CrowdinWebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Secret  string `yaml:"secret"`
}

// CrowdinYML is the project file read separately from the main
// config (spec.md §6, mirroring Crowdin's own crowdin.yml convention):
// source language, locale remapping, which namespaces participate in
// sync, and upload/download knobs.
type CrowdinYML struct {
	SourceLanguage string                `yaml:"source-language"`
	LocaleMapping  map[string]string     `yaml:"locale-mapping"`
	SyncNamespaces []string              `yaml:"sync-namespaces"`
	Advanced       CrowdinAdvancedConfig `yaml:"advanced"`
	Upload         CrowdinUploadConfig   `yaml:"upload"`
	Download       CrowdinDownloadConfig `yaml:"download"`
}

type CrowdinAdvancedConfig struct {
	BatchSize      int `yaml:"batch-size"`
	TimeoutSeconds int `yaml:"timeout-seconds"`
	MaxRetries     int `yaml:"max-retries"`
}

type CrowdinUploadConfig struct {
	AutoUpload    bool   `yaml:"auto-upload"`
	UpdateStrings bool   `yaml:"update-strings"`
	CleanupMode   string `yaml:"cleanup-mode"`
}

type CrowdinDownloadConfig struct {
	SkipUntranslated   bool `yaml:"skip-untranslated"`
	ExportApprovedOnly bool `yaml:"export-approved-only"`
}

// ToCacheConfig converts CacheConfig into the cache package's own
// Config, the way the teacher's TimeoutConfig converts into
// ProxyTimeoutConfig/HealthCheckTimeoutConfig for its own consumers.
func (c CacheConfig) ToCacheConfig() cache.Config {
	return cache.Config{
		L1MaxSize: c.L1.MaxSize,
		L1TTL:     time.Duration(c.L1.TTLSeconds) * time.Second,
		L3MaxSize: c.L3.MaxSize,
		L3TTL:     time.Duration(c.L3.TTLSeconds) * time.Second,
	}
}

// ToResolverConfig converts Config into resolver.Config.
func (c *Config) ToResolverConfig() resolver.Config {
	return resolver.Config{
		DefaultLanguage: c.Language.Default,
		MissingFormat:   c.Missing.Format,
		LogMissing:      c.Missing.Log,
	}
}

// ToNamespaceLanguages converts the language table into the ordered
// []namespace.LanguageConfig the Namespace Manager expects.
func (c *Config) ToNamespaceLanguages() []namespace.LanguageConfig {
	out := make([]namespace.LanguageConfig, 0, len(c.Language.Languages))
	for code, entry := range c.Language.Languages {
		out = append(out, namespace.LanguageConfig{Code: code, Enabled: entry.Enabled})
	}
	return out
}

// ToPlayerLanguageStoreConfig converts DatabaseConfig into the
// sqlitestore.Config backing the Player Language Store.
func (c DatabaseConfig) ToPlayerLanguageStoreConfig() sqlitestore.Config {
	return sqlitestore.Config{Path: c.Datasource}
}

// ToDynamicStoreConfig converts DatabaseConfig into the
// sqlitestore.Config backing the Dynamic Store. Both stores currently
// share one SQLite file distinguished by table name; a deployment
// that wants physical separation points Datasource at two different
// files via two Config values.
func (c DatabaseConfig) ToDynamicStoreConfig() sqlitestore.Config {
	return sqlitestore.Config{Path: c.Datasource}
}

// ToSyncEngineConfig merges the main config's crowdin.* section with
// the sibling crowdin.yml file into the single syncengine.Config the
// Sync Engine expects.
func (c *Config) ToSyncEngineConfig(yml CrowdinYML) syncengine.Config {
	return syncengine.Config{
		SourceLanguage:       yml.SourceLanguage,
		ServerID:             c.Crowdin.ServerID,
		NamespaceDirectories: c.Crowdin.NamespaceDirectories,
		LocaleMapping:        yml.LocaleMapping,
		ConflictPolicy:       conflictPolicyFromString(c.Crowdin.ConflictResolution),
		SkipUntranslated:     yml.Download.SkipUntranslated,
		ExportApprovedOnly:   yml.Download.ExportApprovedOnly,
		BuildTimeout:         time.Duration(yml.Advanced.TimeoutSeconds) * time.Second,
		SyncNamespaces:       yml.SyncNamespaces,
	}
}

func conflictPolicyFromString(s string) syncengine.ConflictPolicy {
	switch s {
	case "remote_wins":
		return syncengine.RemoteWins
	case "local_wins":
		return syncengine.LocalWins
	default:
		return syncengine.Manual
	}
}

// ToWebhookConfig converts the crowdin.webhook section into
// webhook.Config.
func (c *Config) ToWebhookConfig() webhook.Config {
	return webhook.Config{
		Port:   c.Crowdin.Webhook.Port,
		Secret: c.Crowdin.Webhook.Secret,
	}
}

// ToLoggingConfig converts LoggingConfig into logging.Config.
func (c LoggingConfig) ToLoggingConfig() logging.Config {
	return logging.Config{Level: c.Level, JSON: c.JSON}
}

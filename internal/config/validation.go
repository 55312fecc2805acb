package config

import (
	"github.com/afterlands/langforge/internal/apperr"
	"github.com/afterlands/langforge/internal/registry"
)

// ValidateConfig is the exported entry point; validateConfig backfills
// defaults in place and rejects anything that cannot be defaulted.
func ValidateConfig(config *Config) error {
	return validateConfig(config)
}

func validateConfig(config *Config) error {
	if config.DataRoot == "" {
		config.DataRoot = "./data"
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	if err := validateLanguageConfig(&config.Language); err != nil {
		return err
	}
	if err := validateCacheConfig(&config.Cache); err != nil {
		return err
	}
	validateMissingConfig(&config.Missing)
	if err := validateDatabaseConfig(&config.Database); err != nil {
		return err
	}
	if err := validateCrowdinConfig(&config.Crowdin); err != nil {
		return err
	}
	return nil
}

func validateLanguageConfig(lc *LanguageConfig) error {
	if lc.Default == "" {
		return apperr.Config("language.default is required")
	}
	if !registry.ValidLanguageCode(lc.Default) {
		return apperr.Config("language.default %q must match ll_cc (e.g. en_us)", lc.Default)
	}
	if lc.Languages == nil {
		lc.Languages = make(map[string]LanguageEntryConfig)
	}
	for code := range lc.Languages {
		if !registry.ValidLanguageCode(code) {
			return apperr.Config("language.languages key %q must match ll_cc (e.g. en_us)", code)
		}
	}
	if _, ok := lc.Languages[lc.Default]; !ok {
		lc.Languages[lc.Default] = LanguageEntryConfig{Name: lc.Default, Enabled: true}
	}
	return nil
}

func validateCacheConfig(cc *CacheConfig) error {
	if cc.L1.MaxSize <= 0 {
		cc.L1.MaxSize = 10000
	}
	if cc.L1.TTLSeconds <= 0 {
		cc.L1.TTLSeconds = 300
	}
	if cc.L3.MaxSize <= 0 {
		cc.L3.MaxSize = 2000
	}
	if cc.L3.TTLSeconds <= 0 {
		cc.L3.TTLSeconds = 600
	}
	return nil
}

func validateMissingConfig(mc *MissingConfig) {
	if mc.Format == "" {
		mc.Format = "[Missing: {key}]"
	}
}

func validateDatabaseConfig(dc *DatabaseConfig) error {
	if dc.Datasource == "" {
		dc.Datasource = "./data/i18n.db"
	}
	if dc.Tables.PlayerLanguage == "" {
		dc.Tables.PlayerLanguage = "player_language"
	}
	if dc.Tables.DynamicTranslations == "" {
		dc.Tables.DynamicTranslations = "dynamic_translations"
	}
	return nil
}

var validConflictResolutions = map[string]bool{
	"":            true,
	"remote_wins": true,
	"local_wins":  true,
	"manual":      true,
}

func validateCrowdinConfig(cc *CrowdinConfig) error {
	if cc.ConflictResolution == "" {
		cc.ConflictResolution = "manual"
	}
	if !validConflictResolutions[cc.ConflictResolution] {
		return apperr.Config("invalid crowdin.conflict-resolution %q, must be one of: remote_wins, local_wins, manual", cc.ConflictResolution)
	}

	if !cc.Enabled {
		return nil
	}

	if cc.Token == "" {
		return apperr.Config("crowdin.token is required when crowdin.enabled is true")
	}
	if cc.ProjectID == "" {
		return apperr.Config("crowdin.project-id is required when crowdin.enabled is true")
	}
	if cc.AutoSyncIntervalMinutes < 0 {
		return apperr.Config("crowdin.auto-sync-interval-minutes must be >= 0")
	}
	if cc.Webhook.Enabled {
		if cc.Webhook.Port <= 0 || cc.Webhook.Port > 65535 {
			return apperr.Config("crowdin.webhook.port %d is out of range", cc.Webhook.Port)
		}
		if cc.Webhook.Secret == "" {
			return apperr.Config("crowdin.webhook.secret is required when crowdin.webhook.enabled is true")
		}
	}
	return nil
}

// ValidateCrowdinYML backfills crowdin.yml defaults and rejects an
// unusable project file. Called only once the caller knows Crowdin
// sync is actually enabled.
func ValidateCrowdinYML(yml *CrowdinYML) error {
	if yml.SourceLanguage != "" && !registry.ValidLanguageCode(yml.SourceLanguage) {
		return apperr.Config("crowdin.yml source-language %q must match ll_cc (e.g. en_us)", yml.SourceLanguage)
	}
	if yml.Advanced.BatchSize <= 0 {
		yml.Advanced.BatchSize = 500
	}
	if yml.Advanced.TimeoutSeconds <= 0 {
		yml.Advanced.TimeoutSeconds = 300
	}
	if yml.Advanced.MaxRetries <= 0 {
		yml.Advanced.MaxRetries = 3
	}
	if yml.Upload.CleanupMode == "" {
		yml.Upload.CleanupMode = "none"
	}
	return nil
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/afterlands/langforge/internal/apperr"
)

// LoadConfig reads filename, generating and writing a commented
// default configuration first if the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		if err := generateDefaultConfig(filename); err != nil {
			return nil, apperr.IO(fmt.Sprintf("generate default config at %s", filename), err)
		}
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, apperr.IO(fmt.Sprintf("read config %s", filename), err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, apperr.Parse(filename, err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadCrowdinYML reads the separate Crowdin project file. A missing
// file is not an error: it returns the zero value without running
// validation. Validation does not reject an empty source-language.
func LoadCrowdinYML(filename string) (*CrowdinYML, error) {
	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return &CrowdinYML{}, nil
	}
	if err != nil {
		return nil, apperr.IO(fmt.Sprintf("read crowdin config %s", filename), err)
	}

	var yml CrowdinYML
	if err := yaml.Unmarshal(data, &yml); err != nil {
		return nil, apperr.Parse(filename, err)
	}
	if err := ValidateCrowdinYML(&yml); err != nil {
		return nil, err
	}
	return &yml, nil
}

// SaveConfig validates config, then writes it to filename, backing up
// any existing file by renaming it to filename+".backup" first.
func SaveConfig(config *Config, filename string) error {
	if err := ValidateConfig(config); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return apperr.IO("marshal config", err)
	}

	if _, err := os.Stat(filename); err == nil {
		if err := os.Rename(filename, filename+".backup"); err != nil {
			return apperr.IO(fmt.Sprintf("back up existing config %s", filename), err)
		}
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return apperr.IO(fmt.Sprintf("write config %s", filename), err)
	}
	return nil
}

func generateDefaultConfig(filename string) error {
	cfg := &Config{
		DataRoot: "./data",
		Logging:  LoggingConfig{Level: "info"},
		Language: LanguageConfig{
			Default: "en_us",
			Languages: map[string]LanguageEntryConfig{
				"en_us": {Name: "English", Enabled: true},
				"pt_br": {Name: "Portuguese (Brazil)", Enabled: true},
			},
		},
		Cache: CacheConfig{
			L1: CacheTierConfig{MaxSize: 10000, TTLSeconds: 300},
			L3: CacheTierConfig{MaxSize: 2000, TTLSeconds: 600},
		},
		Missing: MissingConfig{
			ShowKey: false,
			Format:  "[Missing: {key}]",
			Log:     true,
		},
		Database: DatabaseConfig{
			Datasource: "./data/i18n.db",
			Tables: DatabaseTablesConfig{
				PlayerLanguage:      "player_language",
				DynamicTranslations: "dynamic_translations",
			},
		},
		Crowdin: CrowdinConfig{
			Enabled:                 false,
			ConflictResolution:      "manual",
			AutoSyncIntervalMinutes: 60,
			Webhook: CrowdinWebhookConfig{
				Enabled: false,
				Port:    8081,
			},
			UploadTranslations: true,
			HotReload:          true,
			BackupBeforeSync:   true,
		},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return apperr.IO("marshal default config", err)
	}

	header := []byte("# langforge configuration. See SPEC_FULL.md §6 for the full option reference.\n\n")
	return os.WriteFile(filename, append(header, data...), 0o644)
}

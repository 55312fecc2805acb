package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigGeneratesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Language.Default != "en_us" {
		t.Fatalf("got default language %q", cfg.Language.Default)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}
}

func TestValidateConfigRejectsInvalidLanguageCode(t *testing.T) {
	cfg := &Config{Language: LanguageConfig{Default: "english"}}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateConfigBackfillsCacheDefaults(t *testing.T) {
	cfg := &Config{Language: LanguageConfig{Default: "en_us"}}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cache.L1.MaxSize != 10000 || cfg.Cache.L3.MaxSize != 2000 {
		t.Fatalf("got %+v", cfg.Cache)
	}
}

func TestValidateConfigRequiresCrowdinTokenWhenEnabled(t *testing.T) {
	cfg := &Config{
		Language: LanguageConfig{Default: "en_us"},
		Crowdin:  CrowdinConfig{Enabled: true},
	}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected error")
	}
}

func TestSaveConfigBacksUpExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path + ".backup"); err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
}

func TestLoadCrowdinYMLReturnsZeroValueWhenMissing(t *testing.T) {
	yml, err := LoadCrowdinYML(filepath.Join(t.TempDir(), "crowdin.yml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if yml.SourceLanguage != "" {
		t.Fatalf("got %+v", yml)
	}
}

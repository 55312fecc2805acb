package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/afterlands/langforge/internal/cache"
	"github.com/afterlands/langforge/internal/capability"
	"github.com/afterlands/langforge/internal/dynamic"
	"github.com/afterlands/langforge/internal/events"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/namespace"
	"github.com/afterlands/langforge/internal/playerlang"
	"github.com/afterlands/langforge/internal/registry"
	"github.com/afterlands/langforge/internal/resolver"
	"github.com/afterlands/langforge/internal/sqlitestore"
	"github.com/afterlands/langforge/internal/syncengine"
)

type recordingMessenger struct {
	toPlayer  []string
	broadcast []string
}

func (m *recordingMessenger) SendToPlayer(playerID, text string) {
	m.toPlayer = append(m.toPlayer, playerID+": "+text)
}

func (m *recordingMessenger) Broadcast(permission, text string) {
	m.broadcast = append(m.broadcast, permission+": "+text)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestEngine(t *testing.T) (*Engine, *recordingMessenger) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "languages", "pt_br", "shop"), "shop.yml", "hello: \"Olá, {name}!\"\nitems:\n  one: \"1 item\"\n  other: \"{count} items\"\n")

	reg := registry.New()
	tiered := cache.NewTiered(cache.Config{L1MaxSize: 100, L3MaxSize: 100})
	bus := events.NewBus()
	host := capability.NewInProcessScheduler(4)
	log := logging.NewDiscard()

	langs := []namespace.LanguageConfig{{Code: "pt_br", Enabled: true}, {Code: "en_us", Enabled: true}}
	nsManager := namespace.NewManager(filepath.Join(root, "languages"), langs, "pt_br", reg, tiered, bus, host, log)
	if _, err := nsManager.RegisterNamespace("shop", "").MustWait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dyn, err := dynamic.Open(sqlitestore.Config{Path: filepath.Join(root, "d.db")}, reg, tiered, bus, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	players, err := playerlang.Open(sqlitestore.Config{Path: filepath.Join(root, "p.db")}, host, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := resolver.New(resolver.Config{DefaultLanguage: "pt_br"}, reg, tiered, log)
	sync := syncengine.New(syncengine.Config{SourceLanguage: "pt_br", BackupDir: filepath.Join(root, "backups")}, nil, reg, dyn, log)
	messenger := &recordingMessenger{}

	engine := New(Dependencies{
		DataRoot:        root,
		DefaultLanguage: "pt_br",
		SourceLanguage:  "pt_br",
		Registry:        reg,
		Resolver:        res,
		Cache:           tiered,
		Players:         players,
		Namespaces:      nsManager,
		Dynamic:         dyn,
		Sync:            sync,
		Host:            host,
		Messenger:       messenger,
		Log:             log,
	})
	return engine, messenger
}

func TestGetResolvesWithFallbackToDefaultLanguage(t *testing.T) {
	engine, _ := newTestEngine(t)

	got := engine.Get("player-1", "shop", "hello", map[string]string{"name": "Ana"})
	if got != "Olá, Ana!" {
		t.Fatalf("got %q", got)
	}
}

func TestGetCountSelectsPluralForm(t *testing.T) {
	engine, _ := newTestEngine(t)

	if got := engine.GetCount("player-1", "shop", "items", 1, nil); got != "1 item" {
		t.Fatalf("got %q", got)
	}
	if got := engine.GetCount("player-1", "shop", "items", 5, nil); got != "5 items" {
		t.Fatalf("got %q", got)
	}
}

func TestSendDeliversThroughMessenger(t *testing.T) {
	engine, messenger := newTestEngine(t)

	engine.Send("player-1", "shop", "hello", map[string]string{"name": "Ana"})

	if len(messenger.toPlayer) != 1 || messenger.toPlayer[0] != "player-1: Olá, Ana!" {
		t.Fatalf("got %+v", messenger.toPlayer)
	}
}

func TestBroadcastDeliversToMessenger(t *testing.T) {
	engine, messenger := newTestEngine(t)

	engine.Broadcast("shop", "hello", "shop.notify", map[string]string{"name": "everyone"})

	if len(messenger.broadcast) != 1 || messenger.broadcast[0] != "shop.notify: Olá, everyone!" {
		t.Fatalf("got %+v", messenger.broadcast)
	}
}

func TestSetPlayerLanguageRejectsInvalidCode(t *testing.T) {
	engine, _ := newTestEngine(t)

	if err := engine.SetPlayerLanguage("player-1", "not-a-code"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSetPlayerLanguageChangesResolution(t *testing.T) {
	engine, _ := newTestEngine(t)

	if err := engine.SetPlayerLanguage("player-1", "en_us"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := engine.GetPlayerLanguage("player-1"); got != "en_us" {
		t.Fatalf("got %q", got)
	}
}

func TestCreateTranslationIsVisibleThroughGet(t *testing.T) {
	engine, _ := newTestEngine(t)

	if err := engine.CreateTranslation("shop", "new_key", "pt_br", "Novo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := engine.Get("player-1", "shop", "new_key", nil); got != "Novo" {
		t.Fatalf("got %q", got)
	}
}

func TestDeleteAllTranslationsReportsCount(t *testing.T) {
	engine, _ := newTestEngine(t)

	if err := engine.CreateTranslation("shop", "a", "pt_br", "A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := engine.CreateTranslation("shop", "b", "pt_br", "B"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, err := engine.DeleteAllTranslations("shop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d", n)
	}
}

func TestExportNamespaceRoundTripsThroughImport(t *testing.T) {
	engine, _ := newTestEngine(t)

	data, err := engine.ExportNamespace("pt_br", "shop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "exported.yml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	imported, skipped, err := engine.ImportTranslations(path, "shop", "pt_br", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if imported != 0 {
		t.Fatalf("expected every key to already exist and be skipped, got imported=%d skipped=%d", imported, skipped)
	}
}

// TestRegisterNamespaceExtractsIntoSourceLanguageNotDefault covers
// spec.md §6's documented typical case where language.default and the
// Crowdin source-language differ: extracted owner content must land
// in the source language's directory, not the resolver's default.
func TestRegisterNamespaceExtractsIntoSourceLanguageNotDefault(t *testing.T) {
	root := t.TempDir()
	ownerDir := t.TempDir()
	writeFile(t, ownerDir, "messages.yml", "greeting: Hello\n")

	reg := registry.New()
	tiered := cache.NewTiered(cache.Config{L1MaxSize: 100, L3MaxSize: 100})
	bus := events.NewBus()
	host := capability.NewInProcessScheduler(4)
	log := logging.NewDiscard()

	langs := []namespace.LanguageConfig{{Code: "en_us", Enabled: true}, {Code: "pt_br", Enabled: true}}
	nsManager := namespace.NewManager(filepath.Join(root, "languages"), langs, "pt_br", reg, tiered, bus, host, log)

	dyn, err := dynamic.Open(sqlitestore.Config{Path: filepath.Join(root, "d.db")}, reg, tiered, bus, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	players, err := playerlang.Open(sqlitestore.Config{Path: filepath.Join(root, "p.db")}, host, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := resolver.New(resolver.Config{DefaultLanguage: "en_us"}, reg, tiered, log)
	sync := syncengine.New(syncengine.Config{SourceLanguage: "pt_br"}, nil, reg, dyn, log)

	engine := New(Dependencies{
		DataRoot:        root,
		DefaultLanguage: "en_us",
		SourceLanguage:  "pt_br",
		Registry:        reg,
		Resolver:        res,
		Cache:           tiered,
		Players:         players,
		Namespaces:      nsManager,
		Dynamic:         dyn,
		Sync:            sync,
		Host:            host,
		Messenger:       &recordingMessenger{},
		Log:             log,
	})

	if _, err := engine.RegisterNamespace("owner", "greetings", ownerDir).MustWait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sourcePath := filepath.Join(root, "languages", "pt_br", "greetings", "messages.yml")
	if _, err := os.Stat(sourcePath); err != nil {
		t.Fatalf("expected extracted content at %s: %v", sourcePath, err)
	}

	defaultPath := filepath.Join(root, "languages", "en_us", "greetings", "messages.yml")
	if _, err := os.Stat(defaultPath); err == nil {
		t.Fatal("expected extracted content NOT to be written into the default language directory")
	}
}

func TestIsSyncInProgressReflectsEngineState(t *testing.T) {
	engine, _ := newTestEngine(t)

	if engine.IsSyncInProgress() {
		t.Fatal("expected no sync in progress initially")
	}
}

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/afterlands/langforge/internal/cache"
	"github.com/afterlands/langforge/internal/capability"
	"github.com/afterlands/langforge/internal/config"
	"github.com/afterlands/langforge/internal/crowdin"
	"github.com/afterlands/langforge/internal/dynamic"
	"github.com/afterlands/langforge/internal/events"
	"github.com/afterlands/langforge/internal/i18n"
	"github.com/afterlands/langforge/internal/logging"
	"github.com/afterlands/langforge/internal/namespace"
	"github.com/afterlands/langforge/internal/playerlang"
	"github.com/afterlands/langforge/internal/registry"
	"github.com/afterlands/langforge/internal/resolver"
	"github.com/afterlands/langforge/internal/scheduler"
	"github.com/afterlands/langforge/internal/syncengine"
	"github.com/afterlands/langforge/internal/web"
	"github.com/afterlands/langforge/internal/webhook"

	"github.com/gin-gonic/gin"
)

// adminNotifier relays scheduled-sync summaries to every player
// holding the admin permission, via the host's Messenger.
type adminNotifier struct {
	messenger capability.Messenger
}

func (n adminNotifier) Notify(summary string) {
	n.messenger.Broadcast("langforge.admin", summary)
}

var (
	configFile     = flag.String("config", "config.yml", "Configuration file path")
	crowdinFile    = flag.String("crowdin-config", "crowdin.yml", "Crowdin project file path")
	version        = flag.Bool("version", false, "Show version information")
	workerPoolSize = flag.Int("workers", 8, "Async worker pool size for the demo in-process host")
	adminPort      = flag.Int("admin-port", 0, "Port for the optional admin HTTP API (0 disables it)")

	Version = "dev"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("langforge %s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Logging.ToLoggingConfig())

	host := capability.NewInProcessScheduler(*workerPoolSize)
	messenger := capability.NewLogMessenger(func(line string) { logger.Info(line) })

	engine, syncEngine, syncCfg, err := buildEngine(cfg, host, messenger, logger)
	if err != nil {
		log.Fatalf("failed to build i18n engine: %v", err)
	}

	var webhookServer *webhook.Server
	if cfg.Crowdin.Enabled && cfg.Crowdin.Webhook.Enabled {
		webhookServer = webhook.New(cfg.ToWebhookConfig(), syncEngine, logger, namespaceForPathResolver(syncCfg))
		go func() {
			logger.Info(fmt.Sprintf("starting Crowdin webhook receiver on port %d", cfg.Crowdin.Webhook.Port))
			if err := webhookServer.ListenAndServe(); err != nil {
				logger.Error("webhook server stopped", err)
			}
		}()
	}

	if *adminPort > 0 {
		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(gin.Recovery())
		web.NewAdminServer(engine, Version).RegisterRoutes(router)
		go func() {
			logger.Info(fmt.Sprintf("starting admin API on port %d", *adminPort))
			if err := router.Run(fmt.Sprintf(":%d", *adminPort)); err != nil {
				logger.Error("admin API stopped", err)
			}
		}()
	}

	engine.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("\n=== langforge %s ===\n", Version)
	fmt.Printf("Default language: %s\n", cfg.Language.Default)
	fmt.Printf("Configuration file: %s\n", *configFile)
	if cfg.Crowdin.Enabled {
		fmt.Printf("Crowdin sync: enabled (project %s)\n", cfg.Crowdin.ProjectID)
	}
	fmt.Printf("\nPress Ctrl+C to stop...\n\n")

	<-quit
	fmt.Println("\nShutting down...")
	engine.Shutdown()
}

// buildEngine wires every subsystem named in spec.md §6 into a single
// i18n.Engine: Registry -> Tiered Cache -> Events Bus -> Namespace
// Manager -> Dynamic Store -> Player Language Store -> Resolver ->
// Sync Engine -> Scheduler -> Engine facade. This composition order matters: later
// subsystems depend on earlier ones, never the reverse.
func buildEngine(cfg *config.Config, host capability.Scheduler, messenger capability.Messenger, logger *logging.Logger) (*i18n.Engine, *syncengine.Engine, syncengine.Config, error) {
	reg := registry.New()
	tiered := cache.NewTiered(cfg.Cache.ToCacheConfig())
	bus := events.NewBus()

	// sourceLanguage is the authoritative "untranslated original" language
	// for this deployment — crowdin.yml's source-language when Crowdin sync
	// is configured, language.default otherwise. It is resolved once here
	// so the Namespace Manager's defaults-seeding and the Engine's content
	// extraction both write into the same language directory the Sync
	// Engine itself treats as the source.
	var yml *config.CrowdinYML
	sourceLanguage := cfg.Language.Default
	if cfg.Crowdin.Enabled {
		var err error
		yml, err = config.LoadCrowdinYML(*crowdinFile)
		if err != nil {
			return nil, nil, syncengine.Config{}, err
		}
		if yml.SourceLanguage != "" {
			sourceLanguage = yml.SourceLanguage
		}
	}

	languagesRoot := filepath.Join(cfg.DataRoot, "languages")
	nsManager := namespace.NewManager(languagesRoot, cfg.ToNamespaceLanguages(), sourceLanguage, reg, tiered, bus, host, logger)

	dyn, err := dynamic.Open(cfg.Database.ToDynamicStoreConfig(), reg, tiered, bus, logger)
	if err != nil {
		return nil, nil, syncengine.Config{}, err
	}

	players, err := playerlang.Open(cfg.Database.ToPlayerLanguageStoreConfig(), host, logger)
	if err != nil {
		return nil, nil, syncengine.Config{}, err
	}

	res := resolver.New(cfg.ToResolverConfig(), reg, tiered, logger)

	var crowdinClient *crowdin.Client
	var syncCfg syncengine.Config
	if cfg.Crowdin.Enabled {
		syncCfg = cfg.ToSyncEngineConfig(*yml)
		crowdinClient, err = crowdin.New(crowdin.Config{
			ProjectID:            cfg.Crowdin.ProjectID,
			Token:                cfg.Crowdin.Token,
			SourceLanguage:       yml.SourceLanguage,
			NamespaceDirectories: cfg.Crowdin.NamespaceDirectories,
			LocaleMapping:        yml.LocaleMapping,
			BatchSize:            yml.Advanced.BatchSize,
			Timeout:              time.Duration(yml.Advanced.TimeoutSeconds) * time.Second,
			MaxRetries:           yml.Advanced.MaxRetries,
		}, logger)
		if err != nil {
			return nil, nil, syncengine.Config{}, err
		}
	} else {
		syncCfg = syncengine.Config{SourceLanguage: sourceLanguage}
	}
	if cfg.Crowdin.BackupBeforeSync {
		syncCfg.BackupDir = filepath.Join(cfg.DataRoot, "backups")
	}
	syncEngine := syncengine.New(syncCfg, crowdinClient, reg, dyn, logger)

	var sched *scheduler.Scheduler
	if cfg.Crowdin.Enabled && cfg.Crowdin.AutoSyncIntervalMinutes > 0 {
		interval := time.Duration(cfg.Crowdin.AutoSyncIntervalMinutes) * time.Minute
		sched = scheduler.New(syncEngine, host, interval, logger, adminNotifier{messenger})
	}

	engine := i18n.New(i18n.Dependencies{
		DataRoot:        cfg.DataRoot,
		DefaultLanguage: cfg.Language.Default,
		SourceLanguage:  sourceLanguage,
		Registry:        reg,
		Resolver:        res,
		Cache:           tiered,
		Players:         players,
		Namespaces:      nsManager,
		Dynamic:         dyn,
		Sync:            syncEngine,
		Scheduler:       sched,
		Host:            host,
		Messenger:       messenger,
		Log:             logger,
	})

	return engine, syncEngine, syncCfg, nil
}

// namespaceForPathResolver builds a Crowdin file-path -> namespace
// lookup from the same directory policy the Sync Engine itself uses
// (syncengine.Config.DirectoryPath), so a webhook's reported file path
// maps back to exactly the namespace the Sync Engine uploaded it
// under.
func namespaceForPathResolver(syncCfg syncengine.Config) func(path string) (string, bool) {
	byPath := make(map[string]string, len(syncCfg.SyncNamespaces))
	for _, ns := range syncCfg.SyncNamespaces {
		byPath["/"+syncCfg.DirectoryPath(ns)] = ns
	}
	return func(path string) (string, bool) {
		ns, ok := byPath[path]
		return ns, ok
	}
}

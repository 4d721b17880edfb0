// Package app wires configuration, discovery, the catalog, the scorer,
// the broker, and the HTTP handlers into one runnable unit.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"actionbroker/internal/auth"
	"actionbroker/internal/broker"
	"actionbroker/internal/catalog"
	"actionbroker/internal/common"
	"actionbroker/internal/config"
	"actionbroker/internal/discovery"
	"actionbroker/internal/handlers"
	"actionbroker/internal/mcp"
	"actionbroker/internal/scoring"
)

// refreshTimeout bounds one background catalog refresh.
const refreshTimeout = 30 * time.Second

// App holds all application components and dependencies.
type App struct {
	Config *config.Config
	Logger *common.Logger

	Cache   *discovery.Cache
	Catalog *catalog.Service
	Broker  *broker.Broker

	// HTTP handlers
	HealthHandler    *handlers.HealthHandler
	VersionHandler   *handlers.VersionHandler
	AssistantHandler *handlers.AssistantHandler
	MCPHandler       *mcp.Handler

	watcher     *discovery.Watcher
	refreshDone chan struct{}
	closeOnce   sync.Once
}

// New initializes the application with all dependencies.
func New(cfg *config.Config, logger *common.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	// Validate environment setting
	env := strings.ToLower(strings.TrimSpace(cfg.Environment))
	if cfg.IsDevMode() {
		logger.Warn().Msg("RUNNING IN DEV MODE — writes auto-approved, do not use in production")
	} else if env != "prod" && env != "" {
		logger.Warn().
			Str("environment", cfg.Environment).
			Msg("unrecognized environment value, defaulting to prod behavior")
	}

	source, err := newSource(cfg, logger)
	if err != nil {
		return nil, err
	}

	caps, err := discovery.LoadCapabilities(cfg.Discovery.CapabilitiesFile, logger)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(cfg.Discovery.TTLSeconds) * time.Second
	a.Cache = discovery.NewCache(source, ttl, logger)
	a.Catalog = catalog.NewService(a.Cache, caps)

	scorer := scoring.New(scoringConfig(cfg))
	policy := broker.PolicyFromConfig(cfg)
	forwarder := broker.NewForwarder(cfg.HostApp.URL, time.Duration(cfg.HostApp.TimeoutSeconds)*time.Second, logger)
	a.Broker = broker.NewBroker(forwarder, policy, cfg.HostApp.PublicPrefix, cfg.Broker.ControlPlanePrefix, logger)

	extractor := auth.NewExtractor(cfg.Auth.JWTSecret, cfg.Auth.CookieName)

	a.HealthHandler = handlers.NewHealthHandler(logger, cfg.HostApp.URL)
	a.VersionHandler = handlers.NewVersionHandler()
	a.AssistantHandler = handlers.NewAssistantHandler(logger, extractor, a.Catalog, scorer, a.Broker)
	a.MCPHandler = mcp.NewHandler(a.Catalog, scorer, a.Broker, extractor, logger)

	// Route file watching is opt-in; a watcher that cannot start means the
	// operator's config did not take effect, so fail loudly.
	if cfg.Discovery.Watch && isFileSource(cfg) {
		watcher, err := discovery.NewWatcher(cfg.Discovery.RoutesRoot, a.Cache, logger)
		if err != nil {
			return nil, err
		}
		if err := watcher.Start(); err != nil {
			watcher.Close()
			return nil, err
		}
		a.watcher = watcher
	}

	a.refreshDone = make(chan struct{})
	go a.refreshLoop(a.Cache.TTL())

	logger.Info().Msg("application initialization complete")

	return a, nil
}

// refreshLoop re-syncs the MCP tool set with the catalog at the discovery
// cache's freshness cadence. Unchanged snapshots are skipped inside
// RefreshTools, so the ticker is cheap when nothing moves.
func (a *App) refreshLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.refreshDone:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			if err := a.MCPHandler.RefreshTools(ctx); err != nil {
				a.Logger.Warn().
					Str("error", err.Error()).
					Msg("background tool refresh failed")
			}
			cancel()
		}
	}
}

// Close stops the background refresh and the route watcher.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.refreshDone != nil {
			close(a.refreshDone)
		}
		if a.watcher != nil {
			err = a.watcher.Close()
		}
	})
	return err
}

// newSource selects the discovery source from configuration.
func newSource(cfg *config.Config, logger *common.Logger) (discovery.Source, error) {
	switch cfg.Discovery.Source {
	case "", "files":
		return discovery.NewFileSource(cfg.Discovery.RoutesRoot, cfg.Discovery.BasePath, logger), nil
	case "manifest":
		return discovery.NewManifestSource(cfg.Discovery.ManifestFile, logger), nil
	default:
		return nil, fmt.Errorf("unknown discovery source %q", cfg.Discovery.Source)
	}
}

func isFileSource(cfg *config.Config) bool {
	return cfg.Discovery.Source == "" || cfg.Discovery.Source == "files"
}

// scoringConfig maps the config vocabulary onto the scorer's types.
func scoringConfig(cfg *config.Config) scoring.Config {
	sc := scoring.Config{
		ControlPlanePrefix: cfg.Broker.ControlPlanePrefix,
		DefaultLimit:       cfg.Scoring.DefaultLimit,
	}
	for _, e := range cfg.Scoring.Entities {
		sc.Entities = append(sc.Entities, scoring.Entity{
			Name:    e.Name,
			Plural:  e.Plural,
			Segment: e.Segment,
		})
	}
	for _, i := range cfg.Scoring.Intents {
		sc.Intents = append(sc.Intents, scoring.Intent{
			Name:     i.Name,
			Verbs:    i.Verbs,
			Keywords: i.Keywords,
		})
	}
	return sc
}

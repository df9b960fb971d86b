// Package extension provides the Forge extension adapter for Marketplace.
//
// It implements the forge.Extension interface to integrate Marketplace
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.marketplace" or
// "marketplace" keys.
package extension

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/points"
	"github.com/xraph/marketplace/store"
	"github.com/xraph/marketplace/store/memory"
	httpapi "github.com/xraph/marketplace/transport/http"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "marketplace"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Procurement marketplace ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Marketplace as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *marketplace.Marketplace
	store      store.Store
	engineOpts []marketplace.Option
	handler    http.Handler
}

// New creates a new Marketplace Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Marketplace instance.
// This is nil until Register is called.
func (e *Extension) Engine() *marketplace.Marketplace { return e.engine }

// Handler returns the RPC handler mounted under the configured base path.
// This is nil until Register is called, or when routes are disabled.
func (e *Extension) Handler() http.Handler { return e.handler }

// Register implements [forge.Extension]. It loads configuration,
// initializes the marketplace engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = marketplace.New(e.store, e.buildEngineOpts()...)

	if err := vessel.Provide(fapp.Container(), func() (*marketplace.Marketplace, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes {
		return nil
	}

	r := chi.NewRouter()
	r.Mount(e.config.BasePath, httpapi.New(e.engine).Routes())
	e.handler = r

	return vessel.Provide(fapp.Container(), func() (http.Handler, error) {
		return e.handler, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("marketplace: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("marketplace: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs marketplace.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []marketplace.Option {
	opts := make([]marketplace.Option, 0, len(e.engineOpts)+8)

	opts = append(opts,
		marketplace.WithAutoMigrate(!e.config.DisableMigrate),
		marketplace.WithRelayInterval(e.config.RelayInterval),
		marketplace.WithRelayBatchSize(e.config.RelayBatchSize),
		marketplace.WithRelayBackoff(e.config.RelayBackoff, e.config.RelayMaxBackoff),
		marketplace.WithMaxRelayAttempts(e.config.MaxRelayAttempts),
		marketplace.WithPluginTimeout(e.config.PluginTimeout),
		marketplace.WithDefaultCosts(points.Costs{Listing: e.config.ListingCost, Quote: e.config.QuoteCost}),
	)
	if e.config.Policy != nil {
		opts = append(opts, marketplace.WithPolicy(*e.config.Policy))
	}

	// Pass-through options win over config.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("marketplace: configuration is required but not found in config files; " +
				"ensure 'extensions.marketplace' or 'marketplace' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("marketplace: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("relay_interval", e.config.RelayInterval),
		forge.F("relay_batch_size", e.config.RelayBatchSize),
		forge.F("max_relay_attempts", e.config.MaxRelayAttempts),
		forge.F("plugin_timeout", e.config.PluginTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.marketplace", "marketplace"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("marketplace: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("marketplace: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.RelayInterval == 0 {
		cfg.RelayInterval = defaults.RelayInterval
	}
	if cfg.RelayBatchSize == 0 {
		cfg.RelayBatchSize = defaults.RelayBatchSize
	}
	if cfg.RelayBackoff == 0 {
		cfg.RelayBackoff = defaults.RelayBackoff
	}
	if cfg.RelayMaxBackoff == 0 {
		cfg.RelayMaxBackoff = defaults.RelayMaxBackoff
	}
	if cfg.MaxRelayAttempts == 0 {
		cfg.MaxRelayAttempts = defaults.MaxRelayAttempts
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	if cfg.ListingCost == 0 && cfg.QuoteCost == 0 {
		cfg.ListingCost, cfg.QuoteCost = defaults.ListingCost, defaults.QuoteCost
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.RelayInterval == 0 {
		yamlConfig.RelayInterval = programmaticConfig.RelayInterval
	}
	if yamlConfig.RelayBatchSize == 0 {
		yamlConfig.RelayBatchSize = programmaticConfig.RelayBatchSize
	}
	if yamlConfig.RelayBackoff == 0 {
		yamlConfig.RelayBackoff = programmaticConfig.RelayBackoff
	}
	if yamlConfig.RelayMaxBackoff == 0 {
		yamlConfig.RelayMaxBackoff = programmaticConfig.RelayMaxBackoff
	}
	if yamlConfig.MaxRelayAttempts == 0 {
		yamlConfig.MaxRelayAttempts = programmaticConfig.MaxRelayAttempts
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	if yamlConfig.ListingCost == 0 && yamlConfig.QuoteCost == 0 {
		yamlConfig.ListingCost, yamlConfig.QuoteCost = programmaticConfig.ListingCost, programmaticConfig.QuoteCost
	}
	if yamlConfig.Policy == nil {
		yamlConfig.Policy = programmaticConfig.Policy
	}

	return mergeWithDefaults(yamlConfig)
}

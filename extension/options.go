package extension

import (
	"time"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/plugin"
	"github.com/xraph/marketplace/store"
)

// Option configures the Marketplace Forge extension.
type Option func(*Extension)

// WithStore sets the store for the marketplace engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithMarketplaceOption passes a marketplace.Option through to the underlying engine.
func WithMarketplaceOption(opt marketplace.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a marketplace plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, marketplace.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents the RPC handler from being provided.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for marketplace routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithRelay sets the relay interval and batch size.
func WithRelay(interval time.Duration, batchSize int) Option {
	return func(e *Extension) {
		e.config.RelayInterval = interval
		e.config.RelayBatchSize = batchSize
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithCosts sets the default listing and quote costs.
func WithCosts(listing, quote uint64) Option {
	return func(e *Extension) {
		e.config.ListingCost = listing
		e.config.QuoteCost = quote
	}
}

// WithPolicy replaces the admin override policy.
func WithPolicy(p marketplace.Policy) Option {
	return func(e *Extension) { e.config.Policy = &p }
}

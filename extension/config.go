package extension

import (
	"time"

	"github.com/xraph/marketplace"
)

// Config holds the Marketplace extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.marketplace" or "marketplace" keys).
type Config struct {
	// DisableRoutes prevents the RPC handler from being provided.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for marketplace routes (default: "/marketplace").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// RelayInterval is how often undelivered events are re-dispatched to
	// plugins (default: 10s).
	RelayInterval time.Duration `json:"relay_interval" mapstructure:"relay_interval" yaml:"relay_interval"`

	// RelayBatchSize is the number of pending events read per relay pass
	// (default: 100).
	RelayBatchSize int `json:"relay_batch_size" mapstructure:"relay_batch_size" yaml:"relay_batch_size"`

	// RelayBackoff is the wait before retrying a failed event; it doubles
	// per attempt up to RelayMaxBackoff (default: 1s, capped at 5m).
	RelayBackoff    time.Duration `json:"relay_backoff" mapstructure:"relay_backoff" yaml:"relay_backoff"`
	RelayMaxBackoff time.Duration `json:"relay_max_backoff" mapstructure:"relay_max_backoff" yaml:"relay_max_backoff"`

	// MaxRelayAttempts is the number of failed deliveries after which an
	// event is marked dead (default: 10).
	MaxRelayAttempts int `json:"max_relay_attempts" mapstructure:"max_relay_attempts" yaml:"max_relay_attempts"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// ListingCost and QuoteCost are the point costs used until SetCosts is
	// called (default: 1 each).
	ListingCost uint64 `json:"listing_cost" mapstructure:"listing_cost" yaml:"listing_cost"`
	QuoteCost   uint64 `json:"quote_cost" mapstructure:"quote_cost" yaml:"quote_cost"`

	// Policy overrides the admin override table. Nil keeps the default.
	Policy *marketplace.Policy `json:"policy,omitempty" mapstructure:"policy" yaml:"policy,omitempty"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:         "/marketplace",
		RelayInterval:    10 * time.Second,
		RelayBatchSize:   100,
		RelayBackoff:     time.Second,
		RelayMaxBackoff:  5 * time.Minute,
		MaxRelayAttempts: 10,
		PluginTimeout:    5 * time.Second,
		ListingCost:      1,
		QuoteCost:        1,
	}
}

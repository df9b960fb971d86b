package extension

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/marketplace"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{RelayBatchSize: 7})

	assert.Equal(t, "/marketplace", cfg.BasePath)
	assert.Equal(t, 10*time.Second, cfg.RelayInterval)
	assert.Equal(t, 7, cfg.RelayBatchSize)
	assert.Equal(t, time.Second, cfg.RelayBackoff)
	assert.Equal(t, 5*time.Minute, cfg.RelayMaxBackoff)
	assert.Equal(t, 10, cfg.MaxRelayAttempts)
	assert.Equal(t, 5*time.Second, cfg.PluginTimeout)
	assert.Equal(t, uint64(1), cfg.ListingCost)
	assert.Equal(t, uint64(1), cfg.QuoteCost)
	assert.Nil(t, cfg.Policy)
}

func TestMergeConfigurations(t *testing.T) {
	strict := marketplace.Policy{}
	programmatic := Config{
		DisableMigrate: true,
		BasePath:       "/api",
		RelayInterval:  time.Minute,
		ListingCost:    9,
		QuoteCost:      3,
		Policy:         &strict,
	}
	fromFile := Config{
		BasePath:       "/mp",
		RelayBatchSize: 50,
	}

	cfg := mergeConfigurations(fromFile, programmatic)

	assert.True(t, cfg.DisableMigrate)
	assert.False(t, cfg.DisableRoutes)
	assert.Equal(t, "/mp", cfg.BasePath, "file value wins")
	assert.Equal(t, time.Minute, cfg.RelayInterval, "programmatic fills gaps")
	assert.Equal(t, 50, cfg.RelayBatchSize)
	assert.Equal(t, uint64(9), cfg.ListingCost)
	assert.Equal(t, uint64(3), cfg.QuoteCost)
	assert.Same(t, &strict, cfg.Policy)
}

func TestBuildEngineOpts(t *testing.T) {
	e := New(
		WithConfig(mergeWithDefaults(Config{})),
		WithMarketplaceOption(marketplace.WithRelayBatchSize(5)),
	)

	opts := e.buildEngineOpts()
	// Seven config-derived options, no policy, then the pass-through.
	assert.Len(t, opts, 8)

	e.config.Policy = &marketplace.Policy{}
	assert.Len(t, e.buildEngineOpts(), 9)
}

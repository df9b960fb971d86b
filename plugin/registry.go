package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/marketplace/event"
)

// DefaultTimeout bounds a single plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit            []OnInit
	onShutdown        []OnShutdown
	onEvent           []OnEvent
	onEntityEvent     []OnEntityEvent
	onConnectionEvent []OnConnectionEvent
	onListingEvent    []OnListingEvent
	onQuoteEvent      []OnQuoteEvent
	onPointsEvent     []OnPointsEvent
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnEvent); ok {
		r.onEvent = append(r.onEvent, v)
	}
	if v, ok := p.(OnEntityEvent); ok {
		r.onEntityEvent = append(r.onEntityEvent, v)
	}
	if v, ok := p.(OnConnectionEvent); ok {
		r.onConnectionEvent = append(r.onConnectionEvent, v)
	}
	if v, ok := p.(OnListingEvent); ok {
		r.onListingEvent = append(r.onListingEvent, v)
	}
	if v, ok := p.(OnQuoteEvent); ok {
		r.onQuoteEvent = append(r.onQuoteEvent, v)
	}
	if v, ok := p.(OnPointsEvent); ok {
		r.onPointsEvent = append(r.onPointsEvent, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

// implementedInterfaces returns the hook interfaces implemented by the plugin.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnEvent)(nil)).Elem(), "OnEvent")
	checkInterface(reflect.TypeOf((*OnEntityEvent)(nil)).Elem(), "OnEntityEvent")
	checkInterface(reflect.TypeOf((*OnConnectionEvent)(nil)).Elem(), "OnConnectionEvent")
	checkInterface(reflect.TypeOf((*OnListingEvent)(nil)).Elem(), "OnListingEvent")
	checkInterface(reflect.TypeOf((*OnQuoteEvent)(nil)).Elem(), "OnQuoteEvent")
	checkInterface(reflect.TypeOf((*OnPointsEvent)(nil)).Elem(), "OnPointsEvent")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, m interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, m)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEvent delivers e to every OnEvent plugin and to the plugins hooked on
// its category. Every plugin is called even if an earlier one fails; the
// returned error joins all failures so the caller can retry delivery.
func (r *Registry) EmitEvent(ctx context.Context, e *event.Event) error {
	type call struct {
		name string
		fn   func() error
	}

	r.mu.RLock()
	calls := make([]call, 0, len(r.onEvent)+1)
	for _, p := range r.onEvent {
		calls = append(calls, call{p.Name(), func() error { return p.OnEvent(ctx, e) }})
	}
	switch e.Category {
	case event.CategoryEntity:
		for _, p := range r.onEntityEvent {
			calls = append(calls, call{p.Name(), func() error { return p.OnEntityEvent(ctx, e) }})
		}
	case event.CategoryConnection:
		for _, p := range r.onConnectionEvent {
			calls = append(calls, call{p.Name(), func() error { return p.OnConnectionEvent(ctx, e) }})
		}
	case event.CategoryListing:
		for _, p := range r.onListingEvent {
			calls = append(calls, call{p.Name(), func() error { return p.OnListingEvent(ctx, e) }})
		}
	case event.CategoryQuote:
		for _, p := range r.onQuoteEvent {
			calls = append(calls, call{p.Name(), func() error { return p.OnQuoteEvent(ctx, e) }})
		}
	case event.CategoryPoints:
		for _, p := range r.onPointsEvent {
			calls = append(calls, call{p.Name(), func() error { return p.OnPointsEvent(ctx, e) }})
		}
	}
	r.mu.RUnlock()

	var errs []error
	for _, c := range calls {
		if err := r.callWithTimeout(ctx, c.name, c.fn); err != nil {
			r.logger.Warn("plugin event delivery failed",
				"plugin", c.name,
				"event_type", e.Type,
				"event_id", e.ID.String(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}

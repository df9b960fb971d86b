// Package plugin provides the subscriber system for marketplace events.
// Plugins implement any subset of the hook interfaces below; the registry
// discovers them by type assertion at registration.
package plugin

import (
	"context"

	"github.com/xraph/marketplace/event"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the marketplace starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, m interface{}) error
}

// OnShutdown is called when the marketplace stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Event hooks
// ──────────────────────────────────────────────────

// OnEvent receives every committed event.
type OnEvent interface {
	Plugin
	OnEvent(ctx context.Context, e *event.Event) error
}

// OnEntityEvent receives entity registry events.
type OnEntityEvent interface {
	Plugin
	OnEntityEvent(ctx context.Context, e *event.Event) error
}

// OnConnectionEvent receives connection request and connection events.
type OnConnectionEvent interface {
	Plugin
	OnConnectionEvent(ctx context.Context, e *event.Event) error
}

// OnListingEvent receives listing events.
type OnListingEvent interface {
	Plugin
	OnListingEvent(ctx context.Context, e *event.Event) error
}

// OnQuoteEvent receives quote events.
type OnQuoteEvent interface {
	Plugin
	OnQuoteEvent(ctx context.Context, e *event.Event) error
}

// OnPointsEvent receives point ledger events.
type OnPointsEvent interface {
	Plugin
	OnPointsEvent(ctx context.Context, e *event.Event) error
}

// Package audithook bridges marketplace events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin  = (*Extension)(nil)
	_ plugin.OnEvent = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension records every committed marketplace event as an audit event.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnEvent implements plugin.OnEvent. Recorder failures are logged and
// never fail delivery.
func (e *Extension) OnEvent(ctx context.Context, evt *event.Event) error {
	action := string(evt.Type)
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := map[string]any{
		"event_id": evt.ID.String(),
		"seq":      evt.Seq,
	}
	var payload map[string]any
	if err := json.Unmarshal(evt.Payload, &payload); err == nil {
		for k, v := range payload {
			meta[k] = v
		}
	}

	audit := &AuditEvent{
		Action:     action,
		Resource:   resourceOf(evt.Category),
		Category:   categoryOf(evt.Type),
		ResourceID: evt.AggregateID,
		Actor:      evt.Actor,
		Metadata:   meta,
		Outcome:    OutcomeSuccess,
		Severity:   severityOf(evt.Type),
	}

	if err := e.recorder.Record(ctx, audit); err != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", evt.AggregateID,
			"error", err,
		)
	}
	return nil
}

func resourceOf(c event.Category) string {
	switch c {
	case event.CategoryEntity:
		return ResourceEntity
	case event.CategoryConnection:
		return ResourceConnection
	case event.CategoryListing:
		return ResourceListing
	case event.CategoryQuote:
		return ResourceQuote
	default:
		return ResourcePoints
	}
}

func categoryOf(t event.Type) string {
	switch t {
	case event.VendorAccessGranted, event.VendorAccessRevoked,
		event.DeductorAuthorized, event.DeductorRevoked:
		return CategoryAccess
	}

	switch t.Category() {
	case event.CategoryEntity:
		return CategoryRegistry
	case event.CategoryConnection:
		return CategoryNetwork
	case event.CategoryListing, event.CategoryQuote:
		return CategoryProcurement
	default:
		return CategoryPayment
	}
}

// severityOf flags actions that take something away from a participant.
func severityOf(t event.Type) string {
	switch t {
	case event.EntityDeactivated, event.ConnectionRevoked, event.VendorAccessRevoked,
		event.DeductorRevoked, event.ListingCancelled:
		return SeverityWarning
	}
	return SeverityInfo
}

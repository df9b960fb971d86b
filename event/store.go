package event

import (
	"context"
	"time"

	"github.com/xraph/marketplace/id"
)

// Store is the transactional outbox for domain events.
type Store interface {
	AppendEvent(ctx context.Context, e *Event) error
	// ListPendingEvents returns the events due for delivery at now, ordered
	// by next attempt and then by sequence. Dispatched and dead events are
	// never returned.
	ListPendingEvents(ctx context.Context, now time.Time, limit int) ([]*Event, error)
	MarkEventDispatched(ctx context.Context, eventID id.EventID, at time.Time) error
	// MarkEventFailed counts a failed attempt and defers the next one to
	// retryAt.
	MarkEventFailed(ctx context.Context, eventID id.EventID, reason string, retryAt time.Time) error
	// MarkEventDead counts a failed attempt and stops further retries.
	MarkEventDead(ctx context.Context, eventID id.EventID, reason string, at time.Time) error
	ListEvents(ctx context.Context, f Filter) ([]*Event, error)
}

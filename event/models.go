// Package event defines the domain events appended by every marketplace
// mutation and the outbox used to deliver them after commit.
//
// Delivery is at-least-once: consumers de-duplicate on Event.ID, or on the
// (Type, AggregateID) pair for events that happen once per aggregate.
package event

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/xraph/marketplace/id"
)

// Type names a domain event.
type Type string

const (
	EntityRegistered  Type = "entity.registered"
	MetadataUpdated   Type = "entity.metadata_updated"
	EntityDeactivated Type = "entity.deactivated"
	EntityReactivated Type = "entity.reactivated"

	ConnectionRequested Type = "connection.requested"
	ConnectionApproved  Type = "connection.approved"
	ConnectionDenied    Type = "connection.denied"
	ConnectionCancelled Type = "connection.cancelled"
	ConnectionRevoked   Type = "connection.revoked"

	ListingCreated      Type = "listing.created"
	ListingUpdated      Type = "listing.updated"
	ListingClosed       Type = "listing.closed"
	ListingCancelled    Type = "listing.cancelled"
	VendorAccessGranted Type = "listing.vendor_access_granted"
	VendorAccessRevoked Type = "listing.vendor_access_revoked"

	QuoteSubmitted Type = "quote.submitted"
	QuoteUpdated   Type = "quote.updated"
	QuoteWithdrawn Type = "quote.withdrawn"
	QuoteReviewed  Type = "quote.reviewed"

	PointsMinted       Type = "points.minted"
	PointsDeducted     Type = "points.deducted"
	PointsTransferred  Type = "points.transferred"
	PointsBurned       Type = "points.burned"
	AllowanceApproved  Type = "points.allowance_approved"
	DeductorAuthorized Type = "points.deductor_authorized"
	DeductorRevoked    Type = "points.deductor_revoked"
	CostsUpdated       Type = "points.costs_updated"
)

// AllTypes lists every event type in declaration order.
func AllTypes() []Type {
	return []Type{
		EntityRegistered, MetadataUpdated, EntityDeactivated, EntityReactivated,
		ConnectionRequested, ConnectionApproved, ConnectionDenied, ConnectionCancelled, ConnectionRevoked,
		ListingCreated, ListingUpdated, ListingClosed, ListingCancelled, VendorAccessGranted, VendorAccessRevoked,
		QuoteSubmitted, QuoteUpdated, QuoteWithdrawn, QuoteReviewed,
		PointsMinted, PointsDeducted, PointsTransferred, PointsBurned, AllowanceApproved,
		DeductorAuthorized, DeductorRevoked, CostsUpdated,
	}
}

// Category groups event types by the ledger that emits them.
type Category string

const (
	CategoryEntity     Category = "entity"
	CategoryConnection Category = "connection"
	CategoryListing    Category = "listing"
	CategoryQuote      Category = "quote"
	CategoryPoints     Category = "points"
)

// Category returns the ledger category encoded in the type name.
func (t Type) Category() Category {
	prefix, _, _ := strings.Cut(string(t), ".")
	return Category(prefix)
}

// Event is a committed state change. It is written in the same transaction
// as the change itself and stays pending until every subscriber accepted it
// or the relay gave up on it.
type Event struct {
	Seq           uint64          `json:"seq" bson:"seq"`
	ID            id.EventID      `json:"id" bson:"_id"`
	Type          Type            `json:"type" bson:"type"`
	Category      Category        `json:"category" bson:"category"`
	AggregateID   string          `json:"aggregate_id" bson:"aggregate_id"`
	Actor         string          `json:"actor" bson:"actor"`
	Payload       json.RawMessage `json:"payload" bson:"payload"`
	OccurredAt    time.Time       `json:"occurred_at" bson:"occurred_at"`
	NextAttemptAt time.Time       `json:"next_attempt_at" bson:"next_attempt_at"`
	DispatchedAt  *time.Time      `json:"dispatched_at,omitempty" bson:"dispatched_at,omitempty"`
	DeadAt        *time.Time      `json:"dead_at,omitempty" bson:"dead_at,omitempty"`
	Attempts      int             `json:"attempts" bson:"attempts"`
	LastError     string          `json:"last_error,omitempty" bson:"last_error,omitempty"`
}

// IsDispatched reports whether every subscriber accepted the event.
func (e *Event) IsDispatched() bool { return e.DispatchedAt != nil }

// IsDead reports whether the relay stopped retrying the event.
func (e *Event) IsDead() bool { return e.DeadAt != nil }

// IsDue reports whether the relay should try the event at now.
func (e *Event) IsDue(now time.Time) bool {
	return !e.IsDispatched() && !e.IsDead() && !e.NextAttemptAt.After(now)
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Filter narrows event listings. Zero fields match all.
type Filter struct {
	AggregateID string
	Category    Category
	AfterSeq    uint64
	Limit       int
}

// Package store defines the persistence contract shared by every
// marketplace backend.
package store

import (
	"context"
	"time"

	"github.com/xraph/marketplace/connection"
	"github.com/xraph/marketplace/entity"
	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/id"
	"github.com/xraph/marketplace/listing"
	"github.com/xraph/marketplace/points"
	"github.com/xraph/marketplace/quote"
)

// Sequence names used for monotonic identifiers.
const (
	SeqEntity     = "entity"
	SeqRequest    = "connection_request"
	SeqConnection = "connection"
	SeqListing    = "listing"
	SeqQuote      = "quote"
	SeqEvent      = "event"
)

// Tx is the set of reads and writes available to a marketplace operation.
// Instead of embedding the per-aggregate interfaces, all methods are
// declared here so every backend implements one flat surface.
type Tx interface {
	// NextSequence allocates the next value of a named counter. Values
	// start at 1 and are never handed out twice.
	NextSequence(ctx context.Context, name string) (uint64, error)

	// Entity methods
	CreateEntity(ctx context.Context, e *entity.Entity) error
	GetEntity(ctx context.Context, shareID string) (*entity.Entity, error)
	UpdateEntity(ctx context.Context, e *entity.Entity) error
	ListEntitiesByRegistrar(ctx context.Context, registrar string) ([]*entity.Entity, error)
	CountEntities(ctx context.Context) (entity.Stats, error)

	// Connection methods
	CreateRequest(ctx context.Context, r *connection.Request) error
	GetRequest(ctx context.Context, requestID uint64) (*connection.Request, error)
	UpdateRequest(ctx context.Context, r *connection.Request) error
	FindPendingRequest(ctx context.Context, vendorShareID, companyShareID string) (*connection.Request, error)
	ListRequests(ctx context.Context, f connection.Filter) ([]*connection.Request, error)
	CreateConnection(ctx context.Context, c *connection.Connection) error
	GetConnection(ctx context.Context, connectionID uint64) (*connection.Connection, error)
	UpdateConnection(ctx context.Context, c *connection.Connection) error
	FindActiveConnection(ctx context.Context, vendorShareID, companyShareID string) (*connection.Connection, error)
	ListConnections(ctx context.Context, f connection.Filter) ([]*connection.Connection, error)

	// Listing methods
	CreateListing(ctx context.Context, l *listing.Listing) error
	GetListing(ctx context.Context, listingID uint64) (*listing.Listing, error)
	GetListingByNumber(ctx context.Context, listingNumber string) (*listing.Listing, error)
	UpdateListing(ctx context.Context, l *listing.Listing) error
	ListListingsByCompany(ctx context.Context, companyShareID string) ([]*listing.Listing, error)
	AddListingVendor(ctx context.Context, listingID uint64, vendorShareID string, at time.Time) error
	RemoveListingVendor(ctx context.Context, listingID uint64, vendorShareID string) error
	HasListingVendor(ctx context.Context, listingID uint64, vendorShareID string) (bool, error)

	// Quote methods
	CreateQuote(ctx context.Context, q *quote.Quote) error
	GetQuote(ctx context.Context, quoteID uint64) (*quote.Quote, error)
	GetQuoteByNumber(ctx context.Context, quoteNumber string) (*quote.Quote, error)
	UpdateQuote(ctx context.Context, q *quote.Quote) error
	ListQuotes(ctx context.Context, f quote.Filter) ([]*quote.Quote, error)
	FindOpenQuote(ctx context.Context, listingID uint64, vendorShareID string) (*quote.Quote, error)

	// Point methods
	GetAccount(ctx context.Context, owner string) (*points.Account, error)
	SaveAccount(ctx context.Context, a *points.Account) error
	TotalSupply(ctx context.Context) (uint64, error)
	GetAllowance(ctx context.Context, owner, spender string) (uint64, error)
	SetAllowance(ctx context.Context, owner, spender string, amount uint64, at time.Time) error
	GetCosts(ctx context.Context) (*points.Costs, error)
	SetCosts(ctx context.Context, c points.Costs, at time.Time) error
	AddDeductor(ctx context.Context, identity string, at time.Time) error
	RemoveDeductor(ctx context.Context, identity string) error
	IsDeductor(ctx context.Context, identity string) (bool, error)
	AppendPointEntry(ctx context.Context, e *points.Entry) error
	ListPointEntries(ctx context.Context, owner string, limit int) ([]*points.Entry, error)

	// Event outbox methods
	AppendEvent(ctx context.Context, e *event.Event) error
	ListPendingEvents(ctx context.Context, now time.Time, limit int) ([]*event.Event, error)
	MarkEventDispatched(ctx context.Context, eventID id.EventID, at time.Time) error
	MarkEventFailed(ctx context.Context, eventID id.EventID, reason string, retryAt time.Time) error
	MarkEventDead(ctx context.Context, eventID id.EventID, reason string, at time.Time) error
	ListEvents(ctx context.Context, f event.Filter) ([]*event.Event, error)
}

// TxFunc is the body of an atomic operation.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the unified storage interface for the marketplace. Its Tx methods
// run outside any transaction and are used for reads.
type Store interface {
	Tx

	// Atomic runs fn in a single transaction. If fn returns an error none of
	// its writes become visible; otherwise all of them commit together.
	Atomic(ctx context.Context, fn TxFunc) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Compile-time checks that Tx covers every aggregate store.
var (
	_ entity.Store     = (Tx)(nil)
	_ connection.Store = (Tx)(nil)
	_ listing.Store    = (Tx)(nil)
	_ quote.Store      = (Tx)(nil)
	_ points.Store     = (Tx)(nil)
	_ event.Store      = (Tx)(nil)
)

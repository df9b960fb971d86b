// Package memory provides an in-process store. Transactions run against a
// copy of the current state that replaces it only when the transaction
// succeeds. The outbox and the point history are shared between copies
// and receive a transaction's records when it commits.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/connection"
	"github.com/xraph/marketplace/entity"
	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/id"
	"github.com/xraph/marketplace/listing"
	"github.com/xraph/marketplace/points"
	"github.com/xraph/marketplace/quote"
	"github.com/xraph/marketplace/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	state  *state
	closed bool
}

func New() *Store {
	return &Store{state: newState()}
}

// Atomic runs fn against a private copy of the state and publishes the copy
// only if fn succeeds. Transactions are serialized.
func (s *Store) Atomic(ctx context.Context, fn store.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return marketplace.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	next := s.state.clone()
	if err := fn(ctx, next); err != nil {
		return err
	}
	next.commit()
	s.state = next
	return nil
}

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return marketplace.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func read[T any](s *Store, fn func(*state) (T, error)) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		var zero T
		return zero, marketplace.ErrStoreClosed
	}
	return fn(s.state)
}

func update[T any](s *Store, fn func(*state) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		var zero T
		return zero, marketplace.ErrStoreClosed
	}
	v, err := fn(s.state)
	if err != nil {
		s.state.discard()
		return v, err
	}
	s.state.commit()
	return v, nil
}

func (s *Store) write(fn func(*state) error) error {
	_, err := update(s, func(st *state) (struct{}, error) { return struct{}{}, fn(st) })
	return err
}

func (s *Store) NextSequence(ctx context.Context, name string) (uint64, error) {
	return update(s, func(st *state) (uint64, error) { return st.NextSequence(ctx, name) })
}

// Entity Store implementation

func (s *Store) CreateEntity(ctx context.Context, e *entity.Entity) error {
	return s.write(func(st *state) error { return st.CreateEntity(ctx, e) })
}

func (s *Store) GetEntity(ctx context.Context, shareID string) (*entity.Entity, error) {
	return read(s, func(st *state) (*entity.Entity, error) { return st.GetEntity(ctx, shareID) })
}

func (s *Store) UpdateEntity(ctx context.Context, e *entity.Entity) error {
	return s.write(func(st *state) error { return st.UpdateEntity(ctx, e) })
}

func (s *Store) ListEntitiesByRegistrar(ctx context.Context, registrar string) ([]*entity.Entity, error) {
	return read(s, func(st *state) ([]*entity.Entity, error) { return st.ListEntitiesByRegistrar(ctx, registrar) })
}

func (s *Store) CountEntities(ctx context.Context) (entity.Stats, error) {
	return read(s, func(st *state) (entity.Stats, error) { return st.CountEntities(ctx) })
}

// Connection Store implementation

func (s *Store) CreateRequest(ctx context.Context, r *connection.Request) error {
	return s.write(func(st *state) error { return st.CreateRequest(ctx, r) })
}

func (s *Store) GetRequest(ctx context.Context, requestID uint64) (*connection.Request, error) {
	return read(s, func(st *state) (*connection.Request, error) { return st.GetRequest(ctx, requestID) })
}

func (s *Store) UpdateRequest(ctx context.Context, r *connection.Request) error {
	return s.write(func(st *state) error { return st.UpdateRequest(ctx, r) })
}

func (s *Store) FindPendingRequest(ctx context.Context, vendorShareID, companyShareID string) (*connection.Request, error) {
	return read(s, func(st *state) (*connection.Request, error) { return st.FindPendingRequest(ctx, vendorShareID, companyShareID) })
}

func (s *Store) ListRequests(ctx context.Context, f connection.Filter) ([]*connection.Request, error) {
	return read(s, func(st *state) ([]*connection.Request, error) { return st.ListRequests(ctx, f) })
}

func (s *Store) CreateConnection(ctx context.Context, c *connection.Connection) error {
	return s.write(func(st *state) error { return st.CreateConnection(ctx, c) })
}

func (s *Store) GetConnection(ctx context.Context, connectionID uint64) (*connection.Connection, error) {
	return read(s, func(st *state) (*connection.Connection, error) { return st.GetConnection(ctx, connectionID) })
}

func (s *Store) UpdateConnection(ctx context.Context, c *connection.Connection) error {
	return s.write(func(st *state) error { return st.UpdateConnection(ctx, c) })
}

func (s *Store) FindActiveConnection(ctx context.Context, vendorShareID, companyShareID string) (*connection.Connection, error) {
	return read(s, func(st *state) (*connection.Connection, error) { return st.FindActiveConnection(ctx, vendorShareID, companyShareID) })
}

func (s *Store) ListConnections(ctx context.Context, f connection.Filter) ([]*connection.Connection, error) {
	return read(s, func(st *state) ([]*connection.Connection, error) { return st.ListConnections(ctx, f) })
}

// Listing Store implementation

func (s *Store) CreateListing(ctx context.Context, l *listing.Listing) error {
	return s.write(func(st *state) error { return st.CreateListing(ctx, l) })
}

func (s *Store) GetListing(ctx context.Context, listingID uint64) (*listing.Listing, error) {
	return read(s, func(st *state) (*listing.Listing, error) { return st.GetListing(ctx, listingID) })
}

func (s *Store) GetListingByNumber(ctx context.Context, listingNumber string) (*listing.Listing, error) {
	return read(s, func(st *state) (*listing.Listing, error) { return st.GetListingByNumber(ctx, listingNumber) })
}

func (s *Store) UpdateListing(ctx context.Context, l *listing.Listing) error {
	return s.write(func(st *state) error { return st.UpdateListing(ctx, l) })
}

func (s *Store) ListListingsByCompany(ctx context.Context, companyShareID string) ([]*listing.Listing, error) {
	return read(s, func(st *state) ([]*listing.Listing, error) { return st.ListListingsByCompany(ctx, companyShareID) })
}

func (s *Store) AddListingVendor(ctx context.Context, listingID uint64, vendorShareID string, at time.Time) error {
	return s.write(func(st *state) error { return st.AddListingVendor(ctx, listingID, vendorShareID, at) })
}

func (s *Store) RemoveListingVendor(ctx context.Context, listingID uint64, vendorShareID string) error {
	return s.write(func(st *state) error { return st.RemoveListingVendor(ctx, listingID, vendorShareID) })
}

func (s *Store) HasListingVendor(ctx context.Context, listingID uint64, vendorShareID string) (bool, error) {
	return read(s, func(st *state) (bool, error) { return st.HasListingVendor(ctx, listingID, vendorShareID) })
}

// Quote Store implementation

func (s *Store) CreateQuote(ctx context.Context, q *quote.Quote) error {
	return s.write(func(st *state) error { return st.CreateQuote(ctx, q) })
}

func (s *Store) GetQuote(ctx context.Context, quoteID uint64) (*quote.Quote, error) {
	return read(s, func(st *state) (*quote.Quote, error) { return st.GetQuote(ctx, quoteID) })
}

func (s *Store) GetQuoteByNumber(ctx context.Context, quoteNumber string) (*quote.Quote, error) {
	return read(s, func(st *state) (*quote.Quote, error) { return st.GetQuoteByNumber(ctx, quoteNumber) })
}

func (s *Store) UpdateQuote(ctx context.Context, q *quote.Quote) error {
	return s.write(func(st *state) error { return st.UpdateQuote(ctx, q) })
}

func (s *Store) ListQuotes(ctx context.Context, f quote.Filter) ([]*quote.Quote, error) {
	return read(s, func(st *state) ([]*quote.Quote, error) { return st.ListQuotes(ctx, f) })
}

func (s *Store) FindOpenQuote(ctx context.Context, listingID uint64, vendorShareID string) (*quote.Quote, error) {
	return read(s, func(st *state) (*quote.Quote, error) { return st.FindOpenQuote(ctx, listingID, vendorShareID) })
}

// Point Store implementation

func (s *Store) GetAccount(ctx context.Context, owner string) (*points.Account, error) {
	return read(s, func(st *state) (*points.Account, error) { return st.GetAccount(ctx, owner) })
}

func (s *Store) SaveAccount(ctx context.Context, a *points.Account) error {
	return s.write(func(st *state) error { return st.SaveAccount(ctx, a) })
}

func (s *Store) TotalSupply(ctx context.Context) (uint64, error) {
	return read(s, func(st *state) (uint64, error) { return st.TotalSupply(ctx) })
}

func (s *Store) GetAllowance(ctx context.Context, owner, spender string) (uint64, error) {
	return read(s, func(st *state) (uint64, error) { return st.GetAllowance(ctx, owner, spender) })
}

func (s *Store) SetAllowance(ctx context.Context, owner, spender string, amount uint64, at time.Time) error {
	return s.write(func(st *state) error { return st.SetAllowance(ctx, owner, spender, amount, at) })
}

func (s *Store) GetCosts(ctx context.Context) (*points.Costs, error) {
	return read(s, func(st *state) (*points.Costs, error) { return st.GetCosts(ctx) })
}

func (s *Store) SetCosts(ctx context.Context, c points.Costs, at time.Time) error {
	return s.write(func(st *state) error { return st.SetCosts(ctx, c, at) })
}

func (s *Store) AddDeductor(ctx context.Context, identity string, at time.Time) error {
	return s.write(func(st *state) error { return st.AddDeductor(ctx, identity, at) })
}

func (s *Store) RemoveDeductor(ctx context.Context, identity string) error {
	return s.write(func(st *state) error { return st.RemoveDeductor(ctx, identity) })
}

func (s *Store) IsDeductor(ctx context.Context, identity string) (bool, error) {
	return read(s, func(st *state) (bool, error) { return st.IsDeductor(ctx, identity) })
}

func (s *Store) AppendPointEntry(ctx context.Context, e *points.Entry) error {
	return s.write(func(st *state) error { return st.AppendPointEntry(ctx, e) })
}

func (s *Store) ListPointEntries(ctx context.Context, owner string, limit int) ([]*points.Entry, error) {
	return read(s, func(st *state) ([]*points.Entry, error) { return st.ListPointEntries(ctx, owner, limit) })
}

// Event Store implementation

func (s *Store) AppendEvent(ctx context.Context, e *event.Event) error {
	return s.write(func(st *state) error { return st.AppendEvent(ctx, e) })
}

func (s *Store) ListPendingEvents(ctx context.Context, now time.Time, limit int) ([]*event.Event, error) {
	return read(s, func(st *state) ([]*event.Event, error) { return st.ListPendingEvents(ctx, now, limit) })
}

func (s *Store) MarkEventDispatched(ctx context.Context, eventID id.EventID, at time.Time) error {
	return s.write(func(st *state) error { return st.MarkEventDispatched(ctx, eventID, at) })
}

func (s *Store) MarkEventFailed(ctx context.Context, eventID id.EventID, reason string, retryAt time.Time) error {
	return s.write(func(st *state) error { return st.MarkEventFailed(ctx, eventID, reason, retryAt) })
}

func (s *Store) MarkEventDead(ctx context.Context, eventID id.EventID, reason string, at time.Time) error {
	return s.write(func(st *state) error { return st.MarkEventDead(ctx, eventID, reason, at) })
}

func (s *Store) ListEvents(ctx context.Context, f event.Filter) ([]*event.Event, error) {
	return read(s, func(st *state) ([]*event.Event, error) { return st.ListEvents(ctx, f) })
}

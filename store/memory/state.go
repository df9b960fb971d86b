package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
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

var _ store.Tx = (*state)(nil)

type pair struct{ a, b string }

// state is one version of the store contents. Records are copied on the
// way in and out, so two states may share record pointers safely and a
// clone only has to copy the maps. The ever-growing outbox and point
// history are not copied at all: they live in a journal shared by every
// version, and a transaction stages its additions until it commits.
type state struct {
	sequences map[string]uint64

	// Entity storage
	entities map[string]*entity.Entity

	// Connection storage
	requests    map[uint64]*connection.Request
	connections map[uint64]*connection.Connection

	// Listing storage
	listings       map[uint64]*listing.Listing
	listingNumbers map[string]uint64
	listingVendors map[uint64]map[string]time.Time

	// Quote storage
	quotes       map[uint64]*quote.Quote
	quoteNumbers map[string]uint64

	// Point storage
	accounts   map[string]*points.Account
	allowances map[pair]uint64
	costs      *points.Costs
	deductors  map[string]time.Time

	// Event outbox and point history
	journal *journal
	staged  *journal
}

func newState() *state {
	return &state{
		sequences:      make(map[string]uint64),
		entities:       make(map[string]*entity.Entity),
		requests:       make(map[uint64]*connection.Request),
		connections:    make(map[uint64]*connection.Connection),
		listings:       make(map[uint64]*listing.Listing),
		listingNumbers: make(map[string]uint64),
		listingVendors: make(map[uint64]map[string]time.Time),
		quotes:         make(map[uint64]*quote.Quote),
		quoteNumbers:   make(map[string]uint64),
		accounts:       make(map[string]*points.Account),
		allowances:     make(map[pair]uint64),
		deductors:      make(map[string]time.Time),
		journal:        newJournal(),
		staged:         newJournal(),
	}
}

func (st *state) clone() *state {
	vendors := make(map[uint64]map[string]time.Time, len(st.listingVendors))
	for k, v := range st.listingVendors {
		vendors[k] = maps.Clone(v)
	}

	return &state{
		sequences:      maps.Clone(st.sequences),
		entities:       maps.Clone(st.entities),
		requests:       maps.Clone(st.requests),
		connections:    maps.Clone(st.connections),
		listings:       maps.Clone(st.listings),
		listingNumbers: maps.Clone(st.listingNumbers),
		listingVendors: vendors,
		quotes:         maps.Clone(st.quotes),
		quoteNumbers:   maps.Clone(st.quoteNumbers),
		accounts:       maps.Clone(st.accounts),
		allowances:     maps.Clone(st.allowances),
		costs:          st.costs,
		deductors:      maps.Clone(st.deductors),
		journal:        st.journal,
		staged:         newJournal(),
	}
}

// commit publishes the staged journal records. The caller must hold the
// store's write lock.
func (st *state) commit() {
	st.staged.mergeInto(st.journal)
	st.staged = newJournal()
}

// discard drops the staged journal records.
func (st *state) discard() {
	st.staged = newJournal()
}

func (st *state) NextSequence(_ context.Context, name string) (uint64, error) {
	st.sequences[name]++
	return st.sequences[name], nil
}

// Entity Store implementation

func (st *state) CreateEntity(_ context.Context, e *entity.Entity) error {
	if _, exists := st.entities[e.ShareID]; exists {
		return marketplace.ErrEntityExists
	}
	st.entities[e.ShareID] = copyOf(e)
	return nil
}

func (st *state) GetEntity(_ context.Context, shareID string) (*entity.Entity, error) {
	if e, ok := st.entities[shareID]; ok {
		return copyOf(e), nil
	}
	return nil, marketplace.ErrEntityNotFound
}

func (st *state) UpdateEntity(_ context.Context, e *entity.Entity) error {
	if _, exists := st.entities[e.ShareID]; !exists {
		return marketplace.ErrEntityNotFound
	}
	st.entities[e.ShareID] = copyOf(e)
	return nil
}

func (st *state) ListEntitiesByRegistrar(_ context.Context, registrar string) ([]*entity.Entity, error) {
	result := make([]*entity.Entity, 0)
	for _, e := range st.entities {
		if e.Registrar == registrar {
			result = append(result, copyOf(e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result, nil
}

func (st *state) CountEntities(_ context.Context) (entity.Stats, error) {
	var stats entity.Stats
	for _, e := range st.entities {
		switch e.Kind {
		case entity.KindCompany:
			stats.Companies++
		case entity.KindVendor:
			stats.Vendors++
		}
	}
	stats.Total = stats.Companies + stats.Vendors
	return stats, nil
}

// Connection Store implementation

func (st *state) CreateRequest(ctx context.Context, r *connection.Request) error {
	if _, exists := st.requests[r.ID]; exists {
		return marketplace.ErrAlreadyExists
	}
	if r.IsPending() {
		if _, err := st.FindPendingRequest(ctx, r.VendorShareID, r.CompanyShareID); err == nil {
			return marketplace.ErrPendingRequestExists
		}
	}
	st.requests[r.ID] = copyOf(r)
	return nil
}

func (st *state) GetRequest(_ context.Context, requestID uint64) (*connection.Request, error) {
	if r, ok := st.requests[requestID]; ok {
		return copyOf(r), nil
	}
	return nil, marketplace.ErrRequestNotFound
}

func (st *state) UpdateRequest(_ context.Context, r *connection.Request) error {
	if _, exists := st.requests[r.ID]; !exists {
		return marketplace.ErrRequestNotFound
	}
	st.requests[r.ID] = copyOf(r)
	return nil
}

func (st *state) FindPendingRequest(_ context.Context, vendorShareID, companyShareID string) (*connection.Request, error) {
	for _, r := range st.requests {
		if r.IsPending() && r.VendorShareID == vendorShareID && r.CompanyShareID == companyShareID {
			return copyOf(r), nil
		}
	}
	return nil, marketplace.ErrRequestNotFound
}

func (st *state) ListRequests(_ context.Context, f connection.Filter) ([]*connection.Request, error) {
	result := make([]*connection.Request, 0)
	for _, r := range st.requests {
		if matchPair(f, r.VendorShareID, r.CompanyShareID) {
			result = append(result, copyOf(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (st *state) CreateConnection(ctx context.Context, c *connection.Connection) error {
	if _, exists := st.connections[c.ID]; exists {
		return marketplace.ErrAlreadyExists
	}
	if c.IsActive {
		if _, err := st.FindActiveConnection(ctx, c.VendorShareID, c.CompanyShareID); err == nil {
			return marketplace.ErrAlreadyConnected
		}
	}
	st.connections[c.ID] = copyOf(c)
	return nil
}

func (st *state) GetConnection(_ context.Context, connectionID uint64) (*connection.Connection, error) {
	if c, ok := st.connections[connectionID]; ok {
		return copyOf(c), nil
	}
	return nil, marketplace.ErrConnectionNotFound
}

func (st *state) UpdateConnection(_ context.Context, c *connection.Connection) error {
	if _, exists := st.connections[c.ID]; !exists {
		return marketplace.ErrConnectionNotFound
	}
	st.connections[c.ID] = copyOf(c)
	return nil
}

func (st *state) FindActiveConnection(_ context.Context, vendorShareID, companyShareID string) (*connection.Connection, error) {
	for _, c := range st.connections {
		if c.IsActive && c.VendorShareID == vendorShareID && c.CompanyShareID == companyShareID {
			return copyOf(c), nil
		}
	}
	return nil, marketplace.ErrConnectionNotFound
}

func (st *state) ListConnections(_ context.Context, f connection.Filter) ([]*connection.Connection, error) {
	result := make([]*connection.Connection, 0)
	for _, c := range st.connections {
		if matchPair(f, c.VendorShareID, c.CompanyShareID) {
			result = append(result, copyOf(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func matchPair(f connection.Filter, vendor, company string) bool {
	return (f.VendorShareID == "" || f.VendorShareID == vendor) &&
		(f.CompanyShareID == "" || f.CompanyShareID == company)
}

// Listing Store implementation

func (st *state) CreateListing(_ context.Context, l *listing.Listing) error {
	if _, exists := st.listings[l.ID]; exists {
		return marketplace.ErrAlreadyExists
	}
	if _, taken := st.listingNumbers[l.ListingNumber]; taken {
		return marketplace.ErrListingNumberTaken
	}

	vendors := make(map[string]time.Time, len(l.AuthorizedVendors))
	for _, v := range l.AuthorizedVendors {
		vendors[v] = l.CreatedAt
	}

	st.listings[l.ID] = copyListing(l)
	st.listingNumbers[l.ListingNumber] = l.ID
	st.listingVendors[l.ID] = vendors
	return nil
}

func (st *state) GetListing(_ context.Context, listingID uint64) (*listing.Listing, error) {
	l, ok := st.listings[listingID]
	if !ok {
		return nil, marketplace.ErrListingNotFound
	}
	return st.withVendors(l), nil
}

func (st *state) GetListingByNumber(ctx context.Context, listingNumber string) (*listing.Listing, error) {
	listingID, ok := st.listingNumbers[listingNumber]
	if !ok {
		return nil, marketplace.ErrListingNotFound
	}
	return st.GetListing(ctx, listingID)
}

func (st *state) UpdateListing(_ context.Context, l *listing.Listing) error {
	if _, exists := st.listings[l.ID]; !exists {
		return marketplace.ErrListingNotFound
	}
	st.listings[l.ID] = copyListing(l)
	return nil
}

func (st *state) ListListingsByCompany(_ context.Context, companyShareID string) ([]*listing.Listing, error) {
	result := make([]*listing.Listing, 0)
	for _, l := range st.listings {
		if l.CompanyShareID == companyShareID {
			result = append(result, st.withVendors(l))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (st *state) AddListingVendor(_ context.Context, listingID uint64, vendorShareID string, at time.Time) error {
	vendors, ok := st.listingVendors[listingID]
	if !ok {
		return marketplace.ErrListingNotFound
	}
	if _, exists := vendors[vendorShareID]; exists {
		return marketplace.ErrVendorAlreadyAuthorized
	}
	vendors[vendorShareID] = at
	return nil
}

func (st *state) RemoveListingVendor(_ context.Context, listingID uint64, vendorShareID string) error {
	if _, exists := st.listingVendors[listingID][vendorShareID]; !exists {
		return marketplace.ErrVendorAccessNotFound
	}
	delete(st.listingVendors[listingID], vendorShareID)
	return nil
}

func (st *state) HasListingVendor(_ context.Context, listingID uint64, vendorShareID string) (bool, error) {
	_, exists := st.listingVendors[listingID][vendorShareID]
	return exists, nil
}

// withVendors copies l and fills its access set in grant order.
func (st *state) withVendors(l *listing.Listing) *listing.Listing {
	out := copyListing(l)
	vendors := st.listingVendors[l.ID]
	out.AuthorizedVendors = make([]string, 0, len(vendors))
	for v := range vendors {
		out.AuthorizedVendors = append(out.AuthorizedVendors, v)
	}
	sort.Slice(out.AuthorizedVendors, func(i, j int) bool {
		a, b := out.AuthorizedVendors[i], out.AuthorizedVendors[j]
		if !vendors[a].Equal(vendors[b]) {
			return vendors[a].Before(vendors[b])
		}
		return a < b
	})
	return out
}

// Quote Store implementation

func (st *state) CreateQuote(ctx context.Context, q *quote.Quote) error {
	if _, exists := st.quotes[q.ID]; exists {
		return marketplace.ErrAlreadyExists
	}
	if _, taken := st.quoteNumbers[q.QuoteNumber]; taken {
		return marketplace.ErrQuoteNumberTaken
	}
	if q.IsOpen() {
		if _, err := st.FindOpenQuote(ctx, q.ListingID, q.VendorShareID); err == nil {
			return marketplace.ErrAlreadySubmitted
		}
	}
	st.quotes[q.ID] = copyOf(q)
	st.quoteNumbers[q.QuoteNumber] = q.ID
	return nil
}

func (st *state) GetQuote(_ context.Context, quoteID uint64) (*quote.Quote, error) {
	if q, ok := st.quotes[quoteID]; ok {
		return copyOf(q), nil
	}
	return nil, marketplace.ErrQuoteNotFound
}

func (st *state) GetQuoteByNumber(ctx context.Context, quoteNumber string) (*quote.Quote, error) {
	quoteID, ok := st.quoteNumbers[quoteNumber]
	if !ok {
		return nil, marketplace.ErrQuoteNotFound
	}
	return st.GetQuote(ctx, quoteID)
}

func (st *state) UpdateQuote(_ context.Context, q *quote.Quote) error {
	if _, exists := st.quotes[q.ID]; !exists {
		return marketplace.ErrQuoteNotFound
	}
	st.quotes[q.ID] = copyOf(q)
	return nil
}

func (st *state) ListQuotes(_ context.Context, f quote.Filter) ([]*quote.Quote, error) {
	result := make([]*quote.Quote, 0)
	for _, q := range st.quotes {
		if (f.ListingID == 0 || f.ListingID == q.ListingID) &&
			(f.VendorShareID == "" || f.VendorShareID == q.VendorShareID) {
			result = append(result, copyOf(q))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (st *state) FindOpenQuote(_ context.Context, listingID uint64, vendorShareID string) (*quote.Quote, error) {
	for _, q := range st.quotes {
		if q.IsOpen() && q.ListingID == listingID && q.VendorShareID == vendorShareID {
			return copyOf(q), nil
		}
	}
	return nil, marketplace.ErrQuoteNotFound
}

// Point Store implementation

func (st *state) GetAccount(_ context.Context, owner string) (*points.Account, error) {
	if a, ok := st.accounts[owner]; ok {
		return copyOf(a), nil
	}
	return nil, marketplace.ErrAccountNotFound
}

func (st *state) SaveAccount(_ context.Context, a *points.Account) error {
	st.accounts[a.Owner] = copyOf(a)
	return nil
}

func (st *state) TotalSupply(_ context.Context) (uint64, error) {
	var total uint64
	for _, a := range st.accounts {
		total += a.Balance
	}
	return total, nil
}

func (st *state) GetAllowance(_ context.Context, owner, spender string) (uint64, error) {
	return st.allowances[pair{owner, spender}], nil
}

func (st *state) SetAllowance(_ context.Context, owner, spender string, amount uint64, _ time.Time) error {
	st.allowances[pair{owner, spender}] = amount
	return nil
}

func (st *state) GetCosts(_ context.Context) (*points.Costs, error) {
	if st.costs == nil {
		return nil, marketplace.ErrCostsNotSet
	}
	return copyOf(st.costs), nil
}

func (st *state) SetCosts(_ context.Context, c points.Costs, _ time.Time) error {
	st.costs = &c
	return nil
}

func (st *state) AddDeductor(_ context.Context, identity string, at time.Time) error {
	if _, exists := st.deductors[identity]; exists {
		return marketplace.ErrDeductorExists
	}
	st.deductors[identity] = at
	return nil
}

func (st *state) RemoveDeductor(_ context.Context, identity string) error {
	if _, exists := st.deductors[identity]; !exists {
		return marketplace.ErrDeductorNotFound
	}
	delete(st.deductors, identity)
	return nil
}

func (st *state) IsDeductor(_ context.Context, identity string) (bool, error) {
	_, ok := st.deductors[identity]
	return ok, nil
}

func (st *state) AppendPointEntry(_ context.Context, e *points.Entry) error {
	st.staged.entries = append(st.staged.entries, copyOf(e))
	return nil
}

func (st *state) ListPointEntries(_ context.Context, owner string, limit int) ([]*points.Entry, error) {
	result := make([]*points.Entry, 0)
	for _, entries := range [][]*points.Entry{st.staged.entries, st.journal.entries} {
		for i := len(entries) - 1; i >= 0; i-- {
			if limit > 0 && len(result) == limit {
				return result, nil
			}
			if entries[i].Owner == owner {
				result = append(result, copyOf(entries[i]))
			}
		}
	}
	return result, nil
}

// Event Store implementation

func (st *state) AppendEvent(_ context.Context, e *event.Event) error {
	key := e.ID.String()
	if st.event(key) != nil {
		return marketplace.ErrAlreadyExists
	}
	st.staged.events[key] = copyEvent(e)
	st.staged.eventOrder = append(st.staged.eventOrder, key)
	return nil
}

func (st *state) ListPendingEvents(_ context.Context, now time.Time, limit int) ([]*event.Event, error) {
	result := make([]*event.Event, 0)
	for key := range st.journal.pending {
		if _, staged := st.staged.events[key]; staged {
			continue
		}
		if e := st.journal.events[key]; e.IsDue(now) {
			result = append(result, copyEvent(e))
		}
	}
	for _, e := range st.staged.events {
		if e.IsDue(now) {
			result = append(result, copyEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.NextAttemptAt.Equal(b.NextAttemptAt) {
			return a.NextAttemptAt.Before(b.NextAttemptAt)
		}
		return a.Seq < b.Seq
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (st *state) MarkEventDispatched(_ context.Context, eventID id.EventID, at time.Time) error {
	return st.updateEvent(eventID, func(e *event.Event) {
		e.DispatchedAt = &at
		e.Attempts++
		e.LastError = ""
	})
}

func (st *state) MarkEventFailed(_ context.Context, eventID id.EventID, reason string, retryAt time.Time) error {
	return st.updateEvent(eventID, func(e *event.Event) {
		e.Attempts++
		e.LastError = reason
		e.NextAttemptAt = retryAt
	})
}

func (st *state) MarkEventDead(_ context.Context, eventID id.EventID, reason string, at time.Time) error {
	return st.updateEvent(eventID, func(e *event.Event) {
		e.Attempts++
		e.LastError = reason
		e.DeadAt = &at
	})
}

func (st *state) ListEvents(_ context.Context, f event.Filter) ([]*event.Event, error) {
	result := make([]*event.Event, 0)
	for _, order := range [][]string{st.journal.eventOrder, st.staged.eventOrder} {
		for _, key := range order {
			if f.Limit > 0 && len(result) == f.Limit {
				return result, nil
			}
			e := st.event(key)
			if e.Seq <= f.AfterSeq {
				continue
			}
			if f.AggregateID != "" && e.AggregateID != f.AggregateID {
				continue
			}
			if f.Category != "" && e.Category != f.Category {
				continue
			}
			result = append(result, copyEvent(e))
		}
	}
	return result, nil
}

// event returns the latest version of the event stored under key, or nil.
func (st *state) event(key string) *event.Event {
	if e, ok := st.staged.events[key]; ok {
		return e
	}
	return st.journal.events[key]
}

func (st *state) updateEvent(eventID id.EventID, fn func(*event.Event)) error {
	key := eventID.String()
	e := st.event(key)
	if e == nil {
		return marketplace.ErrEventNotFound
	}
	out := copyEvent(e)
	fn(out)
	st.staged.events[key] = out
	return nil
}

// ──────────────────────────────────────────────────
// Journal
// ──────────────────────────────────────────────────

// journal holds the outbox and the point history. Committed records are
// never modified in place: an update stages a new version of the event.
// pending indexes the undelivered events of a committed journal.
type journal struct {
	events     map[string]*event.Event
	eventOrder []string
	pending    map[string]struct{}
	entries    []*points.Entry
}

func newJournal() *journal {
	return &journal{
		events:  make(map[string]*event.Event),
		pending: make(map[string]struct{}),
	}
}

// mergeInto applies the records staged in j to dst.
func (j *journal) mergeInto(dst *journal) {
	for key, e := range j.events {
		dst.events[key] = e
		if e.IsDispatched() || e.IsDead() {
			delete(dst.pending, key)
		} else {
			dst.pending[key] = struct{}{}
		}
	}
	dst.eventOrder = append(dst.eventOrder, j.eventOrder...)
	dst.entries = append(dst.entries, j.entries...)
}

// ──────────────────────────────────────────────────
// Copy helpers
// ──────────────────────────────────────────────────

func copyOf[T any](v *T) *T {
	out := *v
	return &out
}

func copyListing(l *listing.Listing) *listing.Listing {
	out := *l
	out.AuthorizedVendors = slices.Clone(l.AuthorizedVendors)
	return &out
}

func copyEvent(e *event.Event) *event.Event {
	out := *e
	out.Payload = slices.Clone(e.Payload)
	return &out
}

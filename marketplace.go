package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/id"
	"github.com/xraph/marketplace/plugin"
	"github.com/xraph/marketplace/points"
	"github.com/xraph/marketplace/store"
)

// Marketplace is the ledger engine. Every mutating method runs as a single
// store transaction under one engine-wide lock, so mutations are totally
// ordered and either fully applied or not applied at all.
type Marketplace struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	policy  Policy
	clock   func() time.Time

	// Serializes every mutation, including the cross-ledger reads that
	// validate them.
	mu sync.Mutex

	// Background relay
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Configuration
	defaultCosts     points.Costs
	relayInterval    time.Duration
	relayBatchSize   int
	relayBackoff     time.Duration
	relayMaxBackoff  time.Duration
	maxRelayAttempts int
	migrate          bool
}

// New creates a new Marketplace backed by s.
func New(s store.Store, opts ...Option) *Marketplace {
	m := &Marketplace{
		store:            s,
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		policy:           DefaultPolicy(),
		clock:            time.Now,
		stopChan:         make(chan struct{}),
		defaultCosts:     points.DefaultCosts(),
		relayInterval:    10 * time.Second,
		relayBatchSize:   100,
		relayBackoff:     time.Second,
		relayMaxBackoff:  5 * time.Minute,
		maxRelayAttempts: 10,
		migrate:          true,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Option configures a Marketplace instance.
type Option func(*Marketplace)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Marketplace) {
		m.logger = logger
		m.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(m *Marketplace) {
		_ = m.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPolicy replaces the admin override policy.
func WithPolicy(p Policy) Option {
	return func(m *Marketplace) { m.policy = p }
}

// WithClock sets the time source used to stamp records and events.
func WithClock(now func() time.Time) Option {
	return func(m *Marketplace) { m.clock = now }
}

// WithDefaultCosts sets the action costs used until SetCosts is called.
func WithDefaultCosts(c points.Costs) Option {
	return func(m *Marketplace) { m.defaultCosts = c }
}

// WithRelayInterval sets how often pending events are re-dispatched.
// Zero disables the background relay.
func WithRelayInterval(d time.Duration) Option {
	return func(m *Marketplace) { m.relayInterval = d }
}

// WithRelayBatchSize sets the number of pending events read per relay pass.
func WithRelayBatchSize(n int) Option {
	return func(m *Marketplace) {
		if n > 0 {
			m.relayBatchSize = n
		}
	}
}

// WithRelayBackoff sets the delay before the first retry of a failed event
// and the cap on the exponentially growing delay between later retries.
func WithRelayBackoff(initial, maxDelay time.Duration) Option {
	return func(m *Marketplace) {
		if initial > 0 {
			m.relayBackoff = initial
		}
		if maxDelay >= m.relayBackoff {
			m.relayMaxBackoff = maxDelay
		}
	}
}

// WithMaxRelayAttempts sets how many failed deliveries an event may have
// before it is marked dead and no longer retried. Zero retries forever.
func WithMaxRelayAttempts(n int) Option {
	return func(m *Marketplace) {
		if n >= 0 {
			m.maxRelayAttempts = n
		}
	}
}

// WithPluginTimeout bounds each plugin call.
func WithPluginTimeout(d time.Duration) Option {
	return func(m *Marketplace) { m.plugins.WithTimeout(d) }
}

// WithAutoMigrate controls whether Start migrates the store. Enabled by default.
func WithAutoMigrate(enabled bool) Option {
	return func(m *Marketplace) { m.migrate = enabled }
}

// Plugins returns the plugin registry.
func (m *Marketplace) Plugins() *plugin.Registry { return m.plugins }

// Policy returns the admin override policy in effect.
func (m *Marketplace) Policy() Policy { return m.policy }

// Start migrates the store, initializes plugins and starts the event relay.
func (m *Marketplace) Start(ctx context.Context) error {
	if m.migrate {
		if err := m.store.Migrate(ctx); err != nil {
			return fmt.Errorf("marketplace: migrate: %w", err)
		}
	}

	m.plugins.EmitInit(ctx, m)

	if m.relayInterval > 0 {
		m.wg.Add(1)
		go m.relayWorker(context.WithoutCancel(ctx))
	}

	m.logger.Info("marketplace started",
		"plugins", m.plugins.Count(),
		"relay_interval", m.relayInterval,
		"relay_batch_size", m.relayBatchSize,
		"max_relay_attempts", m.maxRelayAttempts,
	)

	return nil
}

// Stop shuts down the relay, notifies plugins and closes the store.
func (m *Marketplace) Stop() error {
	m.stopOnce.Do(func() { close(m.stopChan) })
	m.wg.Wait()

	m.plugins.EmitShutdown(context.Background())

	return m.store.Close()
}

// Ping checks the store.
func (m *Marketplace) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// ──────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────

// op is the state of one mutation in flight.
type op struct {
	tx     store.Tx
	caller Caller
	now    time.Time
	events []*event.Event

	// relayAt is when the relay may first pick up events emitted here,
	// leaving the post-commit delivery a head start.
	relayAt time.Time
}

// emit appends an event to the outbox within the mutation's transaction.
func (o *op) emit(ctx context.Context, typ event.Type, aggregateID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marketplace: encode %s payload: %w", typ, err)
	}

	seq, err := o.tx.NextSequence(ctx, store.SeqEvent)
	if err != nil {
		return err
	}

	e := &event.Event{
		Seq:           seq,
		ID:            id.NewEventID(),
		Type:          typ,
		Category:      typ.Category(),
		AggregateID:   aggregateID,
		Actor:         o.caller.ID,
		Payload:       data,
		OccurredAt:    o.now,
		NextAttemptAt: o.relayAt,
	}
	if err := o.tx.AppendEvent(ctx, e); err != nil {
		return err
	}

	o.events = append(o.events, e)
	return nil
}

// mutate runs fn atomically and dispatches its events after commit.
func (m *Marketplace) mutate(ctx context.Context, caller Caller, fn func(ctx context.Context, o *op) error) error {
	var committed []*event.Event

	m.mu.Lock()
	err := m.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		now := m.clock().UTC().Truncate(time.Microsecond)
		o := &op{
			tx:      tx,
			caller:  caller,
			now:     now,
			relayAt: now.Add(m.relayInterval),
		}
		if err := fn(ctx, o); err != nil {
			return err
		}
		committed = o.events
		return nil
	})
	m.mu.Unlock()

	if err != nil {
		return err
	}

	m.dispatch(context.WithoutCancel(ctx), committed)
	return nil
}

// ──────────────────────────────────────────────────
// Event delivery
// ──────────────────────────────────────────────────

func (m *Marketplace) dispatch(ctx context.Context, events []*event.Event) {
	for _, e := range events {
		m.deliver(ctx, e)
	}
}

// deliver hands e to the plugins and records the outcome in the outbox.
func (m *Marketplace) deliver(ctx context.Context, e *event.Event) bool {
	if err := m.plugins.EmitEvent(ctx, e); err != nil {
		m.recordFailure(ctx, e, err)
		return false
	}

	if err := m.store.MarkEventDispatched(ctx, e.ID, m.clock().UTC()); err != nil {
		m.logger.Error("failed to mark event dispatched",
			"event_id", e.ID.String(),
			"error", err,
		)
		return false
	}
	return true
}

// recordFailure schedules the next attempt for e, or marks it dead once it
// has used up its attempts.
func (m *Marketplace) recordFailure(ctx context.Context, e *event.Event, cause error) {
	now := m.clock().UTC()
	attempts := e.Attempts + 1

	var err error
	if m.maxRelayAttempts > 0 && attempts >= m.maxRelayAttempts {
		err = m.store.MarkEventDead(ctx, e.ID, cause.Error(), now)
		if err == nil {
			m.logger.Warn("event delivery abandoned",
				"event_id", e.ID.String(),
				"event_type", string(e.Type),
				"attempts", attempts,
				"error", cause,
			)
		}
	} else {
		err = m.store.MarkEventFailed(ctx, e.ID, cause.Error(), now.Add(m.retryDelay(attempts)))
	}

	if err != nil {
		m.logger.Error("failed to record event delivery failure",
			"event_id", e.ID.String(),
			"error", err,
		)
	}
}

// retryDelay returns the wait after the given number of failed attempts:
// the initial backoff doubled per further attempt, capped at the maximum.
func (m *Marketplace) retryDelay(attempts int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     m.relayBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         m.relayMaxBackoff,
	}
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempts && delay < m.relayMaxBackoff; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// RelayPending re-dispatches events that are due for another attempt and
// reports how many were delivered. Failed events wait out their backoff,
// so a batch is never held up by an event that keeps failing.
func (m *Marketplace) RelayPending(ctx context.Context) (int, error) {
	pending, err := m.store.ListPendingEvents(ctx, m.clock().UTC(), m.relayBatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, e := range pending {
		if m.deliver(ctx, e) {
			delivered++
		}
	}
	return delivered, nil
}

// relayWorker periodically re-dispatches pending events.
func (m *Marketplace) relayWorker(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.relayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return

		case <-ticker.C:
			start := time.Now()
			n, err := m.RelayPending(ctx)
			if err != nil {
				m.logger.Error("event relay failed", "error", err)
				continue
			}
			if n > 0 {
				m.logger.Debug("relayed pending events",
					"count", n,
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
			}
		}
	}
}

// ListEvents returns committed events matching f in commit order.
func (m *Marketplace) ListEvents(ctx context.Context, f event.Filter) ([]*event.Event, error) {
	return m.store.ListEvents(ctx, f)
}

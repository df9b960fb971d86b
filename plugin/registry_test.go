package plugin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/id"
	"github.com/xraph/marketplace/plugin"
)

type recorder struct {
	name string
	mu   sync.Mutex
	all  []event.Type
	quot []event.Type
	fail error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnEvent(_ context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, e.Type)
	return r.fail
}

func (r *recorder) OnQuoteEvent(_ context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quot = append(r.quot, e.Type)
	return nil
}

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) OnEvent(ctx context.Context, _ *event.Event) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func newEvent(typ event.Type) *event.Event {
	return &event.Event{ID: id.NewEventID(), Type: typ, Category: typ.Category()}
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&recorder{name: "a"}))
	require.Error(t, r.Register(&recorder{name: "a"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("a"))
	assert.Nil(t, r.Get("b"))
}

func TestEmitEventRoutesByCategory(t *testing.T) {
	r := plugin.NewRegistry()
	rec := &recorder{name: "rec"}
	require.NoError(t, r.Register(rec))

	ctx := context.Background()
	require.NoError(t, r.EmitEvent(ctx, newEvent(event.ListingCreated)))
	require.NoError(t, r.EmitEvent(ctx, newEvent(event.QuoteSubmitted)))

	assert.Equal(t, []event.Type{event.ListingCreated, event.QuoteSubmitted}, rec.all)
	assert.Equal(t, []event.Type{event.QuoteSubmitted}, rec.quot)
}

func TestEmitEventJoinsFailures(t *testing.T) {
	r := plugin.NewRegistry()
	boom := errors.New("boom")
	bad := &recorder{name: "bad", fail: boom}
	good := &recorder{name: "good"}
	require.NoError(t, r.Register(bad))
	require.NoError(t, r.Register(good))

	err := r.EmitEvent(context.Background(), newEvent(event.PointsMinted))
	require.ErrorIs(t, err, boom)
	assert.Len(t, good.all, 1, "later plugins still receive the event")
}

func TestEmitEventTimeout(t *testing.T) {
	r := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	require.NoError(t, r.Register(slow{}))

	err := r.EmitEvent(context.Background(), newEvent(event.EntityRegistered))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin timeout")
}

package observability_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/observability"
)

func newEvent(t *testing.T, typ event.Type, payload any) *event.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &event.Event{
		Type:       typ,
		Category:   typ.Category(),
		Payload:    data,
		OccurredAt: time.Now().Add(-time.Second),
	}
}

// value reads a counter created by the prometheus factory.
func value(t *testing.T, c observability.Counter) float64 {
	t.Helper()
	collector, ok := c.(prometheus.Collector)
	require.True(t, ok, "%T is not a prometheus collector", c)
	return testutil.ToFloat64(collector)
}

func TestMetricsExtensionWithPrometheus(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	ext := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))

	listing := newEvent(t, event.ListingCreated, map[string]any{"listing_number": "RFQ-1"})
	require.NoError(t, ext.OnEvent(ctx, listing))
	require.NoError(t, ext.OnEvent(ctx, listing))

	mint := newEvent(t, event.PointsMinted, map[string]any{"to": "alice", "amount": 250})
	require.NoError(t, ext.OnEvent(ctx, mint))
	require.NoError(t, ext.OnPointsEvent(ctx, mint))

	deduct := newEvent(t, event.PointsDeducted, map[string]any{"from": "alice", "amount": 10})
	require.NoError(t, ext.OnPointsEvent(ctx, deduct))

	approve := newEvent(t, event.AllowanceApproved, map[string]any{"owner": "alice", "spender": "bob", "amount": 5})
	require.NoError(t, ext.OnPointsEvent(ctx, approve))

	assert.Equal(t, 3.0, value(t, ext.EventsDelivered))
	assert.Equal(t, 250.0, value(t, ext.PointsMinted))
	assert.Equal(t, 10.0, value(t, ext.PointsDeducted))
	assert.Equal(t, 0.0, value(t, ext.PointsTransferred))

	families, err := reg.Gather()
	require.NoError(t, err)
	byName := map[string]float64{}
	for _, f := range families {
		if f.GetType().String() == "COUNTER" {
			byName[f.GetName()] = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, byName["marketplace_listing_created_total"])
	assert.Equal(t, 1.0, byName["marketplace_points_minted_total"])
	assert.Contains(t, byName, "marketplace_quote_reviewed_total")
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := observability.NewPrometheusFactory(reg)
	a := first.Counter("marketplace.test")
	assert.Same(t, a, first.Counter("marketplace.test"))

	// A second factory on the same registry gets the registered collector.
	second := observability.NewPrometheusFactory(reg)
	b := second.Counter("marketplace.test")
	b.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.(prometheus.Counter)))
}

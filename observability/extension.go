// Package observability provides a metrics extension for the marketplace
// that counts committed events through a MetricFactory.
package observability

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin        = (*MetricsExtension)(nil)
	_ plugin.OnInit        = (*MetricsExtension)(nil)
	_ plugin.OnEvent       = (*MetricsExtension)(nil)
	_ plugin.OnPointsEvent = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records marketplace activity metrics.
// Register it as a marketplace plugin to count every committed event.
type MetricsExtension struct {
	factory MetricFactory
	clock   func() time.Time

	// One counter per event type, named "marketplace.<type>".
	byType map[event.Type]Counter

	// Totals
	EventsDelivered Counter
	DeliveryLag     Histogram

	// Point metrics
	PointsMinted      Counter
	PointsDeducted    Counter
	PointsTransferred Counter
	PointsBurned      Counter
	PointsAmount      Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,
		clock:   time.Now,
		byType:  make(map[event.Type]Counter),

		EventsDelivered: factory.Counter("marketplace.events.delivered"),
		DeliveryLag:     factory.Histogram("marketplace.events.delivery_lag_ms"),

		PointsMinted:      factory.Counter("marketplace.points.minted_amount"),
		PointsDeducted:    factory.Counter("marketplace.points.deducted_amount"),
		PointsTransferred: factory.Counter("marketplace.points.transferred_amount"),
		PointsBurned:      factory.Counter("marketplace.points.burned_amount"),
		PointsAmount:      factory.Histogram("marketplace.points.movement_amount"),
	}
	for _, t := range event.AllTypes() {
		m.byType[t] = factory.Counter("marketplace." + string(t))
	}
	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// OnEvent implements plugin.OnEvent. Relayed events count again, so the
// counters measure deliveries rather than distinct events.
func (m *MetricsExtension) OnEvent(_ context.Context, e *event.Event) error {
	m.EventsDelivered.Inc()
	if c, ok := m.byType[e.Type]; ok {
		c.Inc()
	}
	if !e.OccurredAt.IsZero() {
		m.DeliveryLag.Observe(float64(m.clock().Sub(e.OccurredAt).Milliseconds()))
	}
	return nil
}

// OnPointsEvent implements plugin.OnPointsEvent.
func (m *MetricsExtension) OnPointsEvent(_ context.Context, e *event.Event) error {
	var movement struct {
		Amount uint64 `json:"amount"`
	}
	if err := json.Unmarshal(e.Payload, &movement); err != nil || movement.Amount == 0 {
		return nil
	}

	amount := float64(movement.Amount)
	switch e.Type {
	case event.PointsMinted:
		m.PointsMinted.Add(amount)
	case event.PointsDeducted:
		m.PointsDeducted.Add(amount)
	case event.PointsTransferred:
		m.PointsTransferred.Add(amount)
	case event.PointsBurned:
		m.PointsBurned.Add(amount)
	default:
		return nil
	}
	m.PointsAmount.Observe(amount)
	return nil
}

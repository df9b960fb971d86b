package redisstream_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/id"
	"github.com/xraph/marketplace/sink/redisstream"
)

func newEvent(seq uint64, typ event.Type) *event.Event {
	return &event.Event{
		Seq:         seq,
		ID:          id.NewEventID(),
		Type:        typ,
		Category:    typ.Category(),
		AggregateID: "listing/1",
		Actor:       "registrar-1",
		Payload:     []byte(`{"listing_number":"RFQ-1"}`),
		OccurredAt:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOnEventAppendsToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sink := redisstream.New(client, redisstream.WithStream("test:events"), redisstream.WithMaxLen(0))

	first := newEvent(1, event.ListingCreated)
	require.NoError(t, sink.OnEvent(ctx, first))
	require.NoError(t, sink.OnEvent(ctx, newEvent(2, event.ListingClosed)))

	entries, err := client.XRange(ctx, "test:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	got := entries[0].Values
	assert.Equal(t, first.ID.String(), got["event_id"])
	assert.Equal(t, "1", got["seq"])
	assert.Equal(t, "listing.created", got["type"])
	assert.Equal(t, "listing", got["category"])
	assert.Equal(t, "listing/1", got["aggregate_id"])
	assert.Equal(t, "2026-05-01T12:00:00Z", got["occurred_at"])
	assert.JSONEq(t, `{"listing_number":"RFQ-1"}`, got["payload"].(string))

	assert.Equal(t, "listing.closed", entries[1].Values["type"])
}

func TestOpenOwnsClient(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	sink, err := redisstream.Open(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	require.NoError(t, sink.OnEvent(ctx, newEvent(1, event.QuoteSubmitted)))

	n, err := redis.NewClient(&redis.Options{Addr: mr.Addr()}).XLen(ctx, redisstream.DefaultStream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, sink.OnShutdown(ctx))
	assert.Error(t, sink.OnEvent(ctx, newEvent(2, event.QuoteWithdrawn)))
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := redisstream.Open(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestOnEventFailsWhenServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	sink := redisstream.New(client)
	mr.Close()

	assert.Error(t, sink.OnEvent(context.Background(), newEvent(1, event.PointsMinted)))
}

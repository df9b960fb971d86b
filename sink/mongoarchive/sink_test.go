package mongoarchive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/id"
)

// fakeCollection enforces a unique _id like a real collection.
type fakeCollection struct {
	docs map[string]*eventModel
	err  error
}

func (f *fakeCollection) InsertOne(_ context.Context, document any, _ ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc := document.(*eventModel)
	if _, exists := f.docs[doc.ID]; exists {
		return nil, duplicateKey("_id_", doc.ID)
	}
	f.docs[doc.ID] = doc
	return &mongo.InsertOneResult{InsertedID: doc.ID}, nil
}

func duplicateKey(index, key string) error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: "E11000 duplicate key error collection: marketplace.marketplace_events index: " + index + " dup key: { " + key + " }",
	}}}
}

func newEvent() *event.Event {
	return &event.Event{
		Seq:         12,
		ID:          id.NewEventID(),
		Type:        event.QuoteReviewed,
		Category:    event.CategoryQuote,
		AggregateID: "quote/4",
		Actor:       "buyer",
		Payload:     []byte(`{"status":"accepted","quote_id":4}`),
		OccurredAt:  time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestOnEventArchivesEvent(t *testing.T) {
	coll := &fakeCollection{docs: map[string]*eventModel{}}
	sink := New(coll)

	e := newEvent()
	require.NoError(t, sink.OnEvent(context.Background(), e))

	doc, ok := coll.docs[e.ID.String()]
	require.True(t, ok)
	assert.Equal(t, int64(12), doc.Seq)
	assert.Equal(t, "quote.reviewed", doc.Type)
	assert.Equal(t, "quote/4", doc.AggregateID)
	assert.Equal(t, "accepted", doc.Payload["status"])
	assert.Equal(t, e.OccurredAt, doc.OccurredAt)
}

func TestOnEventIgnoresDuplicates(t *testing.T) {
	coll := &fakeCollection{docs: map[string]*eventModel{}}
	sink := New(coll)

	e := newEvent()
	require.NoError(t, sink.OnEvent(context.Background(), e))
	require.NoError(t, sink.OnEvent(context.Background(), e))
	assert.Len(t, coll.docs, 1)
}

func TestOnEventReportsOtherDuplicateKeys(t *testing.T) {
	sink := New(&fakeCollection{err: duplicateKey("seq_1", "seq: 12")})
	err := sink.OnEvent(context.Background(), newEvent())
	assert.ErrorContains(t, err, "seq_1", "only an _id collision means the event is archived")
}

func TestOnEventKeepsLargeIntegers(t *testing.T) {
	coll := &fakeCollection{docs: map[string]*eventModel{}}
	sink := New(coll)

	e := newEvent()
	e.Type, e.Category = event.PointsMinted, event.CategoryPoints
	e.Payload = []byte(`{"to":"alice","amount":9007199254740993,"nested":{"balance":18014398509481985}}`)
	require.NoError(t, sink.OnEvent(context.Background(), e))

	doc := coll.docs[e.ID.String()]
	require.NotNil(t, doc)
	assert.Equal(t, int64(9007199254740993), doc.Payload["amount"])
	assert.Equal(t, "alice", doc.Payload["to"])

	raw, err := bson.Marshal(doc.Payload)
	require.NoError(t, err)
	var round struct {
		Nested struct {
			Balance int64 `bson:"balance"`
		} `bson:"nested"`
	}
	require.NoError(t, bson.Unmarshal(raw, &round))
	assert.Equal(t, int64(18014398509481985), round.Nested.Balance)
}

func TestOnEventReportsWriteFailure(t *testing.T) {
	sink := New(&fakeCollection{err: errors.New("no primary")})
	err := sink.OnEvent(context.Background(), newEvent())
	assert.ErrorContains(t, err, "no primary")
}

func TestOnEventRejectsBadPayload(t *testing.T) {
	sink := New(&fakeCollection{docs: map[string]*eventModel{}})
	e := newEvent()
	e.Payload = []byte(`not json`)
	assert.Error(t, sink.OnEvent(context.Background(), e))
}

func TestShutdownWithoutOwnedClient(t *testing.T) {
	assert.NoError(t, New(&fakeCollection{}).OnShutdown(context.Background()))
}

// Package mongoarchive keeps a permanent copy of every committed marketplace
// event in a MongoDB collection. Documents are keyed by event id, so
// re-delivered events are absorbed by the unique _id.
package mongoarchive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin     = (*Sink)(nil)
	_ plugin.OnEvent    = (*Sink)(nil)
	_ plugin.OnShutdown = (*Sink)(nil)
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "marketplace_events"

const codeDuplicateKey = 11000

// Collection is the part of *mongo.Collection the sink writes through.
type Collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
}

// Sink archives events into a collection.
type Sink struct {
	coll   Collection
	client *mongo.Client // set when the sink owns the connection
}

// New creates a sink writing to coll.
func New(coll Collection) *Sink {
	return &Sink{coll: coll}
}

// Open connects to uri, ensures the archive indexes exist and returns a sink
// that disconnects on shutdown.
func Open(ctx context.Context, uri, database, collection string) (*Sink, error) {
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongoarchive: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx) //nolint:errcheck // the ping error is the one worth returning
		return nil, fmt.Errorf("mongoarchive: ping: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	if _, err := coll.Indexes().CreateMany(ctx, indexes()); err != nil {
		_ = client.Disconnect(ctx) //nolint:errcheck // the index error is the one worth returning
		return nil, fmt.Errorf("mongoarchive: create indexes: %w", err)
	}

	return &Sink{coll: coll, client: client}, nil
}

func indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "seq", Value: 1}}},
		{Keys: bson.D{{Key: "aggregate_id", Value: 1}, {Key: "seq", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "occurred_at", Value: -1}}},
	}
}

// Name implements plugin.Plugin.
func (s *Sink) Name() string { return "mongo-archive" }

// OnEvent implements plugin.OnEvent.
func (s *Sink) OnEvent(ctx context.Context, e *event.Event) error {
	doc, err := toEventModel(e)
	if err != nil {
		return err
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		// Already archived by an earlier delivery.
		if duplicateID(err) {
			return nil
		}
		return fmt.Errorf("mongoarchive: insert event %s: %w", e.ID.String(), err)
	}
	return nil
}

// duplicateID reports whether err is a duplicate key error raised by the
// _id index alone.
func duplicateID(err error) bool {
	var we mongo.WriteException
	if !errors.As(err, &we) || we.WriteConcernError != nil || len(we.WriteErrors) == 0 {
		return false
	}
	for _, e := range we.WriteErrors {
		if e.Code != codeDuplicateKey || !strings.Contains(e.Message, "index: _id_ ") {
			return false
		}
	}
	return true
}

// OnShutdown implements plugin.OnShutdown.
func (s *Sink) OnShutdown(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// ==================== Event models ====================

type eventModel struct {
	ID          string    `bson:"_id"`
	Seq         int64     `bson:"seq"`
	Type        string    `bson:"type"`
	Category    string    `bson:"category"`
	AggregateID string    `bson:"aggregate_id"`
	Actor       string    `bson:"actor"`
	Payload     bson.M    `bson:"payload"`
	OccurredAt  time.Time `bson:"occurred_at"`
}

func toEventModel(e *event.Event) (*eventModel, error) {
	payload := bson.M{}
	if len(e.Payload) > 0 {
		// Relaxed extended JSON keeps integers above 2^53 exact.
		if err := bson.UnmarshalExtJSON(e.Payload, false, &payload); err != nil {
			return nil, fmt.Errorf("mongoarchive: decode payload of %s: %w", e.ID.String(), err)
		}
	}

	return &eventModel{
		ID:          e.ID.String(),
		Seq:         int64(e.Seq), //nolint:gosec // sequences stay far below MaxInt64
		Type:        string(e.Type),
		Category:    string(e.Category),
		AggregateID: e.AggregateID,
		Actor:       e.Actor,
		Payload:     payload,
		OccurredAt:  e.OccurredAt,
	}, nil
}

// Package redisstream publishes committed marketplace events to a Redis
// stream so services outside the process can follow the ledger.
//
// Entries carry the event id; consumers de-duplicate on it because relayed
// events may be appended more than once.
package redisstream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin     = (*Sink)(nil)
	_ plugin.OnEvent    = (*Sink)(nil)
	_ plugin.OnShutdown = (*Sink)(nil)
)

const (
	// DefaultStream is the stream key used when none is configured.
	DefaultStream = "marketplace:events"

	// DefaultMaxLen caps the stream length. Trimming is approximate.
	DefaultMaxLen = 100_000
)

// Sink appends every event it receives to a Redis stream.
type Sink struct {
	client redis.UniversalClient
	owned  bool
	stream string
	maxLen int64
	logger *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithStream sets the stream key.
func WithStream(key string) Option {
	return func(s *Sink) {
		if key != "" {
			s.stream = key
		}
	}
}

// WithMaxLen sets the approximate stream cap. Zero disables trimming.
func WithMaxLen(n int64) Option {
	return func(s *Sink) { s.maxLen = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) { s.logger = logger }
}

// New creates a sink on an existing client. The caller keeps ownership of
// the client.
func New(client redis.UniversalClient, opts ...Option) *Sink {
	s := &Sink{
		client: client,
		stream: DefaultStream,
		maxLen: DefaultMaxLen,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the Redis server at url and creates a sink that closes
// the connection on shutdown.
func Open(ctx context.Context, url string, opts ...Option) (*Sink, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisstream: parse redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // the ping error is the one worth returning
		return nil, fmt.Errorf("redisstream: ping redis: %w", err)
	}

	s := New(client, opts...)
	s.owned = true
	return s, nil
}

// Name implements plugin.Plugin.
func (s *Sink) Name() string { return "redis-stream" }

// OnEvent implements plugin.OnEvent.
func (s *Sink) OnEvent(ctx context.Context, e *event.Event) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: Values(e),
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redisstream: xadd %s: %w", e.Type, err)
	}
	return nil
}

// OnShutdown implements plugin.OnShutdown.
func (s *Sink) OnShutdown(_ context.Context) error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// Values returns the stream entry fields for e.
func Values(e *event.Event) map[string]any {
	return map[string]any{
		"event_id":     e.ID.String(),
		"seq":          strconv.FormatUint(e.Seq, 10),
		"type":         string(e.Type),
		"category":     string(e.Category),
		"aggregate_id": e.AggregateID,
		"actor":        e.Actor,
		"occurred_at":  e.OccurredAt.UTC().Format(time.RFC3339Nano),
		"payload":      string(e.Payload),
	}
}

package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/xraph/grove/driver"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/id"
)

// ==================== Event Store ====================

const eventColumns = `seq, id, type, category, aggregate_id, actor, payload, occurred_at,
    next_attempt_at, dispatched_at, dead_at, attempts, last_error`

func scanEvent(r driver.Rows) (*event.Event, error) {
	var (
		e                                event.Event
		eventID                          string
		payload                          []byte
		occurred, next, dispatched, dead timestamp
	)
	err := r.Scan(&e.Seq, &eventID, &e.Type, &e.Category, &e.AggregateID, &e.Actor, &payload, &occurred,
		&next, &dispatched, &dead, &e.Attempts, &e.LastError)
	if err != nil {
		return nil, err
	}
	if e.ID, err = id.ParseEventID(eventID); err != nil {
		return nil, err
	}
	e.Payload = payload
	e.OccurredAt = occurred.Time
	e.NextAttemptAt = next.Time
	e.DispatchedAt = dispatched.ptr()
	e.DeadAt = dead.ptr()
	return &e, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *event.Event) error {
	_, err := s.exec(ctx, `INSERT INTO mp_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Seq, e.ID.String(), e.Type, e.Category, e.AggregateID, e.Actor, string(e.Payload), s.d.ts(e.OccurredAt),
		s.d.ts(e.NextAttemptAt), s.d.nullTS(e.DispatchedAt), s.d.nullTS(e.DeadAt), e.Attempts, e.LastError,
	)
	return s.conflict(err, marketplace.ErrAlreadyExists)
}

func (s *Store) ListPendingEvents(ctx context.Context, now time.Time, limit int) ([]*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM mp_events
WHERE dispatched_at IS NULL AND dead_at IS NULL AND next_attempt_at <= ?
ORDER BY next_attempt_at, seq`
	args := []any{s.d.ts(now)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanEvent)
}

func (s *Store) MarkEventDispatched(ctx context.Context, eventID id.EventID, at time.Time) error {
	return s.execOne(ctx, marketplace.ErrEventNotFound, `
UPDATE mp_events SET dispatched_at = ?, attempts = attempts + 1, last_error = ''
WHERE id = ?`, s.d.ts(at), eventID.String())
}

func (s *Store) MarkEventFailed(ctx context.Context, eventID id.EventID, reason string, retryAt time.Time) error {
	return s.execOne(ctx, marketplace.ErrEventNotFound, `
UPDATE mp_events SET attempts = attempts + 1, last_error = ?, next_attempt_at = ?
WHERE id = ?`, reason, s.d.ts(retryAt), eventID.String())
}

func (s *Store) MarkEventDead(ctx context.Context, eventID id.EventID, reason string, at time.Time) error {
	return s.execOne(ctx, marketplace.ErrEventNotFound, `
UPDATE mp_events SET attempts = attempts + 1, last_error = ?, dead_at = ?
WHERE id = ?`, reason, s.d.ts(at), eventID.String())
}

func (s *Store) ListEvents(ctx context.Context, f event.Filter) ([]*event.Event, error) {
	conds := []string{"seq > ?"}
	args := []any{f.AfterSeq}
	if f.AggregateID != "" {
		conds = append(conds, "aggregate_id = ?")
		args = append(args, f.AggregateID)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}

	query := `SELECT ` + eventColumns + ` FROM mp_events WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY seq`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanEvent)
}

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/id"
	"github.com/xraph/marketplace/points"
	"github.com/xraph/marketplace/store"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testEvent(seq uint64) *event.Event {
	return &event.Event{
		Seq:           seq,
		ID:            id.NewEventID(),
		Type:          event.EntityRegistered,
		Category:      event.CategoryEntity,
		AggregateID:   "acme",
		Payload:       []byte(`{}`),
		OccurredAt:    t0,
		NextAttemptAt: t0,
	}
}

func appendEvent(t *testing.T, s *Store, e *event.Event) {
	t.Helper()
	require.NoError(t, s.Atomic(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.AppendEvent(ctx, e)
	}))
}

func TestTransactionsShareTheJournal(t *testing.T) {
	ctx := context.Background()
	s := New()
	for seq := uint64(1); seq <= 3; seq++ {
		appendEvent(t, s, testEvent(seq))
	}

	committed := s.state.journal
	next := s.state.clone()
	assert.Same(t, committed, next.journal, "a clone does not copy the outbox")
	assert.Empty(t, next.staged.events)

	require.NoError(t, next.AppendEvent(ctx, testEvent(4)))
	assert.Len(t, committed.eventOrder, 3, "staged events stay private until commit")

	inTx, err := next.ListEvents(ctx, event.Filter{})
	require.NoError(t, err)
	assert.Len(t, inTx, 4, "a transaction reads its own staged events")
}

func TestFailedTransactionLeavesJournalUntouched(t *testing.T) {
	ctx := context.Background()
	s := New()
	first := testEvent(1)
	appendEvent(t, s, first)

	errAbort := errors.New("abort")
	err := s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.AppendEvent(ctx, testEvent(2)); err != nil {
			return err
		}
		if err := tx.MarkEventDead(ctx, first.ID, "gave up", t0); err != nil {
			return err
		}
		entry := &points.Entry{ID: id.NewPointEntryID(), Owner: "alice", Amount: 1, CreatedAt: t0}
		if err := tx.AppendPointEntry(ctx, entry); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	events, err := s.ListEvents(ctx, event.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].IsDead())

	entries, err := s.ListPointEntries(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	pending, err := s.ListPendingEvents(ctx, t0, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestPendingIndexFollowsDelivery(t *testing.T) {
	ctx := context.Background()
	s := New()
	e1, e2 := testEvent(1), testEvent(2)
	appendEvent(t, s, e1)
	appendEvent(t, s, e2)
	assert.Len(t, s.state.journal.pending, 2)

	require.NoError(t, s.MarkEventDispatched(ctx, e1.ID, t0))
	require.NoError(t, s.MarkEventDead(ctx, e2.ID, "gave up", t0))
	assert.Empty(t, s.state.journal.pending)

	all, err := s.ListEvents(ctx, event.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

package types_test

import (
	"testing"
	"time"

	"github.com/xraph/marketplace/types"
)

func TestNewEntity(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.FixedZone("x", 3600))
	e := types.NewEntity(now)

	if !e.CreatedAt.Equal(e.UpdatedAt) {
		t.Fatalf("created %v != updated %v", e.CreatedAt, e.UpdatedAt)
	}
	if e.CreatedAt.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", e.CreatedAt.Location())
	}
	if e.CreatedAt.Nanosecond()%1000 != 0 {
		t.Errorf("expected microsecond precision, got %d ns", e.CreatedAt.Nanosecond())
	}
}

func TestTouch(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e := types.NewEntity(start)
	e.Touch(start.Add(time.Hour))

	if got := e.UpdatedAt.Sub(e.CreatedAt); got != time.Hour {
		t.Errorf("expected 1h between created and updated, got %v", got)
	}
	if !e.CreatedAt.Equal(start) {
		t.Errorf("touch moved created_at to %v", e.CreatedAt)
	}
}

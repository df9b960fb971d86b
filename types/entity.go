// Package types provides common types used across the marketplace.
package types

import "time"

// Entity carries the record timestamps shared by every marketplace record.
// CreatedAt is the registration/creation time; UpdatedAt moves on each mutation.
type Entity struct {
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NewEntity creates a new Entity stamped with now, truncated to microseconds
// so values survive a round trip through SQL backends unchanged.
func NewEntity(now time.Time) Entity {
	now = now.UTC().Truncate(time.Microsecond)
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch moves UpdatedAt to now.
func (e *Entity) Touch(now time.Time) {
	e.UpdatedAt = now.UTC().Truncate(time.Microsecond)
}

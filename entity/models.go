// Package entity defines the Company and Vendor identities held by the
// marketplace entity registry.
package entity

import (
	"time"

	"github.com/xraph/marketplace/types"
)

// Kind is the identity class of a registered entity.
type Kind string

const (
	KindCompany Kind = "company"
	KindVendor  Kind = "vendor"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	return k == KindCompany || k == KindVendor
}

// Entity is a registered Company or Vendor. ShareID is immutable and never
// reassigned; entities are never deleted.
type Entity struct {
	types.Entity
	Seq          uint64 `json:"-" bson:"seq"`
	ShareID      string `json:"share_id" bson:"share_id"`
	Name         string `json:"name" bson:"name"`
	Kind         Kind   `json:"kind" bson:"kind"`
	Registrar    string `json:"registrar" bson:"registrar"`
	MetadataHash string `json:"metadata_hash" bson:"metadata_hash"`
	IsActive     bool   `json:"is_active" bson:"is_active"`
}

// RegisteredAt returns the time the entity was registered.
func (e *Entity) RegisteredAt() time.Time { return e.CreatedAt }

// ControlledBy reports whether caller is the entity's registrar.
func (e *Entity) ControlledBy(caller string) bool {
	return caller != "" && e.Registrar == caller
}

// Stats summarises the registry by kind.
type Stats struct {
	Companies uint64 `json:"companies"`
	Vendors   uint64 `json:"vendors"`
	Total     uint64 `json:"total"`
}

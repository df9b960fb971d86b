package marketplace

import "github.com/xraph/marketplace/types"

// Entity is re-exported from types package so users don't have to import it.
type Entity = types.Entity

// NewEntity is re-exported from types package.
var NewEntity = types.NewEntity

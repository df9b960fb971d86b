package marketplace

import "github.com/xraph/marketplace/id"

// ID is the TypeID identifier carried by events and point ledger entries.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix

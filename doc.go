// Package marketplace provides the ledger core of a procurement marketplace.
//
// Marketplace is designed as a library, not a service. Import it into your Go
// application, or run cmd/marketplaced for a ready-made HTTP daemon. It keeps
// five ledgers behind one engine:
//
//   - Entity registry: companies and vendors keyed by an immutable share id
//   - Connection ledger: vendor to company requests and the resulting connections
//   - Listing ledger: procurement listings with public or private visibility
//   - Quote ledger: vendor quotes on listings and their review
//   - Point ledger: a non-negative point balance per identity, with allowances
//
// # Quick Start
//
// Create a marketplace with your preferred store:
//
//	import (
//	    "github.com/xraph/marketplace"
//	    "github.com/xraph/marketplace/store/postgres"
//	)
//
//	st, err := postgres.Open(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mp := marketplace.New(st)
//	if err := mp.Start(ctx); err != nil { // migrates and starts the event relay
//	    log.Fatal(err)
//	}
//	defer mp.Stop()
//
// # Callers
//
// Every mutating operation takes the Caller performing it. The engine trusts
// the caller it is given; authentication belongs to the layer above. A
// caller controls an entity when it registered it. Platform admins may act
// in place of the owner for the operations enabled in Policy:
//
//	acme, err := mp.RegisterEntity(ctx, marketplace.Member("alice"), "acme", "Acme Ltd", entity.KindCompany, "")
//	_, err = mp.DeactivateEntity(ctx, marketplace.Admin("ops"), "acme")
//
// # Consistency
//
// Each operation runs in a single store transaction and under one engine
// lock: it is either fully applied or leaves no trace, and mutations are
// totally ordered. Every committed mutation appends exactly one event to the
// store's outbox in the same transaction. Plugins receive events after
// commit; events a plugin failed to take are re-delivered by the relay.
//
// # Errors
//
// Every error belongs to one kind, matched with errors.Is or the Is helpers:
//
//	if marketplace.IsInsufficientBalance(err) {
//	    // top up
//	}
//
// # Identifiers
//
// Entities are keyed by their share id. Requests, connections, listings and
// quotes receive monotonic integer ids starting at 1. Events and point
// ledger entries carry TypeIDs:
//
//	evt_01h2xcejqtf2nbrexx3vqjhp41  // Event ID
//	pte_01h455vb4pex5vsknk084sn02q  // Point entry ID
package marketplace

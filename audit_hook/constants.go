package audithook

import "github.com/xraph/marketplace/event"

// Action constants for audit events. Actions are the event type names.
const (
	// Entity actions
	ActionEntityRegistered  = string(event.EntityRegistered)
	ActionMetadataUpdated   = string(event.MetadataUpdated)
	ActionEntityDeactivated = string(event.EntityDeactivated)
	ActionEntityReactivated = string(event.EntityReactivated)

	// Connection actions
	ActionConnectionRequested = string(event.ConnectionRequested)
	ActionConnectionApproved  = string(event.ConnectionApproved)
	ActionConnectionDenied    = string(event.ConnectionDenied)
	ActionConnectionCancelled = string(event.ConnectionCancelled)
	ActionConnectionRevoked   = string(event.ConnectionRevoked)

	// Listing actions
	ActionListingCreated      = string(event.ListingCreated)
	ActionListingUpdated      = string(event.ListingUpdated)
	ActionListingClosed       = string(event.ListingClosed)
	ActionListingCancelled    = string(event.ListingCancelled)
	ActionVendorAccessGranted = string(event.VendorAccessGranted)
	ActionVendorAccessRevoked = string(event.VendorAccessRevoked)

	// Quote actions
	ActionQuoteSubmitted = string(event.QuoteSubmitted)
	ActionQuoteUpdated   = string(event.QuoteUpdated)
	ActionQuoteWithdrawn = string(event.QuoteWithdrawn)
	ActionQuoteReviewed  = string(event.QuoteReviewed)

	// Point actions
	ActionPointsMinted       = string(event.PointsMinted)
	ActionPointsDeducted     = string(event.PointsDeducted)
	ActionPointsTransferred  = string(event.PointsTransferred)
	ActionPointsBurned       = string(event.PointsBurned)
	ActionAllowanceApproved  = string(event.AllowanceApproved)
	ActionDeductorAuthorized = string(event.DeductorAuthorized)
	ActionDeductorRevoked    = string(event.DeductorRevoked)
	ActionCostsUpdated       = string(event.CostsUpdated)
)

// Resource constants for audit events.
const (
	ResourceEntity     = "entity"
	ResourceConnection = "connection"
	ResourceListing    = "listing"
	ResourceQuote      = "quote"
	ResourcePoints     = "points"
)

// Category constants for audit events.
const (
	CategoryRegistry    = "registry"
	CategoryNetwork     = "network"
	CategoryProcurement = "procurement"
	CategoryPayment     = "payment"
	CategoryAccess      = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

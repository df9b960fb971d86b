package marketplace

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a marketplace operation matches
// exactly one of these through errors.Is.
var (
	ErrValidation          = errors.New("marketplace: validation failed")
	ErrNotFound            = errors.New("marketplace: not found")
	ErrConflict            = errors.New("marketplace: conflict")
	ErrUnauthorized        = errors.New("marketplace: unauthorized")
	ErrInvalidState        = errors.New("marketplace: invalid state")
	ErrInsufficientBalance = errors.New("marketplace: insufficient balance")
)

// Sentinel errors for specific failure scenarios. Each wraps its kind.
var (
	// Entity errors
	ErrEntityNotFound      = kindError(ErrNotFound, "entity not found")
	ErrEntityExists        = kindError(ErrConflict, "share id already registered")
	ErrEntityInactive      = kindError(ErrInvalidState, "entity is inactive")
	ErrEntityAlreadyActive = kindError(ErrInvalidState, "entity already active")

	// Connection errors
	ErrRequestNotFound      = kindError(ErrNotFound, "connection request not found")
	ErrConnectionNotFound   = kindError(ErrNotFound, "connection not found")
	ErrSelfConnection       = kindError(ErrValidation, "self-connection")
	ErrPendingRequestExists = kindError(ErrConflict, "pending request already exists")
	ErrAlreadyConnected     = kindError(ErrConflict, "already connected")
	ErrRequestNotPending    = kindError(ErrInvalidState, "request is not pending")
	ErrConnectionInactive   = kindError(ErrInvalidState, "connection already inactive")

	// Listing errors
	ErrListingNotFound         = kindError(ErrNotFound, "listing not found")
	ErrListingNumberTaken      = kindError(ErrConflict, "listing number already used")
	ErrListingNotActive        = kindError(ErrInvalidState, "listing is not active")
	ErrInvalidTransition       = kindError(ErrInvalidState, "listing status cannot move backwards or leave a terminal state")
	ErrListingPublic           = kindError(ErrValidation, "vendor access applies to private listings only")
	ErrVendorAlreadyAuthorized = kindError(ErrConflict, "vendor already authorized")
	ErrVendorAccessNotFound    = kindError(ErrNotFound, "vendor not authorized")
	ErrVendorNotAuthorized     = kindError(ErrUnauthorized, "vendor not authorized for listing")

	// Quote errors
	ErrQuoteNotFound        = kindError(ErrNotFound, "quote not found")
	ErrQuoteNumberTaken     = kindError(ErrConflict, "quote number already used")
	ErrAlreadySubmitted     = kindError(ErrConflict, "already submitted")
	ErrQuoteNotModifiable   = kindError(ErrInvalidState, "quote cannot be modified")
	ErrQuoteNotWithdrawable = kindError(ErrInvalidState, "quote cannot be withdrawn")
	ErrQuoteNotReviewable   = kindError(ErrInvalidState, "quote cannot be reviewed")
	ErrInvalidReviewStatus  = kindError(ErrValidation, "invalid review status")

	// Point errors
	ErrAccountNotFound     = kindError(ErrNotFound, "point account not found")
	ErrCostsNotSet         = kindError(ErrNotFound, "costs not set")
	ErrDeductorExists      = kindError(ErrConflict, "deductor already authorized")
	ErrDeductorNotFound    = kindError(ErrNotFound, "deductor not authorized")
	ErrInvalidAmount       = kindError(ErrValidation, "amount must be greater than zero")
	ErrBalanceOverflow     = kindError(ErrValidation, "balance would overflow")
	ErrInsufficientAllowed = kindError(ErrInsufficientBalance, "allowance exceeded")

	// Event errors
	ErrEventNotFound = kindError(ErrNotFound, "event not found")

	// Generic duplicate for backends that cannot tell which key collided.
	ErrAlreadyExists = kindError(ErrConflict, "already exists")

	// Store errors
	ErrStoreClosed = errors.New("marketplace: store is closed")
)

// classified is a sentinel that belongs to one of the error kinds.
type classified struct {
	kind error
	msg  string
}

func kindError(kind error, msg string) error {
	return &classified{kind: kind, msg: msg}
}

func (e *classified) Error() string { return "marketplace: " + e.msg }

func (e *classified) Unwrap() error { return e.kind }

// ValidationError represents a validation failure on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("marketplace: validation failed for %s: %s", e.Field, e.Message)
}

// Is reports ValidationError as an ErrValidation.
func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientBalanceError reports a debit larger than the available balance.
type InsufficientBalanceError struct {
	Owner    string
	Balance  uint64
	Required uint64
}

func (e InsufficientBalanceError) Error() string {
	return fmt.Sprintf("marketplace: insufficient balance for %s: have %d, need %d", e.Owner, e.Balance, e.Required)
}

// Is reports InsufficientBalanceError as an ErrInsufficientBalance.
func (e InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// AuthorizationError reports a caller without rights for an operation.
type AuthorizationError struct {
	Caller    string
	Operation string
}

func (e AuthorizationError) Error() string {
	return fmt.Sprintf("marketplace: %s not allowed for caller %q", e.Operation, e.Caller)
}

// Is reports AuthorizationError as an ErrUnauthorized.
func (e AuthorizationError) Is(target error) bool { return target == ErrUnauthorized }

func invalid(field, message string) error {
	return ValidationError{Field: field, Message: message}
}

// IsValidation returns true if err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound returns true if err reports an unknown record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict returns true if err reports a duplicate key.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsUnauthorized returns true if the caller lacked rights for the operation.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsInvalidState returns true if the operation is not valid in the record's current status.
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }

// IsInsufficientBalance returns true if a debit exceeded the balance or allowance.
func IsInsufficientBalance(err error) bool { return errors.Is(err, ErrInsufficientBalance) }

// Package connection defines vendor to company connection requests and the
// connections created when a request is approved.
package connection

import (
	"time"

	"github.com/xraph/marketplace/types"
)

// RequestStatus is the state of a connection request. Every status other
// than pending is terminal.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestDenied    RequestStatus = "denied"
	RequestCancelled RequestStatus = "cancelled"
)

// IsValid reports whether s is a known request status.
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestDenied, RequestCancelled:
		return true
	}
	return false
}

// Request is a vendor's request to connect with a company.
type Request struct {
	types.Entity
	ID              uint64        `json:"id" bson:"id"`
	VendorShareID   string        `json:"vendor_share_id" bson:"vendor_share_id"`
	CompanyShareID  string        `json:"company_share_id" bson:"company_share_id"`
	MessageHash     string        `json:"message_hash" bson:"message_hash"`
	Status          RequestStatus `json:"status" bson:"status"`
	ReviewNotesHash string        `json:"review_notes_hash,omitempty" bson:"review_notes_hash,omitempty"`
	ReviewedBy      string        `json:"reviewed_by,omitempty" bson:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty"`
}

// IsPending reports whether the request can still be reviewed or cancelled.
func (r *Request) IsPending() bool { return r.Status == RequestPending }

// Connection links a vendor and a company. It only exists as the result of
// an approved request and never reactivates once revoked.
type Connection struct {
	types.Entity
	ID                   uint64     `json:"id" bson:"id"`
	VendorShareID        string     `json:"vendor_share_id" bson:"vendor_share_id"`
	CompanyShareID       string     `json:"company_share_id" bson:"company_share_id"`
	ApprovedBy           string     `json:"approved_by" bson:"approved_by"`
	IsActive             bool       `json:"is_active" bson:"is_active"`
	OriginalRequestID    uint64     `json:"original_request_id" bson:"original_request_id"`
	RevokedBy            string     `json:"revoked_by,omitempty" bson:"revoked_by,omitempty"`
	RevocationReasonHash string     `json:"revocation_reason_hash,omitempty" bson:"revocation_reason_hash,omitempty"`
	RevokedAt            *time.Time `json:"revoked_at,omitempty" bson:"revoked_at,omitempty"`
}

// ConnectedAt returns the time the connection was created.
func (c *Connection) ConnectedAt() time.Time { return c.CreatedAt }

// Filter narrows request and connection listings. Empty fields match all.
type Filter struct {
	VendorShareID  string
	CompanyShareID string
}

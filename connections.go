package marketplace

import (
	"context"

	"github.com/xraph/marketplace/connection"
	"github.com/xraph/marketplace/entity"
	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/store"
	"github.com/xraph/marketplace/types"
)

// ──────────────────────────────────────────────────
// Connection Ledger
// ──────────────────────────────────────────────────

// ConnectionApproval is the payload of a ConnectionApproved event.
type ConnectionApproval struct {
	Request    *connection.Request    `json:"request"`
	Connection *connection.Connection `json:"connection"`
}

// SendConnectionRequest opens a pending request from a vendor to a company.
// The caller must control the vendor. Only one pending request may exist
// per pair, and none while the pair is actively connected.
func (m *Marketplace) SendConnectionRequest(ctx context.Context, caller Caller, vendorShareID, companyShareID, messageHash string) (*connection.Request, error) {
	if err := requireCaller(caller, "send connection request"); err != nil {
		return nil, err
	}
	if err := requireKey("vendor_share_id", vendorShareID); err != nil {
		return nil, err
	}
	if err := requireKey("company_share_id", companyShareID); err != nil {
		return nil, err
	}
	if vendorShareID == companyShareID {
		return nil, ErrSelfConnection
	}
	if err := optionalHash("message_hash", messageHash); err != nil {
		return nil, err
	}

	var created *connection.Request
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		vendor, err := activeEntity(ctx, o.tx, "vendor_share_id", vendorShareID, entity.KindVendor)
		if err != nil {
			return err
		}
		if !allows(caller, vendor.Registrar, false) {
			return deny(caller, "send connection request")
		}
		if _, err := activeEntity(ctx, o.tx, "company_share_id", companyShareID, entity.KindCompany); err != nil {
			return err
		}

		_, err = o.tx.FindPendingRequest(ctx, vendorShareID, companyShareID)
		if pending, err := found(err); err != nil {
			return err
		} else if pending {
			return ErrPendingRequestExists
		}

		_, err = o.tx.FindActiveConnection(ctx, vendorShareID, companyShareID)
		if connected, err := found(err); err != nil {
			return err
		} else if connected {
			return ErrAlreadyConnected
		}

		seq, err := o.tx.NextSequence(ctx, store.SeqRequest)
		if err != nil {
			return err
		}

		r := &connection.Request{
			Entity:         types.NewEntity(o.now),
			ID:             seq,
			VendorShareID:  vendorShareID,
			CompanyShareID: companyShareID,
			MessageHash:    messageHash,
			Status:         connection.RequestPending,
		}
		if err := o.tx.CreateRequest(ctx, r); err != nil {
			return err
		}

		created = r
		return o.emit(ctx, event.ConnectionRequested, aggregateID("request", r.ID), r)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("connection requested",
		"request_id", created.ID,
		"vendor", vendorShareID,
		"company", companyShareID,
	)
	return created, nil
}

// ApproveRequest approves a pending request and creates the active
// connection it leads to. Allowed for the company's registrar and, per
// policy, the admin.
func (m *Marketplace) ApproveRequest(ctx context.Context, caller Caller, requestID uint64, notesHash string) (*connection.Request, *connection.Connection, error) {
	if err := optionalHash("notes_hash", notesHash); err != nil {
		return nil, nil, err
	}

	var (
		approved *connection.Request
		conn     *connection.Connection
	)
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		r, err := m.reviewableRequest(ctx, o, requestID, "approve connection request")
		if err != nil {
			return err
		}

		r.Status = connection.RequestApproved
		r.ReviewNotesHash = notesHash
		r.ReviewedBy = caller.ID
		r.ReviewedAt = &o.now
		r.Touch(o.now)
		if err := o.tx.UpdateRequest(ctx, r); err != nil {
			return err
		}

		seq, err := o.tx.NextSequence(ctx, store.SeqConnection)
		if err != nil {
			return err
		}

		c := &connection.Connection{
			Entity:            types.NewEntity(o.now),
			ID:                seq,
			VendorShareID:     r.VendorShareID,
			CompanyShareID:    r.CompanyShareID,
			ApprovedBy:        caller.ID,
			IsActive:          true,
			OriginalRequestID: r.ID,
		}
		if err := o.tx.CreateConnection(ctx, c); err != nil {
			return err
		}

		approved, conn = r, c
		return o.emit(ctx, event.ConnectionApproved, aggregateID("request", r.ID), ConnectionApproval{
			Request:    r,
			Connection: c,
		})
	})
	if err != nil {
		return nil, nil, err
	}

	m.logger.Debug("connection approved",
		"request_id", approved.ID,
		"connection_id", conn.ID,
	)
	return approved, conn, nil
}

// DenyRequest denies a pending request.
func (m *Marketplace) DenyRequest(ctx context.Context, caller Caller, requestID uint64, reasonHash string) (*connection.Request, error) {
	if err := optionalHash("reason_hash", reasonHash); err != nil {
		return nil, err
	}

	var denied *connection.Request
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		r, err := m.reviewableRequest(ctx, o, requestID, "deny connection request")
		if err != nil {
			return err
		}

		r.Status = connection.RequestDenied
		r.ReviewNotesHash = reasonHash
		r.ReviewedBy = caller.ID
		r.ReviewedAt = &o.now
		r.Touch(o.now)
		if err := o.tx.UpdateRequest(ctx, r); err != nil {
			return err
		}

		denied = r
		return o.emit(ctx, event.ConnectionDenied, aggregateID("request", r.ID), r)
	})
	if err != nil {
		return nil, err
	}
	return denied, nil
}

// reviewableRequest loads a pending request the caller may approve or deny.
func (m *Marketplace) reviewableRequest(ctx context.Context, o *op, requestID uint64, opName string) (*connection.Request, error) {
	r, err := o.tx.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	company, err := o.tx.GetEntity(ctx, r.CompanyShareID)
	if err != nil {
		return nil, err
	}
	if !allows(o.caller, company.Registrar, m.policy.ReviewRequest) {
		return nil, deny(o.caller, opName)
	}

	if !r.IsPending() {
		return nil, ErrRequestNotPending
	}
	return r, nil
}

// CancelRequest withdraws a pending request. Only the requesting vendor's
// registrar may cancel.
func (m *Marketplace) CancelRequest(ctx context.Context, caller Caller, requestID uint64) (*connection.Request, error) {
	var cancelled *connection.Request
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		r, err := o.tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}

		vendor, err := o.tx.GetEntity(ctx, r.VendorShareID)
		if err != nil {
			return err
		}
		if !allows(caller, vendor.Registrar, false) {
			return deny(caller, "cancel connection request")
		}
		if !r.IsPending() {
			return ErrRequestNotPending
		}

		r.Status = connection.RequestCancelled
		r.Touch(o.now)
		if err := o.tx.UpdateRequest(ctx, r); err != nil {
			return err
		}

		cancelled = r
		return o.emit(ctx, event.ConnectionCancelled, aggregateID("request", r.ID), r)
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// RevokeConnection deactivates an active connection. A new request and
// approval are needed to connect the pair again.
func (m *Marketplace) RevokeConnection(ctx context.Context, caller Caller, connectionID uint64, reasonHash string) (*connection.Connection, error) {
	if err := optionalHash("reason_hash", reasonHash); err != nil {
		return nil, err
	}

	var revoked *connection.Connection
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		c, err := o.tx.GetConnection(ctx, connectionID)
		if err != nil {
			return err
		}

		company, err := o.tx.GetEntity(ctx, c.CompanyShareID)
		if err != nil {
			return err
		}
		if !allows(caller, company.Registrar, m.policy.RevokeConnection) {
			return deny(caller, "revoke connection")
		}
		if !c.IsActive {
			return ErrConnectionInactive
		}

		c.IsActive = false
		c.RevokedBy = caller.ID
		c.RevocationReasonHash = reasonHash
		c.RevokedAt = &o.now
		c.Touch(o.now)
		if err := o.tx.UpdateConnection(ctx, c); err != nil {
			return err
		}

		revoked = c
		return o.emit(ctx, event.ConnectionRevoked, aggregateID("connection", c.ID), c)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("connection revoked", "connection_id", connectionID)
	return revoked, nil
}

// GetRequest returns a connection request by id.
func (m *Marketplace) GetRequest(ctx context.Context, requestID uint64) (*connection.Request, error) {
	return m.store.GetRequest(ctx, requestID)
}

// GetConnection returns a connection by id.
func (m *Marketplace) GetConnection(ctx context.Context, connectionID uint64) (*connection.Connection, error) {
	return m.store.GetConnection(ctx, connectionID)
}

// IsConnected reports whether the pair has an active connection.
func (m *Marketplace) IsConnected(ctx context.Context, vendorShareID, companyShareID string) (bool, error) {
	_, err := m.store.FindActiveConnection(ctx, vendorShareID, companyShareID)
	return found(err)
}

// RequestsByVendor returns every request sent by a vendor, oldest first.
func (m *Marketplace) RequestsByVendor(ctx context.Context, vendorShareID string) ([]*connection.Request, error) {
	return m.store.ListRequests(ctx, connection.Filter{VendorShareID: vendorShareID})
}

// RequestsByCompany returns every request addressed to a company, oldest first.
func (m *Marketplace) RequestsByCompany(ctx context.Context, companyShareID string) ([]*connection.Request, error) {
	return m.store.ListRequests(ctx, connection.Filter{CompanyShareID: companyShareID})
}

// ConnectionsByVendor returns the vendor's connections, revoked ones included.
func (m *Marketplace) ConnectionsByVendor(ctx context.Context, vendorShareID string) ([]*connection.Connection, error) {
	return m.store.ListConnections(ctx, connection.Filter{VendorShareID: vendorShareID})
}

// ConnectionsByCompany returns the company's connections, revoked ones included.
func (m *Marketplace) ConnectionsByCompany(ctx context.Context, companyShareID string) ([]*connection.Connection, error) {
	return m.store.ListConnections(ctx, connection.Filter{CompanyShareID: companyShareID})
}

package sqlstore

import (
	"context"
	"strings"

	"github.com/xraph/grove/driver"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/connection"
)

// ==================== Connection Store ====================

const requestColumns = `id, vendor_share_id, company_share_id, message_hash, status,
    review_notes_hash, reviewed_by, reviewed_at, created_at, updated_at`

func scanRequest(r row) (*connection.Request, error) {
	var (
		req                        connection.Request
		reviewed, created, updated timestamp
	)
	err := r.Scan(&req.ID, &req.VendorShareID, &req.CompanyShareID, &req.MessageHash, &req.Status,
		&req.ReviewNotesHash, &req.ReviewedBy, &reviewed, &created, &updated)
	if err != nil {
		return nil, err
	}
	req.ReviewedAt = reviewed.ptr()
	req.CreatedAt, req.UpdatedAt = created.Time, updated.Time
	return &req, nil
}

func (s *Store) CreateRequest(ctx context.Context, r *connection.Request) error {
	_, err := s.exec(ctx, `INSERT INTO mp_connection_requests (`+requestColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.VendorShareID, r.CompanyShareID, r.MessageHash, r.Status,
		r.ReviewNotesHash, r.ReviewedBy, s.d.nullTS(r.ReviewedAt), s.d.ts(r.CreatedAt), s.d.ts(r.UpdatedAt),
	)
	return s.conflict(err, marketplace.ErrPendingRequestExists)
}

func (s *Store) GetRequest(ctx context.Context, requestID uint64) (*connection.Request, error) {
	r, err := scanRequest(s.queryRow(ctx, `SELECT `+requestColumns+` FROM mp_connection_requests WHERE id = ?`, requestID))
	if err != nil {
		return nil, noRows(err, marketplace.ErrRequestNotFound)
	}
	return r, nil
}

func (s *Store) UpdateRequest(ctx context.Context, r *connection.Request) error {
	return s.execOne(ctx, marketplace.ErrRequestNotFound, `
UPDATE mp_connection_requests
SET status = ?, review_notes_hash = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ?
WHERE id = ?`,
		r.Status, r.ReviewNotesHash, r.ReviewedBy, s.d.nullTS(r.ReviewedAt), s.d.ts(r.UpdatedAt), r.ID,
	)
}

func (s *Store) FindPendingRequest(ctx context.Context, vendorShareID, companyShareID string) (*connection.Request, error) {
	r, err := scanRequest(s.queryRow(ctx, `SELECT `+requestColumns+` FROM mp_connection_requests
WHERE vendor_share_id = ? AND company_share_id = ? AND status = ?`,
		vendorShareID, companyShareID, connection.RequestPending,
	))
	if err != nil {
		return nil, noRows(err, marketplace.ErrRequestNotFound)
	}
	return r, nil
}

func (s *Store) ListRequests(ctx context.Context, f connection.Filter) ([]*connection.Request, error) {
	where, args := pairFilter(f)
	rows, err := s.query(ctx, `SELECT `+requestColumns+` FROM mp_connection_requests`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(r driver.Rows) (*connection.Request, error) { return scanRequest(r) })
}

const connectionColumns = `id, vendor_share_id, company_share_id, approved_by, is_active, original_request_id,
    revoked_by, revocation_reason_hash, revoked_at, created_at, updated_at`

func scanConnection(r row) (*connection.Connection, error) {
	var (
		c                         connection.Connection
		revoked, created, updated timestamp
	)
	err := r.Scan(&c.ID, &c.VendorShareID, &c.CompanyShareID, &c.ApprovedBy, &c.IsActive, &c.OriginalRequestID,
		&c.RevokedBy, &c.RevocationReasonHash, &revoked, &created, &updated)
	if err != nil {
		return nil, err
	}
	c.RevokedAt = revoked.ptr()
	c.CreatedAt, c.UpdatedAt = created.Time, updated.Time
	return &c, nil
}

func (s *Store) CreateConnection(ctx context.Context, c *connection.Connection) error {
	_, err := s.exec(ctx, `INSERT INTO mp_connections (`+connectionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.VendorShareID, c.CompanyShareID, c.ApprovedBy, c.IsActive, c.OriginalRequestID,
		c.RevokedBy, c.RevocationReasonHash, s.d.nullTS(c.RevokedAt), s.d.ts(c.CreatedAt), s.d.ts(c.UpdatedAt),
	)
	return s.conflict(err, marketplace.ErrAlreadyConnected)
}

func (s *Store) GetConnection(ctx context.Context, connectionID uint64) (*connection.Connection, error) {
	c, err := scanConnection(s.queryRow(ctx, `SELECT `+connectionColumns+` FROM mp_connections WHERE id = ?`, connectionID))
	if err != nil {
		return nil, noRows(err, marketplace.ErrConnectionNotFound)
	}
	return c, nil
}

func (s *Store) UpdateConnection(ctx context.Context, c *connection.Connection) error {
	return s.execOne(ctx, marketplace.ErrConnectionNotFound, `
UPDATE mp_connections
SET is_active = ?, revoked_by = ?, revocation_reason_hash = ?, revoked_at = ?, updated_at = ?
WHERE id = ?`,
		c.IsActive, c.RevokedBy, c.RevocationReasonHash, s.d.nullTS(c.RevokedAt), s.d.ts(c.UpdatedAt), c.ID,
	)
}

func (s *Store) FindActiveConnection(ctx context.Context, vendorShareID, companyShareID string) (*connection.Connection, error) {
	c, err := scanConnection(s.queryRow(ctx, `SELECT `+connectionColumns+` FROM mp_connections
WHERE vendor_share_id = ? AND company_share_id = ? AND is_active = ?`,
		vendorShareID, companyShareID, true,
	))
	if err != nil {
		return nil, noRows(err, marketplace.ErrConnectionNotFound)
	}
	return c, nil
}

func (s *Store) ListConnections(ctx context.Context, f connection.Filter) ([]*connection.Connection, error) {
	where, args := pairFilter(f)
	rows, err := s.query(ctx, `SELECT `+connectionColumns+` FROM mp_connections`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(r driver.Rows) (*connection.Connection, error) { return scanConnection(r) })
}

func pairFilter(f connection.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.VendorShareID != "" {
		conds = append(conds, "vendor_share_id = ?")
		args = append(args, f.VendorShareID)
	}
	if f.CompanyShareID != "" {
		conds = append(conds, "company_share_id = ?")
		args = append(args, f.CompanyShareID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

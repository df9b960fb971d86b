package marketplace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/connection"
	"github.com/xraph/marketplace/entity"
)

func TestConnectionScenario(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	req, err := f.mp.SendConnectionRequest(f.ctx, bob, vendor, company, "msg")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), req.ID)
	assert.Equal(t, connection.RequestPending, req.Status)

	approved, conn, err := f.mp.ApproveRequest(f.ctx, alice, req.ID, "n1")
	require.NoError(t, err)
	assert.Equal(t, connection.RequestApproved, approved.Status)
	assert.Equal(t, "n1", approved.ReviewNotesHash)
	assert.Equal(t, uint64(1), conn.ID)
	assert.True(t, conn.IsActive)
	assert.Equal(t, req.ID, conn.OriginalRequestID)

	connected, err := f.mp.IsConnected(f.ctx, vendor, company)
	require.NoError(t, err)
	assert.True(t, connected)

	stored, err := f.mp.GetRequest(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, connection.RequestApproved, stored.Status)
}

func TestSendConnectionRequest_Rules(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	_, err := f.mp.SendConnectionRequest(f.ctx, bob, vendor, vendor, "")
	assert.ErrorIs(t, err, marketplace.ErrSelfConnection)
	assert.True(t, marketplace.IsValidation(err))

	_, err = f.mp.SendConnectionRequest(f.ctx, alice, vendor, company, "")
	assert.True(t, marketplace.IsUnauthorized(err), "caller must control the vendor")

	_, err = f.mp.SendConnectionRequest(f.ctx, bob, vendor, "SH-NOPE", "")
	assert.True(t, marketplace.IsNotFound(err))

	_, err = f.mp.SendConnectionRequest(f.ctx, bob, vendor, vendor2, "")
	assert.True(t, marketplace.IsValidation(err), "target must be a company")

	_, err = f.mp.SendConnectionRequest(f.ctx, bob, vendor, company, "")
	require.NoError(t, err)
	_, err = f.mp.SendConnectionRequest(f.ctx, bob, vendor, company, "")
	assert.ErrorIs(t, err, marketplace.ErrPendingRequestExists)

	_, err = f.mp.DeactivateEntity(f.ctx, alice, company)
	require.NoError(t, err)
	_, err = f.mp.SendConnectionRequest(f.ctx, carol, vendor2, company, "")
	assert.True(t, marketplace.IsInvalidState(err), "inactive company")
}

func TestApproveTwice(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	req, err := f.mp.SendConnectionRequest(f.ctx, bob, vendor, company, "")
	require.NoError(t, err)
	_, _, err = f.mp.ApproveRequest(f.ctx, alice, req.ID, "")
	require.NoError(t, err)

	_, _, err = f.mp.ApproveRequest(f.ctx, alice, req.ID, "")
	assert.ErrorIs(t, err, marketplace.ErrRequestNotPending)
	assert.True(t, marketplace.IsInvalidState(err))

	_, err = f.mp.DenyRequest(f.ctx, alice, req.ID, "")
	assert.True(t, marketplace.IsInvalidState(err))

	// No second connection was created.
	conns, err := f.mp.ConnectionsByCompany(f.ctx, company)
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func TestDenyAndCancel(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	r1, err := f.mp.SendConnectionRequest(f.ctx, bob, vendor, company, "")
	require.NoError(t, err)

	_, err = f.mp.DenyRequest(f.ctx, bob, r1.ID, "")
	assert.True(t, marketplace.IsUnauthorized(err), "only the company side denies")

	denied, err := f.mp.DenyRequest(f.ctx, alice, r1.ID, "reason")
	require.NoError(t, err)
	assert.Equal(t, connection.RequestDenied, denied.Status)

	r2, err := f.mp.SendConnectionRequest(f.ctx, bob, vendor, company, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r2.ID)

	_, err = f.mp.CancelRequest(f.ctx, alice, r2.ID)
	assert.True(t, marketplace.IsUnauthorized(err), "only the vendor side cancels")
	_, err = f.mp.CancelRequest(f.ctx, admin, r2.ID)
	assert.True(t, marketplace.IsUnauthorized(err), "admin has no cancel override")

	cancelled, err := f.mp.CancelRequest(f.ctx, bob, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, connection.RequestCancelled, cancelled.Status)

	_, err = f.mp.CancelRequest(f.ctx, bob, r2.ID)
	assert.True(t, marketplace.IsInvalidState(err))

	connected, err := f.mp.IsConnected(f.ctx, vendor, company)
	require.NoError(t, err)
	assert.False(t, connected)

	byVendor, err := f.mp.RequestsByVendor(f.ctx, vendor)
	require.NoError(t, err)
	assert.Len(t, byVendor, 2)
	byCompany, err := f.mp.RequestsByCompany(f.ctx, company)
	require.NoError(t, err)
	assert.Len(t, byCompany, 2)
}

func TestRevokeAndReconnect(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	req, err := f.mp.SendConnectionRequest(f.ctx, bob, vendor, company, "")
	require.NoError(t, err)
	_, conn, err := f.mp.ApproveRequest(f.ctx, admin, req.ID, "")
	require.NoError(t, err, "admin may approve under the default policy")

	_, err = f.mp.SendConnectionRequest(f.ctx, bob, vendor, company, "")
	assert.ErrorIs(t, err, marketplace.ErrAlreadyConnected)

	_, err = f.mp.RevokeConnection(f.ctx, bob, conn.ID, "")
	assert.True(t, marketplace.IsUnauthorized(err))

	revoked, err := f.mp.RevokeConnection(f.ctx, alice, conn.ID, "r")
	require.NoError(t, err)
	assert.False(t, revoked.IsActive)
	assert.Equal(t, "alice", revoked.RevokedBy)

	_, err = f.mp.RevokeConnection(f.ctx, alice, conn.ID, "")
	assert.ErrorIs(t, err, marketplace.ErrConnectionInactive)

	connected, err := f.mp.IsConnected(f.ctx, vendor, company)
	require.NoError(t, err)
	assert.False(t, connected)

	// The pair can connect again through a brand-new request.
	again, err := f.mp.SendConnectionRequest(f.ctx, bob, vendor, company, "")
	require.NoError(t, err)
	assert.Equal(t, req.ID+1, again.ID)

	_, conn2, err := f.mp.ApproveRequest(f.ctx, alice, again.ID, "")
	require.NoError(t, err)
	assert.Equal(t, conn.ID+1, conn2.ID)

	byVendor, err := f.mp.ConnectionsByVendor(f.ctx, vendor)
	require.NoError(t, err)
	require.Len(t, byVendor, 2)
	assert.False(t, byVendor[0].IsActive)
	assert.True(t, byVendor[1].IsActive)
}

func TestRequestPolicyOverride(t *testing.T) {
	policy := marketplace.DefaultPolicy()
	policy.ReviewRequest = false
	f := newFixture(t, marketplace.WithPolicy(policy))
	f.seed(t)

	req, err := f.mp.SendConnectionRequest(f.ctx, bob, vendor, company, "")
	require.NoError(t, err)

	_, _, err = f.mp.ApproveRequest(f.ctx, admin, req.ID, "")
	assert.True(t, marketplace.IsUnauthorized(err))

	_, err = f.mp.RegisterEntity(f.ctx, admin, "SH-ADMIN", "Admin Co", entity.KindCompany, "")
	require.NoError(t, err, "admins may still register their own entities")
}

func TestUnknownRecords(t *testing.T) {
	f := newFixture(t)

	_, err := f.mp.GetRequest(f.ctx, 99)
	assert.ErrorIs(t, err, marketplace.ErrRequestNotFound)
	_, err = f.mp.GetConnection(f.ctx, 99)
	assert.ErrorIs(t, err, marketplace.ErrConnectionNotFound)
	_, _, err = f.mp.ApproveRequest(f.ctx, alice, 99, "")
	assert.True(t, marketplace.IsNotFound(err))
}

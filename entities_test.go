package marketplace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/entity"
	"github.com/xraph/marketplace/event"
)

func TestRegisterEntity(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	for _, shareID := range []string{company, vendor} {
		ok, err := f.mp.IsRegistered(f.ctx, shareID)
		require.NoError(t, err)
		assert.True(t, ok, shareID)
	}

	e, err := f.mp.GetEntity(f.ctx, company)
	require.NoError(t, err)
	assert.Equal(t, "alice", e.Registrar)
	assert.Equal(t, entity.KindCompany, e.Kind)
	assert.True(t, e.IsActive)

	stats, err := f.mp.PlatformStats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.Stats{Companies: 1, Vendors: 2, Total: 3}, stats)
}

func TestRegisterEntity_DuplicateShareID(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	// A used share id conflicts whatever the name, kind or caller.
	for _, kind := range []entity.Kind{entity.KindCompany, entity.KindVendor} {
		_, err := f.mp.RegisterEntity(f.ctx, carol, company, "Other name", kind, "")
		assert.True(t, marketplace.IsConflict(err), "kind %s: %v", kind, err)
		assert.ErrorIs(t, err, marketplace.ErrEntityExists)
	}

	stats, err := f.mp.PlatformStats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Total)
}

func TestRegisterEntity_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		caller  marketplace.Caller
		shareID string
		title   string
		kind    entity.Kind
		check   func(error) bool
	}{
		{"empty share id", alice, "", "Acme", entity.KindCompany, marketplace.IsValidation},
		{"empty name", alice, "X", "", entity.KindCompany, marketplace.IsValidation},
		{"unknown kind", alice, "X", "Acme", entity.Kind("robot"), marketplace.IsValidation},
		{"no caller", marketplace.Caller{}, "X", "Acme", entity.KindCompany, marketplace.IsUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.mp.RegisterEntity(f.ctx, tt.caller, tt.shareID, tt.title, tt.kind, "")
			assert.True(t, tt.check(err), "%v", err)
		})
	}

	exists, err := f.mp.Exists(f.ctx, "X")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeactivateReactivate(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	_, err := f.mp.DeactivateEntity(f.ctx, bob, company)
	assert.True(t, marketplace.IsUnauthorized(err))

	e, err := f.mp.DeactivateEntity(f.ctx, alice, company)
	require.NoError(t, err)
	assert.False(t, e.IsActive)

	registered, err := f.mp.IsRegistered(f.ctx, company)
	require.NoError(t, err)
	assert.False(t, registered)
	exists, err := f.mp.Exists(f.ctx, company)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = f.mp.DeactivateEntity(f.ctx, alice, company)
	assert.ErrorIs(t, err, marketplace.ErrEntityInactive)

	// The admin may reactivate any entity under the default policy.
	e, err = f.mp.ReactivateEntity(f.ctx, admin, company)
	require.NoError(t, err)
	assert.True(t, e.IsActive)

	_, err = f.mp.ReactivateEntity(f.ctx, alice, company)
	assert.ErrorIs(t, err, marketplace.ErrEntityAlreadyActive)
	assert.True(t, marketplace.IsInvalidState(err))
}

func TestUpdateMetadata_RegistrarOnly(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	_, err := f.mp.UpdateMetadata(f.ctx, admin, vendor, "meta-2")
	assert.True(t, marketplace.IsUnauthorized(err), "admin has no metadata override")

	e, err := f.mp.UpdateMetadata(f.ctx, bob, vendor, "meta-2")
	require.NoError(t, err)
	assert.Equal(t, "meta-2", e.MetadataHash)

	_, err = f.mp.UpdateMetadata(f.ctx, bob, "missing", "meta-3")
	assert.True(t, marketplace.IsNotFound(err))
}

func TestEntitiesByRegistrar(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	_, err := f.mp.RegisterEntity(f.ctx, bob, "SH-VEND003", "Bolt Two", entity.KindVendor, "")
	require.NoError(t, err)

	list, err := f.mp.EntitiesByRegistrar(f.ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, vendor, list[0].ShareID)
	assert.Equal(t, "SH-VEND003", list[1].ShareID)

	none, err := f.mp.EntitiesByRegistrar(f.ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEntityEvents(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	_, err := f.mp.UpdateMetadata(f.ctx, alice, company, "meta-x")
	require.NoError(t, err)
	_, err = f.mp.DeactivateEntity(f.ctx, admin, vendor2)
	require.NoError(t, err)

	assert.Equal(t, []event.Type{
		event.EntityRegistered,
		event.EntityRegistered,
		event.EntityRegistered,
		event.MetadataUpdated,
		event.EntityDeactivated,
	}, f.rec.types())

	last := f.rec.events[len(f.rec.events)-1]
	assert.Equal(t, vendor2, last.AggregateID)
	assert.Equal(t, "ops", last.Actor)
	assert.Equal(t, event.CategoryEntity, last.Category)
}

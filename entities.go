package marketplace

import (
	"context"

	"github.com/xraph/marketplace/entity"
	"github.com/xraph/marketplace/event"
	"github.com/xraph/marketplace/store"
	"github.com/xraph/marketplace/types"
)

// ──────────────────────────────────────────────────
// Entity Registry
// ──────────────────────────────────────────────────

// RegisterEntity registers a Company or Vendor under shareID. The caller
// becomes the entity's registrar.
func (m *Marketplace) RegisterEntity(ctx context.Context, caller Caller, shareID, name string, kind entity.Kind, metadataHash string) (*entity.Entity, error) {
	if err := requireCaller(caller, "register entity"); err != nil {
		return nil, err
	}
	if err := requireKey("share_id", shareID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, invalid("name", "must not be empty")
	}
	if len(name) > maxNameLen {
		return nil, invalid("name", "too long")
	}
	if !kind.IsValid() {
		return nil, invalid("kind", "must be company or vendor")
	}
	if err := optionalHash("metadata_hash", metadataHash); err != nil {
		return nil, err
	}

	var registered *entity.Entity
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		_, err := o.tx.GetEntity(ctx, shareID)
		exists, err := found(err)
		if err != nil {
			return err
		}
		if exists {
			return ErrEntityExists
		}

		seq, err := o.tx.NextSequence(ctx, store.SeqEntity)
		if err != nil {
			return err
		}

		e := &entity.Entity{
			Entity:       types.NewEntity(o.now),
			Seq:          seq,
			ShareID:      shareID,
			Name:         name,
			Kind:         kind,
			Registrar:    caller.ID,
			MetadataHash: metadataHash,
			IsActive:     true,
		}
		if err := o.tx.CreateEntity(ctx, e); err != nil {
			return err
		}

		registered = e
		return o.emit(ctx, event.EntityRegistered, shareID, e)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("entity registered", "share_id", shareID, "kind", kind)
	return registered, nil
}

// DeactivateEntity marks an entity inactive. Allowed for the registrar and,
// per policy, the admin.
func (m *Marketplace) DeactivateEntity(ctx context.Context, caller Caller, shareID string) (*entity.Entity, error) {
	return m.setEntityActive(ctx, caller, shareID, false)
}

// ReactivateEntity marks an inactive entity active again.
func (m *Marketplace) ReactivateEntity(ctx context.Context, caller Caller, shareID string) (*entity.Entity, error) {
	return m.setEntityActive(ctx, caller, shareID, true)
}

func (m *Marketplace) setEntityActive(ctx context.Context, caller Caller, shareID string, active bool) (*entity.Entity, error) {
	opName, override, typ := "deactivate entity", m.policy.DeactivateEntity, event.EntityDeactivated
	if active {
		opName, override, typ = "reactivate entity", m.policy.ReactivateEntity, event.EntityReactivated
	}

	var updated *entity.Entity
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		e, err := o.tx.GetEntity(ctx, shareID)
		if err != nil {
			return err
		}
		if !allows(caller, e.Registrar, override) {
			return deny(caller, opName)
		}
		if e.IsActive == active {
			if active {
				return ErrEntityAlreadyActive
			}
			return ErrEntityInactive
		}

		e.IsActive = active
		e.Touch(o.now)
		if err := o.tx.UpdateEntity(ctx, e); err != nil {
			return err
		}

		updated = e
		return o.emit(ctx, typ, shareID, e)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateMetadata replaces the entity's metadata hash. Registrar only.
func (m *Marketplace) UpdateMetadata(ctx context.Context, caller Caller, shareID, metadataHash string) (*entity.Entity, error) {
	if err := requireHash("metadata_hash", metadataHash); err != nil {
		return nil, err
	}

	var updated *entity.Entity
	err := m.mutate(ctx, caller, func(ctx context.Context, o *op) error {
		e, err := o.tx.GetEntity(ctx, shareID)
		if err != nil {
			return err
		}
		if !allows(caller, e.Registrar, false) {
			return deny(caller, "update metadata")
		}

		previous := e.MetadataHash
		e.MetadataHash = metadataHash
		e.Touch(o.now)
		if err := o.tx.UpdateEntity(ctx, e); err != nil {
			return err
		}

		updated = e
		return o.emit(ctx, event.MetadataUpdated, shareID, map[string]string{
			"share_id":      shareID,
			"previous_hash": previous,
			"metadata_hash": metadataHash,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetEntity returns the entity registered under shareID.
func (m *Marketplace) GetEntity(ctx context.Context, shareID string) (*entity.Entity, error) {
	return m.store.GetEntity(ctx, shareID)
}

// IsRegistered reports whether shareID exists and is active.
func (m *Marketplace) IsRegistered(ctx context.Context, shareID string) (bool, error) {
	e, err := m.store.GetEntity(ctx, shareID)
	if ok, err := found(err); !ok {
		return false, err
	}
	return e.IsActive, nil
}

// Exists reports whether shareID was ever registered, active or not.
func (m *Marketplace) Exists(ctx context.Context, shareID string) (bool, error) {
	_, err := m.store.GetEntity(ctx, shareID)
	return found(err)
}

// EntitiesByRegistrar returns the entities registered by registrar in
// registration order.
func (m *Marketplace) EntitiesByRegistrar(ctx context.Context, registrar string) ([]*entity.Entity, error) {
	return m.store.ListEntitiesByRegistrar(ctx, registrar)
}

// PlatformStats returns registry counts by kind.
func (m *Marketplace) PlatformStats(ctx context.Context) (entity.Stats, error) {
	return m.store.CountEntities(ctx)
}

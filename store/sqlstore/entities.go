package sqlstore

import (
	"context"

	"github.com/xraph/grove/driver"

	"github.com/xraph/marketplace"
	"github.com/xraph/marketplace/entity"
)

// row is satisfied by driver.Row and driver.Rows.
type row interface {
	Scan(dest ...any) error
}

// ==================== Entity Store ====================

const entityColumns = `share_id, seq, name, kind, registrar, metadata_hash, is_active, created_at, updated_at`

func scanEntity(r row) (*entity.Entity, error) {
	var (
		e                entity.Entity
		created, updated timestamp
	)
	if err := r.Scan(&e.ShareID, &e.Seq, &e.Name, &e.Kind, &e.Registrar, &e.MetadataHash, &e.IsActive, &created, &updated); err != nil {
		return nil, err
	}
	e.CreatedAt, e.UpdatedAt = created.Time, updated.Time
	return &e, nil
}

func (s *Store) CreateEntity(ctx context.Context, e *entity.Entity) error {
	_, err := s.exec(ctx, `INSERT INTO mp_entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ShareID, e.Seq, e.Name, e.Kind, e.Registrar, e.MetadataHash, e.IsActive,
		s.d.ts(e.CreatedAt), s.d.ts(e.UpdatedAt),
	)
	return s.conflict(err, marketplace.ErrEntityExists)
}

func (s *Store) GetEntity(ctx context.Context, shareID string) (*entity.Entity, error) {
	e, err := scanEntity(s.queryRow(ctx, `SELECT `+entityColumns+` FROM mp_entities WHERE share_id = ?`, shareID))
	if err != nil {
		return nil, noRows(err, marketplace.ErrEntityNotFound)
	}
	return e, nil
}

func (s *Store) UpdateEntity(ctx context.Context, e *entity.Entity) error {
	return s.execOne(ctx, marketplace.ErrEntityNotFound, `
UPDATE mp_entities SET name = ?, metadata_hash = ?, is_active = ?, updated_at = ?
WHERE share_id = ?`,
		e.Name, e.MetadataHash, e.IsActive, s.d.ts(e.UpdatedAt), e.ShareID,
	)
}

func (s *Store) ListEntitiesByRegistrar(ctx context.Context, registrar string) ([]*entity.Entity, error) {
	rows, err := s.query(ctx, `SELECT `+entityColumns+` FROM mp_entities WHERE registrar = ? ORDER BY seq`, registrar)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(r driver.Rows) (*entity.Entity, error) { return scanEntity(r) })
}

func (s *Store) CountEntities(ctx context.Context) (entity.Stats, error) {
	var stats entity.Stats
	err := s.queryRow(ctx, `
SELECT
    COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0)
FROM mp_entities`, entity.KindCompany, entity.KindVendor).Scan(&stats.Companies, &stats.Vendors)
	if err != nil {
		return stats, err
	}
	stats.Total = stats.Companies + stats.Vendors
	return stats, nil
}

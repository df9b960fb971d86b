package entity

import "context"

// Store persists registered entities.
type Store interface {
	CreateEntity(ctx context.Context, e *Entity) error
	GetEntity(ctx context.Context, shareID string) (*Entity, error)
	UpdateEntity(ctx context.Context, e *Entity) error
	ListEntitiesByRegistrar(ctx context.Context, registrar string) ([]*Entity, error)
	CountEntities(ctx context.Context) (Stats, error)
}

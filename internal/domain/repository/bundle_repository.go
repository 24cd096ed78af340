package repository

import (
	"context"

	"github.com/jhoicas/invorya-core/internal/domain/entity"
)

// BundleRepository persiste las recetas de kits.
type BundleRepository interface {
	ListComponents(ctx context.Context, tenantID, bundleProductID string) ([]*entity.BundleComponent, error)
	// AddComponent retorna domain.ErrDuplicate si el componente ya está en la receta.
	AddComponent(ctx context.Context, component *entity.BundleComponent) error
	RemoveComponent(ctx context.Context, tenantID, id string) (bool, error)
}

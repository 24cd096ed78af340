package repository

import (
	"context"

	"github.com/jhoicas/invorya-core/internal/domain/entity"
)

// StoreRepository puerto de lectura de tiendas/bodegas.
type StoreRepository interface {
	// GetByID devuelve nil, nil si la tienda no existe en el tenant.
	GetByID(ctx context.Context, tenantID, id string) (*entity.Store, error)
}

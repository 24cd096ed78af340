package repository

import (
	"context"

	"github.com/jhoicas/invorya-core/internal/domain/entity"
)

// StockMovementRepository es el puerto del ledger append-only. No existe Update ni Delete.
type StockMovementRepository interface {
	Create(ctx context.Context, movement *entity.StockMovement) error
	// ListByReference devuelve los movimientos producidos por una misma operación
	// (un conteo, un ensamble), en orden de creación.
	ListByReference(ctx context.Context, tenantID, referenceType, referenceID string) ([]*entity.StockMovement, error)
	ListByProduct(ctx context.Context, tenantID, storeID, productID string, limit, offset int) ([]*entity.StockMovement, error)
}

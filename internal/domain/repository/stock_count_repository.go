package repository

import (
	"context"
	"time"

	"github.com/jhoicas/invorya-core/internal/domain/entity"
)

// StockCountRepository persiste sesiones de conteo y sus líneas.
type StockCountRepository interface {
	Create(ctx context.Context, count *entity.StockCount) error
	// GetByID devuelve la sesión con sus líneas; nil, nil si no existe en el tenant.
	GetByID(ctx context.Context, tenantID, id string) (*entity.StockCount, error)
	// GetForUpdate igual que GetByID pero bloquea la sesión (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, tenantID, id string) (*entity.StockCount, error)
	GetLine(ctx context.Context, countID, productID, variantID string) (*entity.StockCountLine, error)
	UpsertLine(ctx context.Context, line *entity.StockCountLine) error
	MarkApplied(ctx context.Context, id, appliedBy string, at time.Time) error
}

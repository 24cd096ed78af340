package repository

import (
	"context"

	"github.com/jhoicas/invorya-core/internal/domain/entity"
)

// ProductRepository es el puerto de lectura del catálogo (el CRUD vive fuera del core).
type ProductRepository interface {
	// GetByID devuelve nil, nil si el producto no existe en el tenant.
	GetByID(ctx context.Context, tenantID, id string) (*entity.Product, error)
	GetVariant(ctx context.Context, productID, variantID string) (*entity.ProductVariant, error)
	// FindByCode busca por código de barras (variante y luego producto) y por SKU.
	// variant es nil cuando el código corresponde al producto base.
	FindByCode(ctx context.Context, tenantID, code string) (product *entity.Product, variant *entity.ProductVariant, err error)
	// SearchByName busca por nombre normalizado (minúsculas, sin tildes).
	SearchByName(ctx context.Context, tenantID, normalized string, limit int) ([]*entity.Product, error)
}

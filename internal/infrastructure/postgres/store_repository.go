package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
)

var _ repository.StoreRepository = (*StoreRepo)(nil)

// StoreRepo lectura de tiendas sobre PostgreSQL.
type StoreRepo struct {
	q Querier
}

// NewStoreRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStoreRepository(q Querier) *StoreRepo {
	return &StoreRepo{q: q}
}

// GetByID nil, nil si la tienda no existe en el tenant.
func (r *StoreRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.Store, error) {
	query := `
		SELECT id, tenant_id, name, allow_negative_stock, created_at, updated_at
		FROM stores WHERE tenant_id = $1 AND id = $2`
	var s entity.Store
	err := r.q.QueryRow(ctx, query, tenantID, id).Scan(&s.ID, &s.TenantID, &s.Name, &s.AllowNegativeStock, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get store: %w", err)
	}
	return &s, nil
}

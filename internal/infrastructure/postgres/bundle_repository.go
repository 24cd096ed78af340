package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
)

var _ repository.BundleRepository = (*BundleRepo)(nil)

// BundleRepo recetas de kits sobre PostgreSQL.
type BundleRepo struct {
	q Querier
}

// NewBundleRepository construye el adaptador. Pasar pool o tx (Querier).
func NewBundleRepository(q Querier) *BundleRepo {
	return &BundleRepo{q: q}
}

// ListComponents receta del kit ordenada por componente.
func (r *BundleRepo) ListComponents(ctx context.Context, tenantID, bundleProductID string) ([]*entity.BundleComponent, error) {
	query := `
		SELECT id, tenant_id, bundle_product_id, component_product_id, component_variant_id, quantity
		FROM bundle_components
		WHERE tenant_id = $1 AND bundle_product_id = $2
		ORDER BY component_product_id, component_variant_id`
	rows, err := r.q.Query(ctx, query, tenantID, bundleProductID)
	if err != nil {
		return nil, fmt.Errorf("list bundle components: %w", err)
	}
	defer rows.Close()
	var list []*entity.BundleComponent
	for rows.Next() {
		var c entity.BundleComponent
		if err := rows.Scan(&c.ID, &c.TenantID, &c.BundleProductID, &c.ComponentProductID, &c.ComponentVariantID, &c.Quantity); err != nil {
			return nil, fmt.Errorf("scan bundle component: %w", err)
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

// AddComponent retorna domain.ErrDuplicate si el componente ya está en la receta.
func (r *BundleRepo) AddComponent(ctx context.Context, c *entity.BundleComponent) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO bundle_components (id, tenant_id, bundle_product_id, component_product_id, component_variant_id, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query, c.ID, c.TenantID, c.BundleProductID, c.ComponentProductID, c.ComponentVariantID, c.Quantity)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("add bundle component: %w", err)
	}
	return nil
}

// RemoveComponent false si el componente no existe en el tenant.
func (r *BundleRepo) RemoveComponent(ctx context.Context, tenantID, id string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM bundle_components WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return false, fmt.Errorf("remove bundle component: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

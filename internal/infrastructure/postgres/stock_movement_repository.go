package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

// StockMovementRepo ledger append-only sobre PostgreSQL (usable con pool o tx).
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

const movementColumns = `id, tenant_id, store_id, product_id, variant_id, qty_delta, type,
	reference_type, reference_id, note, actor_id, created_at`

// Create inserta el movimiento. No existe Update ni Delete.
func (r *StockMovementRepo) Create(ctx context.Context, m *entity.StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `INSERT INTO stock_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.TenantID, m.StoreID, m.ProductID, m.VariantID, m.QtyDelta, m.Type,
		m.ReferenceType, m.ReferenceID, m.Note, m.ActorID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create stock movement: %w", err)
	}
	return nil
}

// ListByReference movimientos de una misma operación, en orden de creación.
func (r *StockMovementRepo) ListByReference(ctx context.Context, tenantID, referenceType, referenceID string) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + `
		FROM stock_movements
		WHERE tenant_id = $1 AND reference_type = $2 AND reference_id = $3
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, tenantID, referenceType, referenceID)
	if err != nil {
		return nil, fmt.Errorf("list movements by reference: %w", err)
	}
	return scanMovements(rows)
}

// ListByProduct historial de un producto en una tienda, del más reciente al más antiguo.
func (r *StockMovementRepo) ListByProduct(ctx context.Context, tenantID, storeID, productID string, limit, offset int) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + `
		FROM stock_movements
		WHERE tenant_id = $1 AND store_id = $2 AND product_id = $3
		ORDER BY created_at DESC, id
		LIMIT $4 OFFSET $5`
	rows, err := r.q.Query(ctx, query, tenantID, storeID, productID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list movements by product: %w", err)
	}
	return scanMovements(rows)
}

func scanMovements(rows pgx.Rows) ([]*entity.StockMovement, error) {
	defer rows.Close()
	var list []*entity.StockMovement
	for rows.Next() {
		var m entity.StockMovement
		if err := rows.Scan(&m.ID, &m.TenantID, &m.StoreID, &m.ProductID, &m.VariantID, &m.QtyDelta, &m.Type,
			&m.ReferenceType, &m.ReferenceID, &m.Note, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}

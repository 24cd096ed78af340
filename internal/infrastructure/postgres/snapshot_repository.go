package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ repository.SnapshotRepository = (*SnapshotRepo)(nil)

// SnapshotRepo existencias materializadas sobre PostgreSQL (usable con pool o tx).
type SnapshotRepo struct {
	q Querier
}

// NewSnapshotRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSnapshotRepository(q Querier) *SnapshotRepo {
	return &SnapshotRepo{q: q}
}

const snapshotColumns = `tenant_id, store_id, product_id, variant_key, on_hand, on_order, updated_at`

// Get devuelve el snapshot de la llave o uno en cero si todavía no hay fila.
func (r *SnapshotRepo) Get(ctx context.Context, key entity.SnapshotKey) (*entity.InventorySnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM inventory_snapshots
		WHERE tenant_id = $1 AND store_id = $2 AND product_id = $3 AND variant_key = $4`
	s, err := scanSnapshot(r.q.QueryRow(ctx, query, key.TenantID, key.StoreID, key.ProductID, key.VariantKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.InventorySnapshot{
				TenantID: key.TenantID, StoreID: key.StoreID, ProductID: key.ProductID, VariantKey: key.VariantKey,
				OnHand: decimal.Zero, OnOrder: decimal.Zero,
			}, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return s, nil
}

// ApplyDelta suma delta en la base de datos. El ON CONFLICT toma el lock de la fila, así que
// escrituras concurrentes sobre la misma llave se serializan sin read-modify-write en Go.
func (r *SnapshotRepo) ApplyDelta(ctx context.Context, key entity.SnapshotKey, delta decimal.Decimal, now time.Time) (*entity.InventorySnapshot, error) {
	query := `
		INSERT INTO inventory_snapshots (tenant_id, store_id, product_id, variant_key, on_hand, on_order, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
		ON CONFLICT (tenant_id, store_id, product_id, variant_key)
		DO UPDATE SET on_hand = inventory_snapshots.on_hand + EXCLUDED.on_hand, updated_at = EXCLUDED.updated_at
		RETURNING ` + snapshotColumns
	s, err := scanSnapshot(r.q.QueryRow(ctx, query, key.TenantID, key.StoreID, key.ProductID, key.VariantKey, delta, now))
	if err != nil {
		return nil, fmt.Errorf("apply snapshot delta: %w", err)
	}
	return s, nil
}

// AdjustOnOrder mismo upsert con delta pero sobre on_order.
func (r *SnapshotRepo) AdjustOnOrder(ctx context.Context, key entity.SnapshotKey, delta decimal.Decimal, now time.Time) (*entity.InventorySnapshot, error) {
	query := `
		INSERT INTO inventory_snapshots (tenant_id, store_id, product_id, variant_key, on_hand, on_order, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		ON CONFLICT (tenant_id, store_id, product_id, variant_key)
		DO UPDATE SET on_order = inventory_snapshots.on_order + EXCLUDED.on_order, updated_at = EXCLUDED.updated_at
		RETURNING ` + snapshotColumns
	s, err := scanSnapshot(r.q.QueryRow(ctx, query, key.TenantID, key.StoreID, key.ProductID, key.VariantKey, delta, now))
	if err != nil {
		return nil, fmt.Errorf("adjust on order: %w", err)
	}
	return s, nil
}

// ListByStore existencias de una tienda ordenadas por producto.
func (r *SnapshotRepo) ListByStore(ctx context.Context, tenantID, storeID string, limit, offset int) ([]*entity.InventorySnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM inventory_snapshots
		WHERE tenant_id = $1 AND store_id = $2
		ORDER BY product_id, variant_key
		LIMIT $3 OFFSET $4`
	rows, err := r.q.Query(ctx, query, tenantID, storeID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()
	var list []*entity.InventorySnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// ListBelowMinStock snapshots en o por debajo del mínimo del producto (solo productos con mínimo > 0).
func (r *SnapshotRepo) ListBelowMinStock(ctx context.Context, limit int) ([]repository.LowStockItem, error) {
	query := `
		SELECT s.tenant_id, s.store_id, s.product_id, s.variant_key, s.on_hand, s.on_order, s.updated_at, p.min_stock
		FROM inventory_snapshots s
		JOIN products p ON p.id = s.product_id AND p.tenant_id = s.tenant_id
		WHERE p.min_stock > 0 AND s.on_hand <= p.min_stock
		ORDER BY s.tenant_id, s.store_id, s.product_id, s.variant_key
		LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list below min stock: %w", err)
	}
	defer rows.Close()
	var list []repository.LowStockItem
	for rows.Next() {
		var it repository.LowStockItem
		s := &it.Snapshot
		if err := rows.Scan(&s.TenantID, &s.StoreID, &s.ProductID, &s.VariantKey, &s.OnHand, &s.OnOrder, &s.UpdatedAt, &it.MinStock); err != nil {
			return nil, fmt.Errorf("scan low stock: %w", err)
		}
		list = append(list, it)
	}
	return list, rows.Err()
}

// ListDrift llaves cuyo on_hand no coincide con la suma de sus movimientos.
func (r *SnapshotRepo) ListDrift(ctx context.Context, limit int) ([]repository.SnapshotDrift, error) {
	query := `
		SELECT s.tenant_id, s.store_id, s.product_id, s.variant_key, s.on_hand, COALESCE(m.total, 0)
		FROM inventory_snapshots s
		LEFT JOIN (
			SELECT tenant_id, store_id, product_id, variant_id, SUM(qty_delta) AS total
			FROM stock_movements
			GROUP BY tenant_id, store_id, product_id, variant_id
		) m ON m.tenant_id = s.tenant_id AND m.store_id = s.store_id
			AND m.product_id = s.product_id AND m.variant_id = s.variant_key
		WHERE s.on_hand <> COALESCE(m.total, 0)
		ORDER BY s.tenant_id, s.store_id, s.product_id, s.variant_key
		LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshot drift: %w", err)
	}
	defer rows.Close()
	var list []repository.SnapshotDrift
	for rows.Next() {
		var d repository.SnapshotDrift
		if err := rows.Scan(&d.Key.TenantID, &d.Key.StoreID, &d.Key.ProductID, &d.Key.VariantKey, &d.OnHand, &d.LedgerTotal); err != nil {
			return nil, fmt.Errorf("scan drift: %w", err)
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func scanSnapshot(row pgx.Row) (*entity.InventorySnapshot, error) {
	var s entity.InventorySnapshot
	if err := row.Scan(&s.TenantID, &s.StoreID, &s.ProductID, &s.VariantKey, &s.OnHand, &s.OnOrder, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

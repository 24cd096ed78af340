package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
)

var _ repository.StockCountRepository = (*StockCountRepo)(nil)

// StockCountRepo sesiones de conteo y sus líneas sobre PostgreSQL.
type StockCountRepo struct {
	q Querier
}

// NewStockCountRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockCountRepository(q Querier) *StockCountRepo {
	return &StockCountRepo{q: q}
}

// Create persiste la cabecera de la sesión.
func (r *StockCountRepo) Create(ctx context.Context, c *entity.StockCount) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO stock_counts (id, tenant_id, store_id, status, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query, c.ID, c.TenantID, c.StoreID, c.Status, c.Notes, c.CreatedBy, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create stock count: %w", err)
	}
	return nil
}

// GetByID devuelve la sesión con sus líneas; nil, nil si no existe en el tenant.
func (r *StockCountRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.StockCount, error) {
	return r.get(ctx, tenantID, id, false)
}

// GetForUpdate bloquea la cabecera hasta el fin de la transacción.
func (r *StockCountRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*entity.StockCount, error) {
	return r.get(ctx, tenantID, id, true)
}

func (r *StockCountRepo) get(ctx context.Context, tenantID, id string, forUpdate bool) (*entity.StockCount, error) {
	query := `
		SELECT id, tenant_id, store_id, status, notes, created_by, created_at, applied_at, applied_by
		FROM stock_counts WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var c entity.StockCount
	var appliedBy *string
	err := r.q.QueryRow(ctx, query, tenantID, id).Scan(
		&c.ID, &c.TenantID, &c.StoreID, &c.Status, &c.Notes, &c.CreatedBy, &c.CreatedAt, &c.AppliedAt, &appliedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock count: %w", err)
	}
	if appliedBy != nil {
		c.AppliedBy = *appliedBy
	}
	lines, err := r.lines(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Lines = lines
	return &c, nil
}

func (r *StockCountRepo) lines(ctx context.Context, countID string) ([]entity.StockCountLine, error) {
	query := `
		SELECT id, stock_count_id, product_id, variant_id, counted_qty, updated_at
		FROM stock_count_lines WHERE stock_count_id = $1
		ORDER BY product_id, variant_id`
	rows, err := r.q.Query(ctx, query, countID)
	if err != nil {
		return nil, fmt.Errorf("list stock count lines: %w", err)
	}
	defer rows.Close()
	var list []entity.StockCountLine
	for rows.Next() {
		var l entity.StockCountLine
		if err := rows.Scan(&l.ID, &l.StockCountID, &l.ProductID, &l.VariantID, &l.CountedQty, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock count line: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// GetLine nil, nil si el producto/variante todavía no se escaneó.
func (r *StockCountRepo) GetLine(ctx context.Context, countID, productID, variantID string) (*entity.StockCountLine, error) {
	query := `
		SELECT id, stock_count_id, product_id, variant_id, counted_qty, updated_at
		FROM stock_count_lines WHERE stock_count_id = $1 AND product_id = $2 AND variant_id = $3`
	var l entity.StockCountLine
	err := r.q.QueryRow(ctx, query, countID, productID, variantID).Scan(
		&l.ID, &l.StockCountID, &l.ProductID, &l.VariantID, &l.CountedQty, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock count line: %w", err)
	}
	return &l, nil
}

// UpsertLine inserta la línea o reemplaza la cantidad contada si ya existe.
func (r *StockCountRepo) UpsertLine(ctx context.Context, line *entity.StockCountLine) error {
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	query := `
		INSERT INTO stock_count_lines (id, stock_count_id, product_id, variant_id, counted_qty, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (stock_count_id, product_id, variant_id)
		DO UPDATE SET counted_qty = EXCLUDED.counted_qty, updated_at = EXCLUDED.updated_at
		RETURNING id`
	err := r.q.QueryRow(ctx, query, line.ID, line.StockCountID, line.ProductID, line.VariantID, line.CountedQty, line.UpdatedAt).Scan(&line.ID)
	if err != nil {
		return fmt.Errorf("upsert stock count line: %w", err)
	}
	return nil
}

// MarkApplied pasa la sesión a APPLIED.
func (r *StockCountRepo) MarkApplied(ctx context.Context, id, appliedBy string, at time.Time) error {
	query := `UPDATE stock_counts SET status = $2, applied_by = $3, applied_at = $4 WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, id, entity.StockCountApplied, appliedBy, at)
	if err != nil {
		return fmt.Errorf("mark stock count applied: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

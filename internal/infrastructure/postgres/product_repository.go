package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo lectura del catálogo sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

const productColumns = `p.id, p.tenant_id, p.sku, p.barcode, p.name, p.min_stock, p.is_bundle, p.created_at, p.updated_at`

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	if err := row.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Barcode, &p.Name, &p.MinStock, &p.IsBundle, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID nil, nil si el producto no existe en el tenant.
func (r *ProductRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.tenant_id = $1 AND p.id = $2`
	p, err := scanProduct(r.q.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetVariant nil, nil si la variante no pertenece al producto.
func (r *ProductRepo) GetVariant(ctx context.Context, productID, variantID string) (*entity.ProductVariant, error) {
	query := `SELECT id, product_id, sku, barcode, name FROM product_variants WHERE product_id = $1 AND id = $2`
	var v entity.ProductVariant
	err := r.q.QueryRow(ctx, query, productID, variantID).Scan(&v.ID, &v.ProductID, &v.SKU, &v.Barcode, &v.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return &v, nil
}

// FindByCode sigue el orden: barcode de variante, barcode de producto, SKU de variante, SKU de producto.
func (r *ProductRepo) FindByCode(ctx context.Context, tenantID, code string) (*entity.Product, *entity.ProductVariant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, nil
	}
	for _, field := range []string{"barcode", "sku"} {
		p, v, err := r.findVariantBy(ctx, tenantID, field, code)
		if err != nil || p != nil {
			return p, v, err
		}
		query := `SELECT ` + productColumns + ` FROM products p
			WHERE p.tenant_id = $1 AND p.` + field + ` = $2 AND p.` + field + ` <> ''
			ORDER BY p.id LIMIT 1`
		p, err = scanProduct(r.q.QueryRow(ctx, query, tenantID, code))
		if err == nil {
			return p, nil, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("find product by %s: %w", field, err)
		}
	}
	return nil, nil, nil
}

func (r *ProductRepo) findVariantBy(ctx context.Context, tenantID, field, code string) (*entity.Product, *entity.ProductVariant, error) {
	query := `SELECT ` + productColumns + `, v.id, v.product_id, v.sku, v.barcode, v.name
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE p.tenant_id = $1 AND v.` + field + ` = $2 AND v.` + field + ` <> ''
		ORDER BY v.id LIMIT 1`
	var p entity.Product
	var v entity.ProductVariant
	err := r.q.QueryRow(ctx, query, tenantID, code).Scan(
		&p.ID, &p.TenantID, &p.SKU, &p.Barcode, &p.Name, &p.MinStock, &p.IsBundle, &p.CreatedAt, &p.UpdatedAt,
		&v.ID, &v.ProductID, &v.SKU, &v.Barcode, &v.Name,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("find variant by %s: %w", field, err)
	}
	return &p, &v, nil
}

// SearchByName compara contra el nombre sin tildes y en minúsculas (extensión unaccent).
func (r *ProductRepo) SearchByName(ctx context.Context, tenantID, normalized string, limit int) ([]*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p
		WHERE p.tenant_id = $1
		  AND regexp_replace(lower(unaccent(p.name)), '\s+', ' ', 'g') LIKE $2
		ORDER BY p.id
		LIMIT $3`
	rows, err := r.q.Query(ctx, query, tenantID, likeContains(normalized), limit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto o SKU del catálogo de un tenant.
// Las existencias viven en InventorySnapshot (por tienda); aquí solo el catálogo.
type Product struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	SKU       string          `json:"sku"`     // código único por tenant
	Barcode   string          `json:"barcode"` // EAN/UPC, puede estar vacío
	Name      string          `json:"name"`
	MinStock  decimal.Decimal `json:"min_stock"` // 0 = sin alerta de stock bajo
	IsBundle  bool            `json:"is_bundle"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ProductVariant es una presentación de un producto (talla, color, empaque).
type ProductVariant struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Barcode   string `json:"barcode"`
	Name      string `json:"name"`
}

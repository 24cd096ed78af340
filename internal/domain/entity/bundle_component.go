package entity

import "github.com/shopspring/decimal"

// BundleComponent es una arista de la receta de un kit: cuántas unidades del componente
// consume cada unidad ensamblada del kit.
type BundleComponent struct {
	ID                 string          `json:"id"`
	TenantID           string          `json:"tenant_id"`
	BundleProductID    string          `json:"bundle_product_id"`
	ComponentProductID string          `json:"component_product_id"`
	ComponentVariantID string          `json:"component_variant_id,omitempty"`
	Quantity           decimal.Decimal `json:"quantity"`
}

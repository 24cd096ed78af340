package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotKey identifica una fila de InventorySnapshot.
// VariantKey es "" cuando el producto no maneja variantes.
type SnapshotKey struct {
	TenantID   string
	StoreID    string
	ProductID  string
	VariantKey string
}

// InventorySnapshot es el estado materializado de existencias por (tienda, producto, variante).
// Invariante: OnHand == suma de QtyDelta de todos los StockMovement de la misma llave.
// Solo se modifica dentro de la misma unidad atómica que inserta el movimiento.
type InventorySnapshot struct {
	TenantID   string          `json:"tenant_id"`
	StoreID    string          `json:"store_id"`
	ProductID  string          `json:"product_id"`
	VariantKey string          `json:"variant_id,omitempty"`
	OnHand     decimal.Decimal `json:"on_hand"`
	OnOrder    decimal.Decimal `json:"on_order"` // lo mantiene el módulo de órdenes de compra
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Key devuelve la llave del snapshot.
func (s *InventorySnapshot) Key() SnapshotKey {
	return SnapshotKey{TenantID: s.TenantID, StoreID: s.StoreID, ProductID: s.ProductID, VariantKey: s.VariantKey}
}

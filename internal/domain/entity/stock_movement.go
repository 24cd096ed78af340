package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento del ledger (value object conceptual).
const (
	MovementTypeReceive     = "RECEIVE"      // entrada por recepción
	MovementTypeSale        = "SALE"         // salida por venta
	MovementTypeAdjustment  = "ADJUSTMENT"   // ajuste (+/-)
	MovementTypeTransferIn  = "TRANSFER_IN"  // traslado, lado destino
	MovementTypeTransferOut = "TRANSFER_OUT" // traslado, lado origen
)

// Tipos de referencia: qué operación de nivel superior produjo el movimiento.
const (
	ReferenceManual         = "MANUAL"
	ReferenceStockCount     = "STOCK_COUNT"
	ReferenceBundleAssembly = "BUNDLE_ASSEMBLY"
	ReferencePurchaseOrder  = "PURCHASE_ORDER"
	ReferenceSale           = "SALE"
	ReferenceTransfer       = "TRANSFER"
)

// IsValidMovementType informa si t es uno de los tipos de movimiento soportados.
func IsValidMovementType(t string) bool {
	switch t {
	case MovementTypeReceive, MovementTypeSale, MovementTypeAdjustment,
		MovementTypeTransferIn, MovementTypeTransferOut:
		return true
	}
	return false
}

// StockMovement es una entrada inmutable del ledger de inventario.
// Nunca se actualiza ni se borra: las correcciones se hacen con movimientos compensatorios.
type StockMovement struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	StoreID       string          `json:"store_id"`
	ProductID     string          `json:"product_id"`
	VariantID     string          `json:"variant_id,omitempty"`
	QtyDelta      decimal.Decimal `json:"qty_delta"` // positivo entrada, negativo salida
	Type          string          `json:"type"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   string          `json:"reference_id"`
	Note          string          `json:"note,omitempty"`
	ActorID       string          `json:"actor_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Key devuelve la llave de snapshot a la que aplica el movimiento.
func (m *StockMovement) Key() SnapshotKey {
	return SnapshotKey{TenantID: m.TenantID, StoreID: m.StoreID, ProductID: m.ProductID, VariantKey: m.VariantID}
}

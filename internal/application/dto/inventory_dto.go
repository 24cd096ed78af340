package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordMovementRequest body para POST /api/inventory/movements.
type RecordMovementRequest struct {
	StoreID   string          `json:"store_id" validate:"required"`
	ProductID string          `json:"product_id" validate:"required"`
	VariantID string          `json:"variant_id,omitempty"`
	Type      string          `json:"type" validate:"required,oneof=RECEIVE SALE ADJUSTMENT"`
	QtyDelta  decimal.Decimal `json:"qty_delta"`
	Note      string          `json:"note,omitempty" validate:"max=500"`
}

// TransferRequest body para POST /api/inventory/transfers.
type TransferRequest struct {
	FromStoreID string          `json:"from_store_id" validate:"required"`
	ToStoreID   string          `json:"to_store_id" validate:"required,nefield=FromStoreID"`
	ProductID   string          `json:"product_id" validate:"required"`
	VariantID   string          `json:"variant_id,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Note        string          `json:"note,omitempty" validate:"max=500"`
}

// AdjustOnOrderRequest body para POST /api/inventory/on-order (módulo de compras).
type AdjustOnOrderRequest struct {
	StoreID   string          `json:"store_id" validate:"required"`
	ProductID string          `json:"product_id" validate:"required"`
	VariantID string          `json:"variant_id,omitempty"`
	Delta     decimal.Decimal `json:"delta"`
}

// CreateStockCountRequest body para POST /api/stock-counts.
type CreateStockCountRequest struct {
	StoreID string `json:"store_id" validate:"required"`
	Notes   string `json:"notes,omitempty" validate:"max=1000"`
}

// ScanLineRequest body para POST /api/stock-counts/:id/scan.
type ScanLineRequest struct {
	Code     string          `json:"code" validate:"required,max=200"`
	Quantity decimal.Decimal `json:"quantity"`
	Mode     string          `json:"mode,omitempty" validate:"omitempty,oneof=set add"`
}

// AssembleBundleRequest body para POST /api/bundles/:id/assemble.
type AssembleBundleRequest struct {
	StoreID  string          `json:"store_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

// AddBundleComponentRequest body para POST /api/bundles/:id/components.
type AddBundleComponentRequest struct {
	ComponentProductID string          `json:"component_product_id" validate:"required"`
	ComponentVariantID string          `json:"component_variant_id,omitempty"`
	Quantity           decimal.Decimal `json:"quantity"`
}

// RunJobRequest body opcional para POST /api/jobs/:name/run.
type RunJobRequest struct {
	Payload map[string]any `json:"payload,omitempty"`
}

// StockCountReport datos del reporte imprimible de un conteo.
type StockCountReport struct {
	CountID   string
	StoreName string
	Status    string
	Notes     string
	CreatedBy string
	CreatedAt time.Time
	AppliedAt *time.Time
	AppliedBy string
	Lines     []StockCountReportLine
}

// StockCountReportLine contado vs sistema de una línea. Adjustment es el movimiento
// registrado al aplicar (cero si el conteo sigue abierto o no hubo diferencia).
type StockCountReportLine struct {
	SKU        string
	Name       string
	Counted    decimal.Decimal
	System     decimal.Decimal
	Adjustment decimal.Decimal
}

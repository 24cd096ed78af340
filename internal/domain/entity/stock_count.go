package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una sesión de conteo. APPLIED es terminal.
const (
	StockCountOpen    = "OPEN"
	StockCountApplied = "APPLIED"
)

// Modos de escaneo de una línea de conteo.
const (
	ScanModeSet = "set" // reemplaza la cantidad contada
	ScanModeAdd = "add" // suma a la cantidad contada
)

// StockCount es una sesión de conteo físico en una tienda.
type StockCount struct {
	ID        string           `json:"id"`
	TenantID  string           `json:"tenant_id"`
	StoreID   string           `json:"store_id"`
	Status    string           `json:"status"`
	Notes     string           `json:"notes,omitempty"`
	CreatedBy string           `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
	AppliedAt *time.Time       `json:"applied_at,omitempty"`
	AppliedBy string           `json:"applied_by,omitempty"`
	Lines     []StockCountLine `json:"lines,omitempty"`
}

// IsOpen informa si todavía se pueden agregar o modificar líneas.
func (c *StockCount) IsOpen() bool {
	return c.Status == StockCountOpen
}

// StockCountLine es la cantidad contada de un producto/variante dentro de una sesión.
type StockCountLine struct {
	ID           string          `json:"id"`
	StockCountID string          `json:"stock_count_id"`
	ProductID    string          `json:"product_id"`
	VariantID    string          `json:"variant_id,omitempty"`
	CountedQty   decimal.Decimal `json:"counted_qty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

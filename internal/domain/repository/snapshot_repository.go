package repository

import (
	"context"
	"time"

	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// LowStockItem fila cruda de un snapshot por debajo del mínimo del producto.
type LowStockItem struct {
	Snapshot entity.InventorySnapshot
	MinStock decimal.Decimal
}

// SnapshotDrift fila cruda de una llave cuyo OnHand no coincide con la suma del ledger.
type SnapshotDrift struct {
	Key         entity.SnapshotKey
	OnHand      decimal.Decimal
	LedgerTotal decimal.Decimal
}

// SnapshotRepository mantiene InventorySnapshot. Solo el ledger llama ApplyDelta.
type SnapshotRepository interface {
	// Get devuelve el snapshot de la llave; si no existe devuelve uno en cero (sin error).
	Get(ctx context.Context, key entity.SnapshotKey) (*entity.InventorySnapshot, error)
	// ApplyDelta suma delta a OnHand en el almacenamiento (upsert con delta, crea la fila en cero).
	ApplyDelta(ctx context.Context, key entity.SnapshotKey, delta decimal.Decimal, now time.Time) (*entity.InventorySnapshot, error)
	// AdjustOnOrder lo usa el módulo de compras; nunca toca OnHand.
	AdjustOnOrder(ctx context.Context, key entity.SnapshotKey, delta decimal.Decimal, now time.Time) (*entity.InventorySnapshot, error)
	ListByStore(ctx context.Context, tenantID, storeID string, limit, offset int) ([]*entity.InventorySnapshot, error)
	ListBelowMinStock(ctx context.Context, limit int) ([]LowStockItem, error)
	ListDrift(ctx context.Context, limit int) ([]SnapshotDrift, error)
}

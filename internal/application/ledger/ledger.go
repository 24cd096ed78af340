// Package ledger es el único escritor de StockMovement e InventorySnapshot.OnHand.
//
// ApplyStockMovement corre dentro de la unidad atómica del llamador; no verifica
// existencias negativas (lo hacen los consumidores según Store.AllowNegativeStock)
// y no publica eventos (lo hacen los consumidores después del commit).
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// MovementInput entrada para registrar un movimiento.
type MovementInput struct {
	TenantID      string
	StoreID       string
	ProductID     string
	VariantID     string // "" si el producto no maneja variantes
	QtyDelta      decimal.Decimal
	Type          string
	ReferenceType string
	ReferenceID   string
	Note          string
	ActorID       string
}

// Service agrupa la escritura (dentro de la unidad del llamador) y las lecturas del ledger.
type Service struct {
	tx  repository.TxRunner
	now func() time.Time
}

// NewService construye el servicio. tx se usa solo para lecturas y AdjustOnOrder.
func NewService(tx repository.TxRunner) *Service {
	return &Service{tx: tx, now: time.Now}
}

// ApplyStockMovement agrega un movimiento y suma su delta al snapshot de la misma llave.
// El snapshot se actualiza con un upsert-con-delta en el almacenamiento, nunca leyendo y
// escribiendo desde memoria, de modo que escrituras concurrentes sobre la misma llave se serializan.
func (s *Service) ApplyStockMovement(ctx context.Context, repos repository.Repositories, in MovementInput) (*entity.StockMovement, *entity.InventorySnapshot, error) {
	if err := validate(in); err != nil {
		return nil, nil, err
	}
	now := s.now().UTC()
	refType := in.ReferenceType
	if refType == "" {
		refType = entity.ReferenceManual
	}
	mov := &entity.StockMovement{
		ID:            uuid.New().String(),
		TenantID:      in.TenantID,
		StoreID:       in.StoreID,
		ProductID:     in.ProductID,
		VariantID:     in.VariantID,
		QtyDelta:      in.QtyDelta,
		Type:          in.Type,
		ReferenceType: refType,
		ReferenceID:   in.ReferenceID,
		Note:          in.Note,
		ActorID:       in.ActorID,
		CreatedAt:     now,
	}
	if mov.ReferenceID == "" {
		mov.ReferenceID = mov.ID
	}
	if err := repos.Movements.Create(ctx, mov); err != nil {
		return nil, nil, fmt.Errorf("ledger: insertar movimiento: %w", err)
	}
	snap, err := repos.Snapshots.ApplyDelta(ctx, mov.Key(), mov.QtyDelta, now)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: actualizar snapshot: %w", err)
	}
	return mov, snap, nil
}

func validate(in MovementInput) error {
	if strings.TrimSpace(in.TenantID) == "" || strings.TrimSpace(in.StoreID) == "" || strings.TrimSpace(in.ProductID) == "" {
		return fmt.Errorf("%w: tenant, tienda y producto son obligatorios", domain.ErrInvalidInput)
	}
	if !entity.IsValidMovementType(in.Type) {
		return fmt.Errorf("%w: tipo de movimiento %q", domain.ErrInvalidInput, in.Type)
	}
	if in.QtyDelta.IsZero() {
		return fmt.Errorf("%w: la cantidad no puede ser cero", domain.ErrInvalidInput)
	}
	return nil
}

// GetSnapshot devuelve las existencias de la llave (en cero si nunca hubo movimientos).
func (s *Service) GetSnapshot(ctx context.Context, key entity.SnapshotKey) (*entity.InventorySnapshot, error) {
	var out *entity.InventorySnapshot
	err := s.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		out, err = repos.Snapshots.Get(ctx, key)
		return err
	})
	return out, err
}

// ListSnapshots lista las existencias de una tienda.
func (s *Service) ListSnapshots(ctx context.Context, tenantID, storeID string, limit, offset int) ([]*entity.InventorySnapshot, error) {
	var out []*entity.InventorySnapshot
	err := s.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		out, err = repos.Snapshots.ListByStore(ctx, tenantID, storeID, limit, offset)
		return err
	})
	return out, err
}

// ListMovementsByReference movimientos producidos por una operación (conteo, ensamble).
func (s *Service) ListMovementsByReference(ctx context.Context, tenantID, referenceType, referenceID string) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := s.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		out, err = repos.Movements.ListByReference(ctx, tenantID, referenceType, referenceID)
		return err
	})
	return out, err
}

// ListMovementsByProduct historial de un producto en una tienda, más reciente primero.
func (s *Service) ListMovementsByProduct(ctx context.Context, tenantID, storeID, productID string, limit, offset int) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := s.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		out, err = repos.Movements.ListByProduct(ctx, tenantID, storeID, productID, limit, offset)
		return err
	})
	return out, err
}

// AdjustOnOrder lo invoca el módulo de órdenes de compra. No toca OnHand ni el ledger.
func (s *Service) AdjustOnOrder(ctx context.Context, key entity.SnapshotKey, delta decimal.Decimal) (*entity.InventorySnapshot, error) {
	if key.TenantID == "" || key.StoreID == "" || key.ProductID == "" {
		return nil, domain.ErrInvalidInput
	}
	var out *entity.InventorySnapshot
	err := s.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		out, err = repos.Snapshots.AdjustOnOrder(ctx, key, delta, s.now().UTC())
		return err
	})
	return out, err
}

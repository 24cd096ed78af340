package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-core/internal/application/idempotency"
	"github.com/jhoicas/invorya-core/internal/application/ledger"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/event"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// Rutas usadas como parte del scope de idempotencia.
const (
	RouteRecordMovement = "POST /inventory/movements"
	RouteTransfer       = "POST /inventory/transfers"
)

// MovementUseCase registra movimientos manuales y traslados entre tiendas.
// Cada operación corre en una transacción y, si trae clave, dentro del motor de idempotencia.
type MovementUseCase struct {
	tx     repository.TxRunner
	ledger *ledger.Service
	idem   *idempotency.Engine
	pub    Publisher
}

// NewMovementUseCase construye el caso de uso.
func NewMovementUseCase(tx repository.TxRunner, l *ledger.Service, idem *idempotency.Engine, pub Publisher) *MovementUseCase {
	return &MovementUseCase{tx: tx, ledger: l, idem: idem, pub: pub}
}

// RecordMovementInput entrada de un movimiento manual.
// RECEIVE exige delta positivo, SALE negativo y ADJUSTMENT cualquiera distinto de cero.
type RecordMovementInput struct {
	TenantID       string
	StoreID        string
	ProductID      string
	VariantID      string
	QtyDelta       decimal.Decimal
	Type           string
	Note           string
	ActorID        string
	IdempotencyKey string // opcional
	Caller         string
}

// MovementResult movimiento registrado y existencias resultantes.
type MovementResult struct {
	Movement *entity.StockMovement     `json:"movement"`
	Snapshot *entity.InventorySnapshot `json:"snapshot"`
}

// RecordMovement valida, aplica el movimiento en el ledger y publica InventoryUpdated tras el commit.
func (uc *MovementUseCase) RecordMovement(ctx context.Context, in RecordMovementInput) (*MovementResult, bool, error) {
	switch in.Type {
	case entity.MovementTypeReceive:
		if !in.QtyDelta.IsPositive() {
			return nil, false, fmt.Errorf("%w: RECEIVE requiere cantidad positiva", domain.ErrInvalidInput)
		}
	case entity.MovementTypeSale:
		if !in.QtyDelta.IsNegative() {
			return nil, false, fmt.Errorf("%w: SALE requiere cantidad negativa", domain.ErrInvalidInput)
		}
	case entity.MovementTypeAdjustment:
		if in.QtyDelta.IsZero() {
			return nil, false, fmt.Errorf("%w: el ajuste no puede ser cero", domain.ErrInvalidInput)
		}
	default:
		return nil, false, fmt.Errorf("%w: use transferencias para %s", domain.ErrInvalidInput, in.Type)
	}

	var (
		out      *MovementResult
		replayed bool
	)
	scope := entity.IdempotencyScope{Key: in.IdempotencyKey, Route: RouteRecordMovement, Caller: in.Caller}
	err := uc.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		out, replayed, err = runOnce(ctx, uc.idem, repos, scope, func(ctx context.Context) (*MovementResult, error) {
			store, err := requireStore(ctx, repos, in.TenantID, in.StoreID)
			if err != nil {
				return nil, err
			}
			if err := requireProduct(ctx, repos, in.TenantID, in.ProductID, in.VariantID); err != nil {
				return nil, err
			}
			mov, snap, err := uc.ledger.ApplyStockMovement(ctx, repos, ledger.MovementInput{
				TenantID:      in.TenantID,
				StoreID:       in.StoreID,
				ProductID:     in.ProductID,
				VariantID:     in.VariantID,
				QtyDelta:      in.QtyDelta,
				Type:          in.Type,
				ReferenceType: referenceFor(in.Type),
				Note:          in.Note,
				ActorID:       in.ActorID,
			})
			if err != nil {
				return nil, err
			}
			if err := ensureAvailable(store, snap, in.QtyDelta.Neg()); err != nil {
				return nil, err
			}
			return &MovementResult{Movement: mov, Snapshot: snap}, nil
		})
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		uc.publishUpdated(ctx, out.Movement.Key())
	}
	return out, replayed, nil
}

func referenceFor(movementType string) string {
	if movementType == entity.MovementTypeSale {
		return entity.ReferenceSale
	}
	return entity.ReferenceManual
}

// TransferInput entrada de un traslado entre tiendas del mismo tenant.
type TransferInput struct {
	TenantID       string
	FromStoreID    string
	ToStoreID      string
	ProductID      string
	VariantID      string
	Quantity       decimal.Decimal
	Note           string
	ActorID        string
	IdempotencyKey string
	Caller         string
}

// TransferResult los dos movimientos comparten ReferenceID = TransferID.
type TransferResult struct {
	TransferID string          `json:"transfer_id"`
	Out        *MovementResult `json:"out"`
	In         *MovementResult `json:"in"`
}

// Transfer registra TRANSFER_OUT en origen y TRANSFER_IN en destino en una sola transacción.
func (uc *MovementUseCase) Transfer(ctx context.Context, in TransferInput) (*TransferResult, bool, error) {
	if !in.Quantity.IsPositive() {
		return nil, false, fmt.Errorf("%w: la cantidad a trasladar debe ser positiva", domain.ErrInvalidInput)
	}
	if in.FromStoreID == "" || in.FromStoreID == in.ToStoreID {
		return nil, false, fmt.Errorf("%w: origen y destino deben ser tiendas distintas", domain.ErrInvalidInput)
	}

	var (
		out      *TransferResult
		replayed bool
	)
	scope := entity.IdempotencyScope{Key: in.IdempotencyKey, Route: RouteTransfer, Caller: in.Caller}
	err := uc.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		out, replayed, err = runOnce(ctx, uc.idem, repos, scope, func(ctx context.Context) (*TransferResult, error) {
			from, err := requireStore(ctx, repos, in.TenantID, in.FromStoreID)
			if err != nil {
				return nil, err
			}
			if _, err := requireStore(ctx, repos, in.TenantID, in.ToStoreID); err != nil {
				return nil, err
			}
			if err := requireProduct(ctx, repos, in.TenantID, in.ProductID, in.VariantID); err != nil {
				return nil, err
			}
			res := &TransferResult{TransferID: uuid.New().String()}
			legs := []struct {
				store string
				delta decimal.Decimal
				typ   string
				dst   **MovementResult
			}{
				{in.FromStoreID, in.Quantity.Neg(), entity.MovementTypeTransferOut, &res.Out},
				{in.ToStoreID, in.Quantity, entity.MovementTypeTransferIn, &res.In},
			}
			for _, leg := range legs {
				mov, snap, err := uc.ledger.ApplyStockMovement(ctx, repos, ledger.MovementInput{
					TenantID:      in.TenantID,
					StoreID:       leg.store,
					ProductID:     in.ProductID,
					VariantID:     in.VariantID,
					QtyDelta:      leg.delta,
					Type:          leg.typ,
					ReferenceType: entity.ReferenceTransfer,
					ReferenceID:   res.TransferID,
					Note:          in.Note,
					ActorID:       in.ActorID,
				})
				if err != nil {
					return nil, err
				}
				if leg.typ == entity.MovementTypeTransferOut {
					if err := ensureAvailable(from, snap, in.Quantity); err != nil {
						return nil, err
					}
				}
				*leg.dst = &MovementResult{Movement: mov, Snapshot: snap}
			}
			return res, nil
		})
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		uc.publishUpdated(ctx, out.Out.Movement.Key(), out.In.Movement.Key())
	}
	return out, replayed, nil
}

func (uc *MovementUseCase) publishUpdated(ctx context.Context, keys ...entity.SnapshotKey) {
	publishUpdated(ctx, uc.pub, keys...)
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers compartidos por los casos de uso del paquete

// runOnce usa el motor de idempotencia cuando la operación trae clave; sin clave ejecuta fn directo.
func runOnce[T any](ctx context.Context, engine *idempotency.Engine, repos repository.Repositories, scope entity.IdempotencyScope, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	if scope.Key == "" {
		v, err := fn(ctx)
		return v, false, err
	}
	return idempotency.Do(ctx, engine, repos.Idempotency, scope, fn)
}

func requireStore(ctx context.Context, repos repository.Repositories, tenantID, storeID string) (*entity.Store, error) {
	if storeID == "" {
		return nil, fmt.Errorf("%w: tienda obligatoria", domain.ErrInvalidInput)
	}
	store, err := repos.Stores.GetByID(ctx, tenantID, storeID)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: tienda %s", domain.ErrNotFound, storeID)
	}
	return store, nil
}

func requireProduct(ctx context.Context, repos repository.Repositories, tenantID, productID, variantID string) error {
	if productID == "" {
		return fmt.Errorf("%w: producto obligatorio", domain.ErrInvalidInput)
	}
	p, err := repos.Products.GetByID(ctx, tenantID, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: producto %s", domain.ErrNotFound, productID)
	}
	if variantID == "" {
		return nil
	}
	v, err := repos.Products.GetVariant(ctx, productID, variantID)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%w: variante %s", domain.ErrNotFound, variantID)
	}
	return nil
}

// ensureAvailable revisa el snapshot que devolvió ApplyDelta, con la fila ya bloqueada.
// Si la tienda no permite negativos y el saldo quedó bajo cero, el error aborta la unidad.
func ensureAvailable(store *entity.Store, after *entity.InventorySnapshot, need decimal.Decimal) error {
	if store.AllowNegativeStock || !need.IsPositive() || !after.OnHand.IsNegative() {
		return nil
	}
	return fmt.Errorf("%w: producto %s disponible %s, requerido %s",
		domain.ErrInsufficientStock, after.ProductID, after.OnHand.Add(need), need)
}

func publishUpdated(ctx context.Context, pub Publisher, keys ...entity.SnapshotKey) {
	if pub == nil {
		return
	}
	seen := make(map[entity.SnapshotKey]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		pub.Publish(ctx, event.InventoryUpdated{TenantID: k.TenantID, StoreID: k.StoreID, ProductID: k.ProductID, VariantID: k.VariantKey})
	}
}

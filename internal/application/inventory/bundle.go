package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-core/internal/application/idempotency"
	"github.com/jhoicas/invorya-core/internal/application/ledger"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// BundleUseCase recetas de kits y ensamble de kits a partir de sus componentes.
type BundleUseCase struct {
	tx     repository.TxRunner
	ledger *ledger.Service
	idem   *idempotency.Engine
	pub    Publisher
}

// NewBundleUseCase construye el caso de uso.
func NewBundleUseCase(tx repository.TxRunner, l *ledger.Service, idem *idempotency.Engine, pub Publisher) *BundleUseCase {
	return &BundleUseCase{tx: tx, ledger: l, idem: idem, pub: pub}
}

// AssembleInput entrada de Assemble. IdempotencyKey es obligatoria.
type AssembleInput struct {
	TenantID        string
	StoreID         string
	BundleProductID string
	Quantity        decimal.Decimal
	IdempotencyKey  string
	Caller          string
	ActorID         string
}

// AssembleResult respuesta cacheada de Assemble. Todos los movimientos comparten
// ReferenceType BUNDLE_ASSEMBLY y ReferenceID = AssemblyID.
type AssembleResult struct {
	AssemblyID      string                  `json:"assembly_id"`
	StoreID         string                  `json:"store_id"`
	BundleProductID string                  `json:"bundle_product_id"`
	Quantity        decimal.Decimal         `json:"quantity"`
	Movements       []*entity.StockMovement `json:"movements"`
}

// AssembleRoute ruta de idempotencia del ensamble de un kit en una tienda.
func AssembleRoute(storeID, bundleProductID string) string {
	return "POST /bundles/" + bundleProductID + "/assemble?store_id=" + storeID
}

// Assemble descuenta Quantity*componente.Quantity de cada componente y acredita Quantity
// unidades del kit en una sola transacción. Si la tienda no permite negativos y algún
// componente no alcanza, no se registra nada.
func (uc *BundleUseCase) Assemble(ctx context.Context, in AssembleInput) (*AssembleResult, bool, error) {
	if !in.Quantity.IsPositive() {
		return nil, false, fmt.Errorf("%w: la cantidad a ensamblar debe ser positiva", domain.ErrInvalidInput)
	}
	var (
		out      *AssembleResult
		replayed bool
	)
	scope := entity.IdempotencyScope{Key: in.IdempotencyKey, Route: AssembleRoute(in.StoreID, in.BundleProductID), Caller: in.Caller}
	err := uc.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		out, replayed, err = idempotency.Do(ctx, uc.idem, repos.Idempotency, scope, func(ctx context.Context) (*AssembleResult, error) {
			return uc.assemble(ctx, repos, in)
		})
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		keys := make([]entity.SnapshotKey, 0, len(out.Movements))
		for _, m := range out.Movements {
			keys = append(keys, m.Key())
		}
		publishUpdated(ctx, uc.pub, keys...)
	}
	return out, replayed, nil
}

func (uc *BundleUseCase) assemble(ctx context.Context, repos repository.Repositories, in AssembleInput) (*AssembleResult, error) {
	store, err := requireStore(ctx, repos, in.TenantID, in.StoreID)
	if err != nil {
		return nil, err
	}
	if err := requireProduct(ctx, repos, in.TenantID, in.BundleProductID, ""); err != nil {
		return nil, err
	}
	components, err := repos.Bundles.ListComponents(ctx, in.TenantID, in.BundleProductID)
	if err != nil {
		return nil, err
	}
	if len(components) == 0 {
		return nil, domain.ErrBundleEmpty
	}

	res := &AssembleResult{
		AssemblyID:      uuid.New().String(),
		StoreID:         in.StoreID,
		BundleProductID: in.BundleProductID,
		Quantity:        in.Quantity,
	}
	move := func(productID, variantID, movementType string, delta decimal.Decimal) (*entity.InventorySnapshot, error) {
		mov, snap, err := uc.ledger.ApplyStockMovement(ctx, repos, ledger.MovementInput{
			TenantID:      in.TenantID,
			StoreID:       in.StoreID,
			ProductID:     productID,
			VariantID:     variantID,
			QtyDelta:      delta,
			Type:          movementType,
			ReferenceType: entity.ReferenceBundleAssembly,
			ReferenceID:   res.AssemblyID,
			ActorID:       in.ActorID,
		})
		if err != nil {
			return nil, err
		}
		res.Movements = append(res.Movements, mov)
		return snap, nil
	}

	for _, c := range components {
		need := c.Quantity.Mul(in.Quantity)
		snap, err := move(c.ComponentProductID, c.ComponentVariantID, entity.MovementTypeAdjustment, need.Neg())
		if err != nil {
			return nil, err
		}
		if err := ensureAvailable(store, snap, need); err != nil {
			return nil, err
		}
	}
	if _, err := move(in.BundleProductID, "", entity.MovementTypeReceive, in.Quantity); err != nil {
		return nil, err
	}
	return res, nil
}

// AddComponentInput entrada de AddComponent.
type AddComponentInput struct {
	TenantID           string
	BundleProductID    string
	ComponentProductID string
	ComponentVariantID string
	Quantity           decimal.Decimal
}

// AddComponent agrega un componente a la receta del kit.
func (uc *BundleUseCase) AddComponent(ctx context.Context, in AddComponentInput) (*entity.BundleComponent, error) {
	if in.BundleProductID == in.ComponentProductID {
		return nil, domain.ErrBundleSelfReference
	}
	if !in.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: la cantidad del componente debe ser positiva", domain.ErrInvalidInput)
	}
	component := &entity.BundleComponent{
		ID:                 uuid.New().String(),
		TenantID:           in.TenantID,
		BundleProductID:    in.BundleProductID,
		ComponentProductID: in.ComponentProductID,
		ComponentVariantID: in.ComponentVariantID,
		Quantity:           in.Quantity,
	}
	err := uc.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := requireProduct(ctx, repos, in.TenantID, in.BundleProductID, ""); err != nil {
			return err
		}
		if err := requireProduct(ctx, repos, in.TenantID, in.ComponentProductID, in.ComponentVariantID); err != nil {
			return err
		}
		return repos.Bundles.AddComponent(ctx, component)
	})
	if err != nil {
		return nil, err
	}
	return component, nil
}

// RemoveComponent quita un componente de la receta.
func (uc *BundleUseCase) RemoveComponent(ctx context.Context, tenantID, componentID string) error {
	return uc.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		removed, err := repos.Bundles.RemoveComponent(ctx, tenantID, componentID)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%w: componente %s", domain.ErrNotFound, componentID)
		}
		return nil
	})
}

// ListComponents receta del kit.
func (uc *BundleUseCase) ListComponents(ctx context.Context, tenantID, bundleProductID string) ([]*entity.BundleComponent, error) {
	var out []*entity.BundleComponent
	err := uc.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		out, err = repos.Bundles.ListComponents(ctx, tenantID, bundleProductID)
		return err
	})
	return out, err
}

package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-core/internal/application/dto"
	"github.com/jhoicas/invorya-core/internal/application/idempotency"
	"github.com/jhoicas/invorya-core/internal/application/ledger"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
	"github.com/jhoicas/invorya-core/pkg/textnorm"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// StockCountUseCase sesiones de conteo físico: crear, escanear, aplicar y reportar.
type StockCountUseCase struct {
	tx       repository.TxRunner
	ledger   *ledger.Service
	idem     *idempotency.Engine
	pub      Publisher
	renderer StockCountReportRenderer
	now      func() time.Time
}

// NewStockCountUseCase construye el caso de uso. renderer puede ser nil si no se exponen reportes.
func NewStockCountUseCase(tx repository.TxRunner, l *ledger.Service, idem *idempotency.Engine, pub Publisher, renderer StockCountReportRenderer) *StockCountUseCase {
	return &StockCountUseCase{tx: tx, ledger: l, idem: idem, pub: pub, renderer: renderer, now: time.Now}
}

// CreateStockCountInput entrada para abrir una sesión.
type CreateStockCountInput struct {
	TenantID string
	StoreID  string
	Notes    string
	ActorID  string
}

// Create abre una sesión OPEN en la tienda.
func (uc *StockCountUseCase) Create(ctx context.Context, in CreateStockCountInput) (*entity.StockCount, error) {
	count := &entity.StockCount{
		ID:        uuid.New().String(),
		TenantID:  in.TenantID,
		StoreID:   in.StoreID,
		Status:    entity.StockCountOpen,
		Notes:     in.Notes,
		CreatedBy: in.ActorID,
		CreatedAt: uc.now().UTC(),
	}
	err := uc.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := requireStore(ctx, repos, in.TenantID, in.StoreID); err != nil {
			return err
		}
		return repos.StockCounts.Create(ctx, count)
	})
	if err != nil {
		return nil, err
	}
	return count, nil
}

// Get devuelve la sesión con sus líneas.
func (uc *StockCountUseCase) Get(ctx context.Context, tenantID, id string) (*entity.StockCount, error) {
	var count *entity.StockCount
	err := uc.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		count, err = loadCount(ctx, repos, tenantID, id, false)
		return err
	})
	return count, err
}

func loadCount(ctx context.Context, repos repository.Repositories, tenantID, id string, forUpdate bool) (*entity.StockCount, error) {
	var (
		count *entity.StockCount
		err   error
	)
	if forUpdate {
		count, err = repos.StockCounts.GetForUpdate(ctx, tenantID, id)
	} else {
		count, err = repos.StockCounts.GetByID(ctx, tenantID, id)
	}
	if err != nil {
		return nil, err
	}
	if count == nil {
		return nil, fmt.Errorf("%w: conteo %s", domain.ErrNotFound, id)
	}
	return count, nil
}

// ScanInput entrada de un escaneo. Mode vacío equivale a "set".
type ScanInput struct {
	TenantID string
	CountID  string
	Code     string
	Quantity decimal.Decimal
	Mode     string
}

// ScanLine resuelve el código a producto/variante y fija o suma la cantidad contada.
// La resolución prueba código de barras, luego SKU y por último el nombre normalizado,
// que debe coincidir con un único producto.
func (uc *StockCountUseCase) ScanLine(ctx context.Context, in ScanInput) (*entity.StockCountLine, error) {
	mode := in.Mode
	if mode == "" {
		mode = entity.ScanModeSet
	}
	if mode != entity.ScanModeSet && mode != entity.ScanModeAdd {
		return nil, fmt.Errorf("%w: modo de escaneo %q", domain.ErrInvalidInput, in.Mode)
	}
	if mode == entity.ScanModeSet && in.Quantity.IsNegative() {
		return nil, fmt.Errorf("%w: la cantidad contada no puede ser negativa", domain.ErrInvalidInput)
	}

	var line *entity.StockCountLine
	err := uc.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		count, err := loadCount(ctx, repos, in.TenantID, in.CountID, true)
		if err != nil {
			return err
		}
		if !count.IsOpen() {
			return domain.ErrStockCountApplied
		}
		product, variant, err := resolveCode(ctx, repos, in.TenantID, in.Code)
		if err != nil {
			return err
		}
		variantID := ""
		if variant != nil {
			variantID = variant.ID
		}
		existing, err := repos.StockCounts.GetLine(ctx, count.ID, product.ID, variantID)
		if err != nil {
			return err
		}
		counted := in.Quantity
		if existing != nil && mode == entity.ScanModeAdd {
			counted = existing.CountedQty.Add(in.Quantity)
		}
		if counted.IsNegative() {
			return fmt.Errorf("%w: la cantidad contada quedaría negativa", domain.ErrInvalidInput)
		}
		line = &entity.StockCountLine{
			StockCountID: count.ID,
			ProductID:    product.ID,
			VariantID:    variantID,
			CountedQty:   counted,
			UpdatedAt:    uc.now().UTC(),
		}
		if existing != nil {
			line.ID = existing.ID
		}
		return repos.StockCounts.UpsertLine(ctx, line)
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

func resolveCode(ctx context.Context, repos repository.Repositories, tenantID, code string) (*entity.Product, *entity.ProductVariant, error) {
	if code == "" {
		return nil, nil, fmt.Errorf("%w: código vacío", domain.ErrInvalidInput)
	}
	product, variant, err := repos.Products.FindByCode(ctx, tenantID, code)
	if err != nil {
		return nil, nil, err
	}
	if product != nil {
		return product, variant, nil
	}
	query := textnorm.Fold(code)
	if query == "" {
		return nil, nil, fmt.Errorf("%w: código %q", domain.ErrNotFound, code)
	}
	matches, err := repos.Products.SearchByName(ctx, tenantID, query, 2)
	if err != nil {
		return nil, nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil, fmt.Errorf("%w: código %q", domain.ErrNotFound, code)
	case 1:
		return matches[0], nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrAmbiguousScan, code)
	}
}

// ApplyInput entrada de Apply. IdempotencyKey es obligatoria.
type ApplyInput struct {
	TenantID       string
	CountID        string
	IdempotencyKey string
	Caller         string
	ActorID        string
}

// CountAdjustment ajuste generado por una línea con diferencia.
type CountAdjustment struct {
	ProductID  string          `json:"product_id"`
	VariantID  string          `json:"variant_id,omitempty"`
	Previous   decimal.Decimal `json:"previous"`
	Counted    decimal.Decimal `json:"counted"`
	Delta      decimal.Decimal `json:"delta"`
	MovementID string          `json:"movement_id"`
}

// ApplyResult respuesta cacheada de Apply.
type ApplyResult struct {
	CountID     string            `json:"count_id"`
	StoreID     string            `json:"store_id"`
	Status      string            `json:"status"`
	AppliedAt   time.Time         `json:"applied_at"`
	Adjustments []CountAdjustment `json:"adjustments"`
}

// ApplyRoute ruta de idempotencia de Apply para una sesión.
func ApplyRoute(countID string) string {
	return "POST /stock-counts/" + countID + "/apply"
}

// Apply genera un ADJUSTMENT por cada línea cuya cantidad contada difiere de las existencias
// actuales y marca la sesión APPLIED, todo en una transacción. La diferencia se calcula al
// aplicar, no al escanear: los movimientos ocurridos durante el conteo quedan absorbidos.
func (uc *StockCountUseCase) Apply(ctx context.Context, in ApplyInput) (*ApplyResult, bool, error) {
	var (
		out      *ApplyResult
		replayed bool
	)
	scope := entity.IdempotencyScope{Key: in.IdempotencyKey, Route: ApplyRoute(in.CountID), Caller: in.Caller}
	err := uc.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		out, replayed, err = idempotency.Do(ctx, uc.idem, repos.Idempotency, scope, func(ctx context.Context) (*ApplyResult, error) {
			return uc.apply(ctx, repos, in)
		})
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		keys := make([]entity.SnapshotKey, 0, len(out.Adjustments))
		for _, a := range out.Adjustments {
			keys = append(keys, entity.SnapshotKey{TenantID: in.TenantID, StoreID: out.StoreID, ProductID: a.ProductID, VariantKey: a.VariantID})
		}
		publishUpdated(ctx, uc.pub, keys...)
		zerolog.Ctx(ctx).Info().Str("stock_count_id", in.CountID).Int("adjustments", len(out.Adjustments)).Msg("conteo aplicado")
	}
	return out, replayed, nil
}

func (uc *StockCountUseCase) apply(ctx context.Context, repos repository.Repositories, in ApplyInput) (*ApplyResult, error) {
	count, err := loadCount(ctx, repos, in.TenantID, in.CountID, true)
	if err != nil {
		return nil, err
	}
	if !count.IsOpen() {
		return nil, domain.ErrStockCountApplied
	}
	res := &ApplyResult{CountID: count.ID, StoreID: count.StoreID, Status: entity.StockCountApplied, AppliedAt: uc.now().UTC(), Adjustments: []CountAdjustment{}}
	for _, line := range count.Lines {
		key := entity.SnapshotKey{TenantID: count.TenantID, StoreID: count.StoreID, ProductID: line.ProductID, VariantKey: line.VariantID}
		snap, err := repos.Snapshots.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		delta := line.CountedQty.Sub(snap.OnHand)
		if delta.IsZero() {
			continue
		}
		mov, _, err := uc.ledger.ApplyStockMovement(ctx, repos, ledger.MovementInput{
			TenantID:      count.TenantID,
			StoreID:       count.StoreID,
			ProductID:     line.ProductID,
			VariantID:     line.VariantID,
			QtyDelta:      delta,
			Type:          entity.MovementTypeAdjustment,
			ReferenceType: entity.ReferenceStockCount,
			ReferenceID:   count.ID,
			Note:          "Ajuste por conteo físico",
			ActorID:       in.ActorID,
		})
		if err != nil {
			return nil, err
		}
		res.Adjustments = append(res.Adjustments, CountAdjustment{
			ProductID:  line.ProductID,
			VariantID:  line.VariantID,
			Previous:   snap.OnHand,
			Counted:    line.CountedQty,
			Delta:      delta,
			MovementID: mov.ID,
		})
	}
	if err := repos.StockCounts.MarkApplied(ctx, count.ID, in.ActorID, res.AppliedAt); err != nil {
		return nil, err
	}
	return res, nil
}

// Report genera el PDF de la sesión: contado contra sistema y el ajuste aplicado por línea.
// Con la sesión abierta la columna sistema muestra las existencias actuales.
func (uc *StockCountUseCase) Report(ctx context.Context, tenantID, id string) ([]byte, error) {
	if uc.renderer == nil {
		return nil, fmt.Errorf("stock count: generador de reportes no configurado")
	}
	var report dto.StockCountReport
	err := uc.tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
		count, err := loadCount(ctx, repos, tenantID, id, false)
		if err != nil {
			return err
		}
		store, err := requireStore(ctx, repos, tenantID, count.StoreID)
		if err != nil {
			return err
		}
		report = dto.StockCountReport{
			CountID:   count.ID,
			StoreName: store.Name,
			Status:    count.Status,
			Notes:     count.Notes,
			CreatedBy: count.CreatedBy,
			CreatedAt: count.CreatedAt,
			AppliedAt: count.AppliedAt,
			AppliedBy: count.AppliedBy,
		}
		movs, err := repos.Movements.ListByReference(ctx, tenantID, entity.ReferenceStockCount, count.ID)
		if err != nil {
			return err
		}
		adjusted := make(map[entity.SnapshotKey]decimal.Decimal, len(movs))
		for _, m := range movs {
			adjusted[m.Key()] = adjusted[m.Key()].Add(m.QtyDelta)
		}
		for _, line := range count.Lines {
			key := entity.SnapshotKey{TenantID: tenantID, StoreID: count.StoreID, ProductID: line.ProductID, VariantKey: line.VariantID}
			snap, err := repos.Snapshots.Get(ctx, key)
			if err != nil {
				return err
			}
			adj := adjusted[key]
			system := snap.OnHand
			if !count.IsOpen() {
				// Existencias del sistema justo antes del ajuste.
				system = line.CountedQty.Sub(adj)
			}
			name, sku := line.ProductID, ""
			if p, err := repos.Products.GetByID(ctx, tenantID, line.ProductID); err == nil && p != nil {
				name, sku = p.Name, p.SKU
			}
			if line.VariantID != "" {
				if v, err := repos.Products.GetVariant(ctx, line.ProductID, line.VariantID); err == nil && v != nil {
					name, sku = name+" / "+v.Name, v.SKU
				}
			}
			report.Lines = append(report.Lines, dto.StockCountReportLine{
				SKU:        sku,
				Name:       name,
				Counted:    line.CountedQty,
				System:     system,
				Adjustment: adj,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return uc.renderer.RenderStockCount(ctx, report)
}

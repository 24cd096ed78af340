package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/event"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Nombres de los jobs incluidos.
const (
	JobLowStockScan         = "low-stock-scan"
	JobIdempotencyRetention = "idempotency-retention"
	JobSnapshotAudit        = "snapshot-audit"
)

const defaultBatch = 500

// Publisher destino de los eventos que emiten los jobs.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event)
}

// BuiltinDeps dependencias de los jobs incluidos.
type BuiltinDeps struct {
	Tx                repository.TxRunner
	Publisher         Publisher
	IdempotencyRetain time.Duration
	Now               func() time.Time

	LowStockInterval  time.Duration
	RetentionInterval time.Duration
	AuditInterval     time.Duration
}

// Builtins devuelve los jobs incluidos listos para Register.
func Builtins(d BuiltinDeps) []Job {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return []Job{
		{Name: JobLowStockScan, Handler: LowStockScan(d.Tx, d.Publisher), Interval: d.LowStockInterval},
		{Name: JobIdempotencyRetention, Handler: IdempotencyRetention(d.Tx, d.IdempotencyRetain, now), Interval: d.RetentionInterval},
		{Name: JobSnapshotAudit, Handler: SnapshotAudit(d.Tx), Interval: d.AuditInterval},
	}
}

type batchPayload struct {
	Limit int `json:"limit"`
}

func batchLimit(payload json.RawMessage) (int, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return defaultBatch, nil
	}
	var p batchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, fmt.Errorf("%w: payload: %v", domain.ErrInvalidInput, err)
	}
	if p.Limit <= 0 {
		return defaultBatch, nil
	}
	return p.Limit, nil
}

// LowStockResult resultado de low-stock-scan.
type LowStockResult struct {
	Triggered int `json:"triggered"`
}

// LowStockScan publica LowStockTriggered por cada snapshot en o bajo el mínimo del producto.
func LowStockScan(tx repository.TxRunner, pub Publisher) Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		limit, err := batchLimit(payload)
		if err != nil {
			return nil, err
		}
		var items []repository.LowStockItem
		if err := tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var err error
			items, err = repos.Snapshots.ListBelowMinStock(ctx, limit)
			return err
		}); err != nil {
			return nil, fmt.Errorf("low-stock-scan: %w", err)
		}
		for _, it := range items {
			pub.Publish(ctx, event.LowStockTriggered{
				TenantID:  it.Snapshot.TenantID,
				StoreID:   it.Snapshot.StoreID,
				ProductID: it.Snapshot.ProductID,
				VariantID: it.Snapshot.VariantKey,
				OnHand:    it.Snapshot.OnHand,
				MinStock:  it.MinStock,
			})
		}
		return LowStockResult{Triggered: len(items)}, nil
	}
}

type retentionPayload struct {
	OlderThan string `json:"older_than"` // duración Go, ej. "720h"
}

// RetentionResult resultado de idempotency-retention.
type RetentionResult struct {
	Deleted int64     `json:"deleted"`
	Before  time.Time `json:"before"`
}

// IdempotencyRetention elimina registros de idempotencia más antiguos que retain.
// El payload puede sobrescribir la antigüedad con {"older_than": "48h"}.
func IdempotencyRetention(tx repository.TxRunner, retain time.Duration, now func() time.Time) Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		age := retain
		if len(payload) > 0 && string(payload) != "null" {
			var p retentionPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, fmt.Errorf("%w: payload: %v", domain.ErrInvalidInput, err)
			}
			if p.OlderThan != "" {
				d, err := time.ParseDuration(p.OlderThan)
				if err != nil {
					return nil, fmt.Errorf("%w: older_than: %v", domain.ErrInvalidInput, err)
				}
				age = d
			}
		}
		if age <= 0 {
			return nil, fmt.Errorf("%w: retención debe ser positiva", domain.ErrInvalidInput)
		}
		before := now().UTC().Add(-age)
		var deleted int64
		if err := tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var err error
			deleted, err = repos.Idempotency.DeleteOlderThan(ctx, before)
			return err
		}); err != nil {
			return nil, fmt.Errorf("idempotency-retention: %w", err)
		}
		zerolog.Ctx(ctx).Info().Int64("deleted", deleted).Time("before", before).Msg("registros de idempotencia podados")
		return RetentionResult{Deleted: deleted, Before: before}, nil
	}
}

// DriftItem llave cuyo snapshot no coincide con la suma del ledger.
type DriftItem struct {
	TenantID    string          `json:"tenant_id"`
	StoreID     string          `json:"store_id"`
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id,omitempty"`
	OnHand      decimal.Decimal `json:"on_hand"`
	LedgerTotal decimal.Decimal `json:"ledger_total"`
}

// AuditResult resultado de snapshot-audit.
type AuditResult struct {
	Drift []DriftItem `json:"drift"`
}

// SnapshotAudit compara cada snapshot con la suma de su ledger. Solo lee: corregir una
// diferencia requiere un movimiento compensatorio explícito.
func SnapshotAudit(tx repository.TxRunner) Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		limit, err := batchLimit(payload)
		if err != nil {
			return nil, err
		}
		var rows []repository.SnapshotDrift
		if err := tx.Run(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var err error
			rows, err = repos.Snapshots.ListDrift(ctx, limit)
			return err
		}); err != nil {
			return nil, fmt.Errorf("snapshot-audit: %w", err)
		}
		out := AuditResult{Drift: make([]DriftItem, 0, len(rows))}
		for _, r := range rows {
			out.Drift = append(out.Drift, DriftItem{
				TenantID:    r.Key.TenantID,
				StoreID:     r.Key.StoreID,
				ProductID:   r.Key.ProductID,
				VariantID:   r.Key.VariantKey,
				OnHand:      r.OnHand,
				LedgerTotal: r.LedgerTotal,
			})
			zerolog.Ctx(ctx).Warn().
				Str("tenant_id", r.Key.TenantID).
				Str("store_id", r.Key.StoreID).
				Str("product_id", r.Key.ProductID).
				Str("on_hand", r.OnHand.String()).
				Str("ledger_total", r.LedgerTotal.String()).
				Msg("snapshot difiere del ledger")
		}
		return out, nil
	}
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
)

var _ repository.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción READ COMMITTED, ejecuta fn con los repos atados a la tx y hace
// Commit o Rollback. La serialización del ledger la da el upsert con delta sobre el snapshot.
func (r *TxRunner) Run(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, RepositoriesFor(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RepositoriesFor arma el conjunto de repositorios sobre q (pool o tx).
func RepositoriesFor(q Querier) repository.Repositories {
	return repository.Repositories{
		Movements:   NewStockMovementRepository(q),
		Snapshots:   NewSnapshotRepository(q),
		Idempotency: NewIdempotencyRepository(q),
		StockCounts: NewStockCountRepository(q),
		Bundles:     NewBundleRepository(q),
		Products:    NewProductRepository(q),
		Stores:      NewStoreRepository(q),
	}
}

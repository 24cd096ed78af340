package repository

import "context"

// Repositories agrupa los repositorios atados a una misma unidad atómica (transacción).
// Todo lo que se escriba a través de ellos se confirma o se descarta junto.
type Repositories struct {
	Movements   StockMovementRepository
	Snapshots   SnapshotRepository
	Idempotency IdempotencyRepository
	StockCounts StockCountRepository
	Bundles     BundleRepository
	Products    ProductRepository
	Stores      StoreRepository
}

// TxRunner ejecuta fn dentro de una transacción y le entrega repositorios atados a ella.
// Si fn retorna error se hace Rollback; si no, Commit.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Package bootstrap arma el grafo de dependencias a partir de la configuración.
// Lo comparten el servidor HTTP (cmd/api) y la CLI de jobs (cmd/jobs).
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/invorya-core/internal/application/events"
	"github.com/jhoicas/invorya-core/internal/application/idempotency"
	"github.com/jhoicas/invorya-core/internal/application/inventory"
	"github.com/jhoicas/invorya-core/internal/application/jobs"
	"github.com/jhoicas/invorya-core/internal/application/ledger"
	"github.com/jhoicas/invorya-core/internal/application/ratelimit"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
	"github.com/jhoicas/invorya-core/internal/infrastructure/kafka"
	"github.com/jhoicas/invorya-core/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/invorya-core/internal/infrastructure/pdf"
	"github.com/jhoicas/invorya-core/internal/infrastructure/postgres"
	"github.com/jhoicas/invorya-core/internal/infrastructure/redisx"
	"github.com/jhoicas/invorya-core/pkg/config"
	"github.com/jhoicas/invorya-core/pkg/metrics"
)

// JobRateLimitSweep libera los buckets vencidos del limitador local.
const JobRateLimitSweep = "ratelimit-sweep"

// Container dependencias ya construidas. Close libera conexiones en orden inverso.
type Container struct {
	Metrics     *metrics.Metrics
	Tx          repository.TxRunner
	Ledger      *ledger.Service
	Bus         *events.Bus
	Limiter     *ratelimit.Limiter
	Runner      *jobs.Runner
	Movements   *inventory.MovementUseCase
	StockCounts *inventory.StockCountUseCase
	Bundles     *inventory.BundleUseCase

	closers []func()
}

// Close libera pool, clientes y writers.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Container) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

// Build construye el contenedor. Con DB_DRIVER=postgres aplica las migraciones pendientes.
func Build(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Metrics: metrics.New("invorya")}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	deadLetters, err := c.storage(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redisx.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		c.onClose(func() { _ = rdb.Close() })
	}

	if err := c.eventBus(cfg.Events, rdb); err != nil {
		return nil, err
	}

	limiterOpts := []ratelimit.Option{ratelimit.WithMetrics(c.Metrics)}
	if cfg.RateLimit.Backend == config.BackendRedis {
		limiterOpts = append(limiterOpts, ratelimit.WithShared(redisx.NewCounter(rdb), nil))
	}
	localCounter := memory.NewCounter(nil)
	c.Limiter = ratelimit.NewLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window, localCounter, limiterOpts...)

	var locker jobs.Locker = memory.NewLocker(nil)
	if cfg.Jobs.LockBackend == config.BackendRedis {
		locker = redisx.NewLocker(rdb)
	}
	c.Runner = jobs.NewRunner(locker, deadLetters,
		jobs.WithMetrics(c.Metrics),
		jobs.WithDefaults(cfg.Jobs.MaxAttempts, cfg.Jobs.BaseDelay, cfg.Jobs.LockTTL),
	)
	builtins := jobs.Builtins(jobs.BuiltinDeps{
		Tx:                c.Tx,
		Publisher:         c.Bus,
		IdempotencyRetain: cfg.Jobs.IdempotencyRetain,
		LowStockInterval:  cfg.Jobs.LowStockInterval,
		RetentionInterval: cfg.Jobs.RetentionInterval,
		AuditInterval:     cfg.Jobs.AuditInterval,
	})
	// los buckets vencidos del contador local solo se liberan con Sweep; cada réplica
	// barre el suyo, por eso el lock es del proceso y no el compartido
	builtins = append(builtins, jobs.Job{
		Name:        JobRateLimitSweep,
		MaxAttempts: 1,
		Interval:    sweepInterval(cfg.RateLimit.Window),
		Locker:      memory.NewLocker(nil),
		Handler: func(context.Context, json.RawMessage) (any, error) {
			localCounter.Sweep()
			return nil, nil
		},
	})
	for _, job := range builtins {
		if err := c.Runner.Register(job); err != nil {
			return nil, fmt.Errorf("registrar job %s: %w", job.Name, err)
		}
	}

	c.Ledger = ledger.NewService(c.Tx)
	idem := idempotency.NewEngine(c.Metrics)
	c.Movements = inventory.NewMovementUseCase(c.Tx, c.Ledger, idem, c.Bus)
	c.StockCounts = inventory.NewStockCountUseCase(c.Tx, c.Ledger, idem, c.Bus, infrapdf.NewMarotoReportRenderer())
	c.Bundles = inventory.NewBundleUseCase(c.Tx, c.Ledger, idem, c.Bus)

	ok = true
	return c, nil
}

func (c *Container) storage(ctx context.Context, cfg config.DBConfig) (repository.DeadLetterRepository, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
		c.Tx = memory.NewStore()
		return memory.NewDeadLetters(), nil
	case "postgres", "":
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		c.onClose(pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("migraciones: %w", err)
		}
		c.Tx = postgres.NewTxRunner(pool)
		return postgres.NewDeadLetterRepository(pool), nil
	default:
		return nil, fmt.Errorf("DB_DRIVER desconocido: %q", cfg.Driver)
	}
}

func (c *Container) eventBus(cfg config.EventsConfig, rdb *redis.Client) error {
	opts := []events.Option{events.WithMetrics(c.Metrics), events.WithOrigin(cfg.Origin)}
	switch cfg.Backend {
	case config.BackendRedis:
		opts = append(opts, events.WithBroadcaster(redisx.NewBroadcaster(rdb, cfg.Channel)))
	case config.BackendKafka:
		kb, err := kafka.NewBroadcaster(kafka.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.Channel})
		if err != nil {
			return err
		}
		c.onClose(func() { _ = kb.Close() })
		opts = append(opts, events.WithBroadcaster(kb))
	case config.BackendLocal, "":
	default:
		return fmt.Errorf("EVENTS_BACKEND desconocido: %q", cfg.Backend)
	}
	c.Bus = events.NewBus(opts...)
	return nil
}

// sweepInterval nunca por debajo de un minuto aunque la ventana sea corta.
func sweepInterval(window time.Duration) time.Duration {
	if window < time.Minute {
		return time.Minute
	}
	return window
}

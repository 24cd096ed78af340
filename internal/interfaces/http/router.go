package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jhoicas/invorya-core/internal/application/events"
	"github.com/jhoicas/invorya-core/internal/application/inventory"
	"github.com/jhoicas/invorya-core/internal/application/jobs"
	"github.com/jhoicas/invorya-core/internal/application/ledger"
	"github.com/jhoicas/invorya-core/internal/application/ratelimit"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/pkg/logger"
	"github.com/jhoicas/invorya-core/pkg/metrics"
)

// Scopes del limitador por grupo de rutas mutantes.
const (
	ScopeMovements   = "movements"
	ScopeStockCounts = "stock-counts"
	ScopeBundles     = "bundles"
	ScopeJobs        = "jobs"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Movements   *inventory.MovementUseCase
	StockCounts *inventory.StockCountUseCase
	Bundles     *inventory.BundleUseCase
	Ledger      *ledger.Service
	Jobs        *jobs.Runner
	Bus         *events.Bus
	Limiter     *ratelimit.Limiter // nil = sin límite
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
	JWTSecret   string
	JWTIssuer   string
	Shutdown    context.Context // cierra los streams SSE abiertos
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	api := app.Group("/api", requestid.New())

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/",
		AuthMiddleware(deps.JWTSecret, deps.JWTIssuer),
		RequestContext(deps.Logger, deps.Metrics),
	)
	staff := RequireRole(entity.RoleAdmin, entity.RoleBodeguero)
	anyRole := RequireRole(entity.RoleAdmin, entity.RoleBodeguero, entity.RoleVendedor)
	adminOnly := RequireRole(entity.RoleAdmin)

	// Movimientos y existencias
	invGroup := protected.Group("/inventory")
	inventoryHandler := NewInventoryHandler(deps.Movements, deps.Ledger)
	invGroup.Post("/movements", anyRole, RateLimit(deps.Limiter, ScopeMovements), inventoryHandler.RecordMovement)
	invGroup.Get("/movements", anyRole, inventoryHandler.ListMovements)
	invGroup.Post("/transfers", staff, RateLimit(deps.Limiter, ScopeMovements), inventoryHandler.Transfer)
	invGroup.Post("/on-order", staff, RateLimit(deps.Limiter, ScopeMovements), inventoryHandler.AdjustOnOrder)
	invGroup.Get("/snapshots", anyRole, inventoryHandler.ListSnapshots)
	invGroup.Get("/snapshots/:store_id/:product_id", anyRole, inventoryHandler.GetSnapshot)

	// Conteos físicos
	counts := protected.Group("/stock-counts", staff)
	countHandler := NewStockCountHandler(deps.StockCounts)
	counts.Post("/", RateLimit(deps.Limiter, ScopeStockCounts), countHandler.Create)
	counts.Get("/:id", countHandler.GetByID)
	counts.Get("/:id/report", countHandler.Report)
	counts.Post("/:id/scan", RateLimit(deps.Limiter, ScopeStockCounts), countHandler.Scan)
	counts.Post("/:id/apply", RateLimit(deps.Limiter, ScopeStockCounts), countHandler.Apply)

	// Kits
	bundles := protected.Group("/bundles", staff)
	bundleHandler := NewBundleHandler(deps.Bundles)
	bundles.Get("/:id/components", bundleHandler.ListComponents)
	bundles.Post("/:id/components", adminOnly, bundleHandler.AddComponent)
	bundles.Delete("/:id/components/:component_id", adminOnly, bundleHandler.RemoveComponent)
	bundles.Post("/:id/assemble", RateLimit(deps.Limiter, ScopeBundles), bundleHandler.Assemble)

	// Jobs (solo admin)
	if deps.Jobs != nil {
		jobsGroup := protected.Group("/jobs", adminOnly)
		jobsHandler := NewJobsHandler(deps.Jobs)
		jobsGroup.Get("/", jobsHandler.List)
		jobsGroup.Get("/dead-letters", jobsHandler.ListDeadLetters)
		jobsGroup.Post("/dead-letters/:id/replay", RateLimit(deps.Limiter, ScopeJobs), jobsHandler.ReplayDeadLetter)
		jobsGroup.Post("/:name/run", RateLimit(deps.Limiter, ScopeJobs), jobsHandler.Run)
		jobsGroup.Post("/:name/retry", RateLimit(deps.Limiter, ScopeJobs), jobsHandler.Retry)
	}

	// Canal en vivo
	if deps.Bus != nil {
		eventsHandler := NewEventsHandler(deps.Bus, deps.Shutdown)
		protected.Get("/events/stream", anyRole, eventsHandler.Stream)
	}
}

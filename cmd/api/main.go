package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/invorya-core/internal/application/jobs"
	"github.com/jhoicas/invorya-core/internal/bootstrap"
	httpRouter "github.com/jhoicas/invorya-core/internal/interfaces/http"
	"github.com/jhoicas/invorya-core/pkg/config"
	"github.com/jhoicas/invorya-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("db", cfg.DB.Driver).
		Str("events", cfg.Events.Backend).
		Msg("iniciando aplicación")

	// ctx de la aplicación: lo cancela la señal de apagado
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar dependencias")
	}
	defer deps.Close()

	deps.Bus.Start(ctx)

	scheduler := jobs.NewScheduler(deps.Runner)
	if cfg.Jobs.SchedulerEnabled {
		scheduler.Start(ctx)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(cfg.HTTP.SwaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: cfg.HTTP.SwaggerFile,
			Path:     "docs",
			Title:    "Invorya Core API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "origin": deps.Bus.Origin()})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Movements:   deps.Movements,
		StockCounts: deps.StockCounts,
		Bundles:     deps.Bundles,
		Ledger:      deps.Ledger,
		Jobs:        deps.Runner,
		Bus:         deps.Bus,
		Limiter:     deps.Limiter,
		Logger:      log,
		Metrics:     deps.Metrics,
		JWTSecret:   cfg.JWT.Secret,
		JWTIssuer:   cfg.JWT.Issuer,
		Shutdown:    ctx,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	// Cierra streams SSE y la escucha del bus antes de drenar conexiones
	stop()
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

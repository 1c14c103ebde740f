package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/contentflow/pkg/identity"
	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/dukex/contentflow/pkg/services"
	"github.com/dukex/contentflow/pkg/web"
	"github.com/dukex/contentflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *workflow.Engine
	gatherer    prometheus.Gatherer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	engine *workflow.Engine,
	gatherer prometheus.Gatherer,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		engine:      engine,
		gatherer:    gatherer,
		validate:    web.NewValidator(),
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence, a.engine)
	handlers := web.NewAPIHandlers(workflowService, a.validate, identity.HeaderResolver{}, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return a.persistence.HealthCheck(c.Context()) == nil
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Contentflow API")
	})

	if a.gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))
	}

	handlers.Routes(app)

	return app
}

// Start serves until ctx is cancelled. It returns once in-flight requests
// have finished.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		<-ctx.Done()

		if err := app.Shutdown(); err != nil {
			a.logger.Error("Failed to shutdown API", "error", err)
		}
	}()

	err := app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
	if err != nil {
		return err
	}

	<-stopped

	return nil
}

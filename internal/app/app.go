package app

import (
	_ "embed"
	"net/http"

	"github.com/flowchartsman/swaggerui"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/redis/go-redis/v9"

	"code2diagram/internal/auth"
	"code2diagram/internal/handlers"
	"code2diagram/internal/metrics"
	u "code2diagram/internal/utils"
)

//go:embed openapi.json
var openAPISpec []byte

// Deps are the collaborators the HTTP layer needs. Tokens and Redis may be nil.
type Deps struct {
	Generator handlers.Generator
	Exporter  handlers.Exporter
	Tokens    *auth.TokenStore
	Redis     *redis.Client
	Metrics   *metrics.Recorder
}

// SetupApp creates and configures a new Fiber app instance
func SetupApp(cfg u.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Server.BodyLimit,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          handlers.ErrorHandler(cfg.Production()),
	})

	RegisterMiddleware(app, cfg, deps.Tokens)
	RegisterRoutes(app, cfg, deps)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts all route handlers to the app
func RegisterRoutes(app *fiber.App, cfg u.Config, deps Deps) {
	var cache *handlers.DiagramCache
	if cfg.Cache.DiagramCacheEnabled {
		cache = handlers.NewDiagramCache(deps.Redis, cfg.Cache.DiagramCacheTTL)
	}

	diagrams := handlers.NewDiagramService(cfg, deps.Generator, cache, deps.Metrics)
	exports := handlers.NewExportService(cfg, deps.Exporter, deps.Metrics)

	api := app.Group("/api")
	api.Post("/generate-diagram", diagrams.HandleGenerate)
	api.Get("/diagram-types", diagrams.HandleDiagramTypes)
	api.Get("/languages", diagrams.HandleLanguages)
	api.Post("/export", exports.HandleExport)
	api.Get("/export/formats", exports.HandleFormats)
	api.Get("/monitor", monitor.New())

	if cfg.Metrics.Enabled && deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.HTTPHandler()))
	}

	// The UI is served at /docs/; its assets are resolved relative to that path.
	app.Get("/docs/*", adaptor.HTTPHandler(http.StripPrefix("/docs", swaggerui.Handler(openAPISpec))))
}

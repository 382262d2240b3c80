package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-router"
	"github.com/gyber/go-custody"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerConfig struct {
	AppName     string
	CORSOrigins []string
	// RateLimit is the number of requests per minute per client, zero disables it
	RateLimit int
	// Gatherer backs /metrics, nil leaves the route out
	Gatherer prometheus.Gatherer
	Logger   custody.Logger
}

// NewServer returns a router server backed by fiber with the shared
// middleware stack and every controller route mounted.
func NewServer(cfg ServerConfig, controller *Controller) router.Server[*fiber.App] {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               cfg.AppName,
			ErrorHandler:          ErrorHandler(logger),
			DisableStartupMessage: true,
			ReadTimeout:           15 * time.Second,
			WriteTimeout:          30 * time.Second,
		})

		app.Use(recover.New())

		origins := "*"
		if len(cfg.CORSOrigins) > 0 {
			origins = strings.Join(cfg.CORSOrigins, ",")
		}
		app.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
			AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		}))

		if cfg.RateLimit > 0 {
			app.Use(limiter.New(limiter.Config{
				Max:        cfg.RateLimit,
				Expiration: time.Minute,
				Next: func(c *fiber.Ctx) bool {
					return c.Path() == "/metrics"
				},
				LimitReached: func(c *fiber.Ctx) error {
					return fiber.NewError(fiber.StatusTooManyRequests, "Too Many Requests")
				},
			}))
		}

		if cfg.Gatherer != nil {
			app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
		}

		return app
	})

	RegisterRoutes(srv.Router(), controller)

	return srv
}

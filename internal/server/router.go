package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cfsub/internal/server/handlers"
	"cfsub/internal/server/middleware"
)

type RouteOptions struct {
	AdminSecret         string
	SubscribeRatePerMin int
}

func RegisterRoutes(app *fiber.App, h *handlers.Handler, opts RouteOptions) {
	// Dashboard
	app.Get("/", h.Dashboard)

	api := app.Group("/api")
	api.Get("/domains", h.Domains)
	api.Post("/refresh", middleware.AdminRequired(opts.AdminSecret), h.Refresh)
	api.Get("/subscribe", middleware.RateLimit(opts.SubscribeRatePerMin), h.Subscribe)
	api.Get("/optimized-ips", h.OptimizedIPs)

	// Metrics
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true, "time": time.Now()})
	})
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Users         *handlers.UsersHandler
	Tickets       *handlers.TicketsHandler
	Realtime      *handlers.RealtimeHandler
	Metrics       *handlers.MetricsHandler
	Authenticator *auth.Authenticator
	StatusPolicy  config.StatusUpdatePolicy
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Get)
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	tickets := api.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Authenticator.Handle, cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	statusHandlers := append(cfg.Authenticator.StatusUpdateGuards(cfg.StatusPolicy), cfg.Tickets.UpdateStatus)
	tickets.Patch("/:id", statusHandlers...)
	tickets.Get("/:id/messages", cfg.Tickets.ListMessages)
	tickets.Post("/:id/messages", cfg.Authenticator.Handle, cfg.Tickets.AddMessage)

	if cfg.Realtime != nil {
		app.Get("/ws", cfg.Realtime.Upgrade, cfg.Realtime.Serve())
	}
}

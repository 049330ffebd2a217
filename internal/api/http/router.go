package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ilondustries/inventario/internal/api/http/handlers"
	"github.com/ilondustries/inventario/internal/auth"
	"github.com/ilondustries/inventario/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Products       *handlers.ProductsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	api.Post("/tickets", auth.RequireRole(domain.RoleSupervisor, domain.RoleOperator), cfg.Tickets.Create)
	api.Get("/tickets", auth.RequireRole(), cfg.Tickets.List)
	api.Get("/tickets/:id", auth.RequireRole(), cfg.Tickets.Get)
	api.Post("/tickets/:id/decision", auth.RequireRole(domain.RoleAdmin), cfg.Tickets.Decide)
	api.Post("/tickets/:id/deliver", auth.RequireRole(domain.RoleAdmin), cfg.Tickets.Deliver)
	api.Post("/tickets/:id/return", auth.RequireRole(domain.RoleSupervisor, domain.RoleOperator), cfg.Tickets.Return)
	api.Delete("/tickets/:id", auth.RequireRole(domain.RoleAdmin), cfg.Tickets.Delete)

	api.Get("/products/:id", auth.RequireRole(), cfg.Products.Get)
}

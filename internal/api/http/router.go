package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/erp-workflow/internal/api/http/handlers"
	"github.com/spec-kit/erp-workflow/internal/auth"
	"github.com/spec-kit/erp-workflow/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Orders         *handlers.OrdersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	app.Post("/auth/login", cfg.Users.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	users := protected.Group("/users")
	users.Get("/me", cfg.Users.Me)
	users.Post("", auth.RequireRole(domain.UserRoleAdmin), cfg.Users.Create)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.RaiseTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Post("/:id/plan", cfg.Tickets.Plan)
	tickets.Post("/:id/solve", cfg.Tickets.Solve)
	tickets.Post("/:id/revise", cfg.Tickets.Revise)
	tickets.Post("/:id/confirm", cfg.Tickets.Confirm)
	tickets.Post("/:id/close", cfg.Tickets.Close)
	tickets.Post("/:id/reraise", cfg.Tickets.Reraise)

	orders := protected.Group("/orders")
	orders.Post("", cfg.Orders.CreateOrder)
	orders.Get("", cfg.Orders.ListOrders)
	orders.Get("/step-template", cfg.Orders.StepTemplate)
	orders.Get("/:id", cfg.Orders.GetOrder)
	orders.Post("/:id/steps/:stepId/assign", cfg.Orders.AssignStep)
	orders.Post("/:id/steps/:stepId/complete", cfg.Orders.CompleteStep)
}

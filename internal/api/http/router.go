package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk/internal/api/http/handlers"
	"github.com/deskflow/helpdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Audit          *handlers.AuditHandler
	SLA            *handlers.SLAHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Role checks happen in the services so
// every route below the auth middleware only needs an identity.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireIdentity())

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/resolve", cfg.Tickets.ResolveTicket)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)
	tickets.Post("/:id/reopen", cfg.Tickets.ReopenTicket)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/feedback", cfg.Tickets.ListFeedback)
	tickets.Post("/:id/feedback", cfg.Tickets.SubmitFeedback)
	tickets.Get("/:id/audit", cfg.Audit.ListForTicket)

	tickets.Post("/:id/start", cfg.StaffTickets.StartTicket)
	tickets.Post("/:id/work", cfg.StaffTickets.BeginWork)
	tickets.Patch("/:id/priority", cfg.StaffTickets.UpdatePriority)
	tickets.Post("/:id/assign", cfg.StaffTickets.Assign)
	tickets.Post("/:id/assign-team", cfg.StaffTickets.AssignTeam)
	tickets.Post("/:id/auto-assign", cfg.StaffTickets.AutoAssign)

	api.Get("/audit", cfg.Audit.Query)

	api.Get("/sla/configs", cfg.SLA.List)
	api.Put("/sla/configs/:priority", cfg.SLA.Update)
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Categories     *handlers.CategoriesHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	Authorizer     *auth.Authorizer
}

// RegisterRoutes wires HTTP routes under /api.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	api := app.Group("/api")
	can := cfg.Authorizer.RequirePermission
	authn := cfg.AuthMiddleware.Handle

	health := api.Group("/health")
	health.Get("/live", cfg.Health.Live)
	health.Get("/ready", cfg.Health.Ready)
	health.Get("/metrics", cfg.Health.Metrics)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", authn, cfg.Auth.Logout)
	authGroup.Get("/me", authn, can(auth.ResourceProfile, auth.ActionRead), cfg.Auth.Me)
	authGroup.Post("/change-password", authn, can(auth.ResourceProfile, auth.ActionWrite), cfg.Auth.ChangePassword)

	categories := api.Group("/categories", authn)
	categories.Get("/", can(auth.ResourceCategories, auth.ActionRead), cfg.Categories.List)
	categories.Get("/:id", can(auth.ResourceCategories, auth.ActionRead), cfg.Categories.Get)
	categories.Post("/", can(auth.ResourceCategories, auth.ActionManage), cfg.Categories.Create)
	categories.Put("/:id", can(auth.ResourceCategories, auth.ActionManage), cfg.Categories.Update)
	categories.Delete("/:id", can(auth.ResourceCategories, auth.ActionManage), cfg.Categories.Delete)

	tickets := api.Group("/tickets", authn)
	tickets.Get("/", can(auth.ResourceTickets, auth.ActionRead), cfg.Tickets.ListTickets)
	tickets.Post("/", can(auth.ResourceTickets, auth.ActionWrite), cfg.Tickets.CreateTicket)
	tickets.Get("/:id", can(auth.ResourceTickets, auth.ActionRead), cfg.Tickets.GetTicket)
	tickets.Get("/:id/attachment", can(auth.ResourceTickets, auth.ActionRead), cfg.Tickets.Attachment)
	tickets.Put("/:id", can(auth.ResourceTickets, auth.ActionWrite), cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/comments", can(auth.ResourceTickets, auth.ActionWrite), cfg.Tickets.AddComment)
	tickets.Post("/:id/vote", can(auth.ResourceTickets, auth.ActionVote), cfg.Tickets.Vote)
	tickets.Delete("/:id/vote", can(auth.ResourceTickets, auth.ActionVote), cfg.Tickets.RemoveVote)

	users := api.Group("/users", authn)
	users.Get("/", can(auth.ResourceUsers, auth.ActionList), cfg.Users.List)
	users.Get("/agents", can(auth.ResourceUsers, auth.ActionList), cfg.Users.Agents)
	users.Get("/stats", can(auth.ResourceUsers, auth.ActionStats), cfg.Users.Stats)
	users.Get("/:id", can(auth.ResourceProfile, auth.ActionRead), cfg.Users.Get)
	users.Put("/:id", can(auth.ResourceProfile, auth.ActionWrite), cfg.Users.Update)
	users.Post("/:id/activate", can(auth.ResourceUsers, auth.ActionManage), cfg.Users.Activate)
	users.Post("/:id/deactivate", can(auth.ResourceUsers, auth.ActionManage), cfg.Users.Deactivate)
}

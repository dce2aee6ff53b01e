package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vuny-labs/marketplace-service/internal/api/http/handlers"
	"github.com/vuny-labs/marketplace-service/internal/auth"
	"github.com/vuny-labs/marketplace-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Products       *handlers.ProductsHandler
	ShopTickets    *handlers.ShopTicketsHandler
	SupportTickets *handlers.SupportTicketsHandler
	Stream         *handlers.StreamHandler
	StaffChat      *handlers.StaffChatHandler
	Notifications  *handlers.NotificationsHandler
	Audit          *handlers.AuditHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	api := app.Group("/api")

	// Stream endpoints authenticate via query token themselves; EventSource
	// cannot send an Authorization header.
	api.Get("/shop/tickets/:id/events", cfg.Stream.TicketEvents)
	api.Get("/support/tickets/:id/events", cfg.Stream.TicketEvents)
	api.Get("/support/admin/events", cfg.Stream.AdminFeed)
	api.Get("/staff-chat/events", cfg.Stream.StaffChat)

	// Public catalog.
	api.Get("/shop/products", cfg.Products.List)
	api.Get("/shop/products/:id", cfg.Products.Get)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	staff := protected.Group("", auth.RequireLevel(domain.RoleModerator))

	protected.Get("/users/me", cfg.Users.Me)
	staff.Put("/users/:id/role", cfg.Users.GrantRole)
	staff.Post("/users/:id/ban", cfg.Users.Ban)
	staff.Delete("/users/:id/ban", cfg.Users.Unban)

	staff.Post("/shop/products", cfg.Products.Create)
	staff.Put("/shop/products/:id", cfg.Products.Update)
	staff.Delete("/shop/products/:id", cfg.Products.Delist)

	protected.Post("/shop/tickets", cfg.ShopTickets.Create)
	protected.Get("/shop/tickets/my", cfg.ShopTickets.ListMine)
	staff.Get("/shop/tickets", cfg.ShopTickets.List)
	staff.Get("/shop/tickets/count-open", cfg.ShopTickets.CountOpen)
	protected.Get("/shop/tickets/:id", cfg.ShopTickets.Get)
	protected.Post("/shop/tickets/:id/message", cfg.ShopTickets.AddMessage)
	staff.Post("/shop/tickets/:id/sold", cfg.ShopTickets.Settle)
	protected.Post("/shop/tickets/:id/close", cfg.ShopTickets.Close)

	protected.Post("/support/tickets", cfg.SupportTickets.Create)
	protected.Get("/support/tickets/my", cfg.SupportTickets.ListMine)
	staff.Get("/support/tickets", cfg.SupportTickets.List)
	staff.Get("/support/tickets/count-open", cfg.SupportTickets.CountOpen)
	protected.Get("/support/tickets/:id", cfg.SupportTickets.Get)
	protected.Post("/support/tickets/:id/message", cfg.SupportTickets.AddMessage)
	protected.Post("/support/tickets/:id/close", cfg.SupportTickets.Close)
	staff.Delete("/support/tickets/:id", cfg.SupportTickets.Purge)

	protected.Get("/notifications", cfg.Notifications.List)
	protected.Post("/notifications/read-all", cfg.Notifications.MarkAllRead)
	protected.Post("/notifications/:id/read", cfg.Notifications.MarkRead)

	staff.Get("/staff-chat", cfg.StaffChat.List)
	staff.Post("/staff-chat", cfg.StaffChat.Post)
	staff.Delete("/staff-chat/clear", cfg.StaffChat.Clear)

	staff.Get("/admin/audit", cfg.Audit.ListRecent)
}

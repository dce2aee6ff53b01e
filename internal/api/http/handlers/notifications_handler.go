package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/vuny-labs/marketplace-service/internal/auth"
	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/service"
)

// NotificationsHandler exposes the caller's notification inbox.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notificationService}
}

// List GET /api/notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	items, err := h.notifications.ListForUser(c.UserContext(), principal.ID, c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	views := make([]fiber.Map, 0, len(items))
	for i := range items {
		views = append(views, notificationBody(&items[i]))
	}
	return c.JSON(fiber.Map{"data": views})
}

// MarkRead POST /api/notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if err := h.notifications.MarkRead(c.UserContext(), principal.ID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// MarkAllRead POST /api/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if err := h.notifications.MarkAllRead(c.UserContext(), principal.ID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func notificationBody(n *domain.Notification) fiber.Map {
	return fiber.Map{
		"id":         n.ID,
		"type":       n.Type,
		"message":    n.Message,
		"read":       n.Read,
		"created_at": n.CreatedAt,
	}
}

package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/vuny-labs/marketplace-service/internal/api/dto"
	"github.com/vuny-labs/marketplace-service/internal/auth"
	"github.com/vuny-labs/marketplace-service/internal/service"
	apperrors "github.com/vuny-labs/marketplace-service/pkg/util/errorutil"
)

// StaffChatHandler exposes the moderators-only chat room.
type StaffChatHandler struct {
	chat *service.StaffChatService
}

// NewStaffChatHandler constructs handler.
func NewStaffChatHandler(chat *service.StaffChatService) *StaffChatHandler {
	return &StaffChatHandler{chat: chat}
}

// List GET /api/staff-chat.
func (h *StaffChatHandler) List(c *fiber.Ctx) error {
	msgs, err := h.chat.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": msgs})
}

// Post POST /api/staff-chat.
func (h *StaffChatHandler) Post(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.chat.Post(c.UserContext(), principal, req.Content, req.ImageURL)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": msg})
}

// Clear DELETE /api/staff-chat/clear.
func (h *StaffChatHandler) Clear(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if err := h.chat.Clear(c.UserContext(), principal); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/vuny-labs/marketplace-service/internal/api/dto"
	"github.com/vuny-labs/marketplace-service/internal/auth"
	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/service"
	apperrors "github.com/vuny-labs/marketplace-service/pkg/util/errorutil"
)

// SupportTicketsHandler manages support tickets.
type SupportTicketsHandler struct {
	tickets *service.TicketService
}

// NewSupportTicketsHandler constructs handler.
func NewSupportTicketsHandler(ticketService *service.TicketService) *SupportTicketsHandler {
	return &SupportTicketsHandler{tickets: ticketService}
}

// Create POST /api/support/tickets. Returns the existing open ticket when the
// caller already has one with the same title.
func (h *SupportTicketsHandler) Create(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.SupportCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, msgs, err := h.tickets.CreateSupportTicket(c.UserContext(), principal, req.Title, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(c, h.tickets, ticket, msgs)})
}

// ListMine GET /api/support/tickets/my.
func (h *SupportTicketsHandler) ListMine(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	tickets, err := h.tickets.ListMine(c.UserContext(), principal, domain.TicketKindSupport)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketList(c, h.tickets, tickets)})
}

// List GET /api/support/tickets (staff).
func (h *SupportTicketsHandler) List(c *fiber.Ctx) error {
	tickets, err := h.tickets.List(c.UserContext(), domain.TicketKindSupport, statusFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketList(c, h.tickets, tickets)})
}

// CountOpen GET /api/support/tickets/count-open (staff badge).
func (h *SupportTicketsHandler) CountOpen(c *fiber.Ctx) error {
	count, err := h.tickets.CountOpen(c.UserContext(), domain.TicketKindSupport)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"count": count}})
}

// Get GET /api/support/tickets/:id.
func (h *SupportTicketsHandler) Get(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	ticket, msgs, err := h.tickets.GetTicket(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(c, h.tickets, ticket, msgs)})
}

// AddMessage POST /api/support/tickets/:id/message.
func (h *SupportTicketsHandler) AddMessage(c *fiber.Ctx) error {
	return addTicketMessage(c, h.tickets)
}

// Close POST /api/support/tickets/:id/close.
func (h *SupportTicketsHandler) Close(c *fiber.Ctx) error {
	return closeTicket(c, h.tickets)
}

// Purge DELETE /api/support/tickets/:id (staff). Removes the ticket for good.
func (h *SupportTicketsHandler) Purge(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if err := h.tickets.Purge(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

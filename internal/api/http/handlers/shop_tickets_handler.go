package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/vuny-labs/marketplace-service/internal/api/dto"
	"github.com/vuny-labs/marketplace-service/internal/auth"
	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/service"
	apperrors "github.com/vuny-labs/marketplace-service/pkg/util/errorutil"
)

// ShopTicketsHandler manages purchase tickets.
type ShopTicketsHandler struct {
	tickets *service.TicketService
}

// NewShopTicketsHandler constructs handler.
func NewShopTicketsHandler(ticketService *service.TicketService) *ShopTicketsHandler {
	return &ShopTicketsHandler{tickets: ticketService}
}

// Create POST /api/shop/tickets. Returns the existing open ticket when the
// caller already has one for the product.
func (h *ShopTicketsHandler) Create(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.OrderCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ProductID == "" {
		return apperrors.NewValidationError("product_id required", nil)
	}

	ticket, msgs, err := h.tickets.CreateCommerceTicket(c.UserContext(), principal, req.ProductID, req.Quantity)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(c, h.tickets, ticket, msgs)})
}

// ListMine GET /api/shop/tickets/my.
func (h *ShopTicketsHandler) ListMine(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	tickets, err := h.tickets.ListMine(c.UserContext(), principal, domain.TicketKindCommerce)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketList(c, h.tickets, tickets)})
}

// List GET /api/shop/tickets (staff).
func (h *ShopTicketsHandler) List(c *fiber.Ctx) error {
	tickets, err := h.tickets.List(c.UserContext(), domain.TicketKindCommerce, statusFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketList(c, h.tickets, tickets)})
}

// CountOpen GET /api/shop/tickets/count-open (staff badge).
func (h *ShopTicketsHandler) CountOpen(c *fiber.Ctx) error {
	count, err := h.tickets.CountOpen(c.UserContext(), domain.TicketKindCommerce)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"count": count}})
}

// Get GET /api/shop/tickets/:id.
func (h *ShopTicketsHandler) Get(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	ticket, msgs, err := h.tickets.GetTicket(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(c, h.tickets, ticket, msgs)})
}

// AddMessage POST /api/shop/tickets/:id/message.
func (h *ShopTicketsHandler) AddMessage(c *fiber.Ctx) error {
	return addTicketMessage(c, h.tickets)
}

// Settle POST /api/shop/tickets/:id/sold (staff).
func (h *ShopTicketsHandler) Settle(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if err := h.tickets.Settle(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": domain.TicketStatusSold}})
}

// Close POST /api/shop/tickets/:id/close.
func (h *ShopTicketsHandler) Close(c *fiber.Ctx) error {
	return closeTicket(c, h.tickets)
}

func addTicketMessage(c *fiber.Ctx, tickets *service.TicketService) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := tickets.AppendMessage(c.UserContext(), principal, c.Params("id"), req.Content, req.ImageURL)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": msg})
}

func closeTicket(c *fiber.Ctx, tickets *service.TicketService) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.CloseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if err := tickets.Close(c.UserContext(), principal, c.Params("id"), req.Reason); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": domain.TicketStatusClosed}})
}

func statusFilter(c *fiber.Ctx) *domain.TicketStatus {
	raw := c.Query("status")
	if raw == "" {
		return nil
	}
	status := domain.TicketStatus(strings.ToLower(raw))
	return &status
}

func ticketDetail(c *fiber.Ctx, tickets *service.TicketService, ticket *domain.Ticket, msgs []service.MessagePayload) fiber.Map {
	return fiber.Map{
		"ticket":   tickets.Payload(c.UserContext(), ticket),
		"messages": msgs,
	}
}

func ticketList(c *fiber.Ctx, svc *service.TicketService, tickets []domain.Ticket) []service.TicketPayload {
	items := make([]service.TicketPayload, 0, len(tickets))
	for i := range tickets {
		items = append(items, svc.Payload(c.UserContext(), &tickets[i]))
	}
	return items
}

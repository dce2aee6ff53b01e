package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vuny-labs/marketplace-service/internal/service"
)

// AuditHandler exposes the staff audit trail.
type AuditHandler struct {
	audits *service.AuditService
}

// NewAuditHandler constructs handler.
func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{audits: auditService}
}

// ListRecent GET /api/admin/audit (staff).
func (h *AuditHandler) ListRecent(c *fiber.Ctx) error {
	entries, err := h.audits.ListRecent(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	views := make([]fiber.Map, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		view := fiber.Map{
			"id":         e.ID,
			"type":       e.Type,
			"message":    e.Message,
			"actor_name": e.ActorName,
			"created_at": e.CreatedAt,
		}
		if e.Target != nil {
			view["target"] = *e.Target
		}
		if len(e.Meta) > 0 {
			view["meta"] = e.Meta
		}
		views = append(views, view)
	}
	return c.JSON(fiber.Map{"data": views})
}

package handlers

import (
	"bufio"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/vuny-labs/marketplace-service/internal/auth"
	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/observability"
	"github.com/vuny-labs/marketplace-service/internal/service"
	"github.com/vuny-labs/marketplace-service/internal/stream"
	apperrors "github.com/vuny-labs/marketplace-service/pkg/util/errorutil"
)

// heartbeatFrame is an SSE comment line; browsers ignore it, proxies see
// traffic and keep the connection alive.
var heartbeatFrame = []byte(":hb\n\n")

// StreamHandler serves the live ticket event streams over SSE. EventSource
// cannot set headers, so these endpoints accept the token as a query
// parameter and authenticate it directly.
type StreamHandler struct {
	tickets     *service.TicketService
	broadcaster *stream.Broadcaster
	authn       *auth.Middleware
	metrics     *observability.Metrics
	heartbeat   time.Duration
	logger      *zap.Logger
}

// NewStreamHandler constructs handler.
func NewStreamHandler(
	tickets *service.TicketService,
	broadcaster *stream.Broadcaster,
	authn *auth.Middleware,
	metrics *observability.Metrics,
	heartbeat time.Duration,
	logger *zap.Logger,
) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		tickets:     tickets,
		broadcaster: broadcaster,
		authn:       authn,
		metrics:     metrics,
		heartbeat:   heartbeat,
		logger:      logger,
	}
}

// TicketEvents GET /api/shop/tickets/:id/events and
// /api/support/tickets/:id/events.
func (h *StreamHandler) TicketEvents(c *fiber.Ctx) error {
	principal, err := h.authenticate(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.AuthorizeSubscribe(c.Context(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	h.serve(c, ticket.ID)
	return nil
}

// AdminFeed GET /api/support/admin/events. Moderators watch new support
// tickets arrive in real time.
func (h *StreamHandler) AdminFeed(c *fiber.Ctx) error {
	principal, err := h.authenticate(c)
	if err != nil {
		return err
	}
	if auth.Level(principal.Role) < auth.Level(domain.RoleModerator) {
		return apperrors.NewForbidden("staff only")
	}
	h.serve(c, stream.AdminSupportFeed)
	return nil
}

// StaffChat GET /api/staff-chat/events. Every staff member shares the one
// chat room topic.
func (h *StreamHandler) StaffChat(c *fiber.Ctx) error {
	principal, err := h.authenticate(c)
	if err != nil {
		return err
	}
	if auth.Level(principal.Role) < auth.Level(domain.RoleModerator) {
		return apperrors.NewForbidden("staff only")
	}
	h.serve(c, stream.StaffChatFeed)
	return nil
}

func (h *StreamHandler) authenticate(c *fiber.Ctx) (*domain.User, error) {
	token := c.Query("token")
	if token == "" {
		return nil, apperrors.NewUnauthorized("token required")
	}
	principal, err := h.authn.Authenticate(c.Context(), token)
	if err != nil {
		return nil, err
	}
	auth.StorePrincipal(c, principal)
	return principal, nil
}

// serve registers a subscription and hands the connection to a stream writer.
// The writer goroutine owns the subscription from here on and unsubscribes
// when the client goes away.
func (h *StreamHandler) serve(c *fiber.Ctx, topic string) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sub := h.broadcaster.Subscribe(topic)
	if h.metrics != nil {
		h.metrics.RecordStreamConnect()
	}
	h.logger.Debug("stream subscriber admitted", zap.String("topic", topic))
	heartbeat := h.heartbeat

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.broadcaster.Unsubscribe(sub)

		connected, err := stream.ConnectedEvent().Frame()
		if err == nil {
			if !writeFrame(w, connected) {
				return
			}
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case frame, ok := <-sub.C:
				if !ok {
					// Dropped by the broadcaster (slow consumer).
					return
				}
				if !writeFrame(w, frame) {
					return
				}
			case <-ticker.C:
				if !writeFrame(w, heartbeatFrame) {
					return
				}
			}
		}
	}))
}

// writeFrame flushes one frame; a false return means the client disconnected.
func writeFrame(w *bufio.Writer, frame []byte) bool {
	if _, err := w.Write(frame); err != nil {
		return false
	}
	return w.Flush() == nil
}

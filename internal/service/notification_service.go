package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vuny-labs/marketplace-service/internal/auth"
	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/events"
	"github.com/vuny-labs/marketplace-service/internal/repository"
	apperrors "github.com/vuny-labs/marketplace-service/pkg/util/errorutil"
)

// NotificationService delivers in-app notifications and mirrors new support
// tickets to an external webhook. It is driven by lifecycle events.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	webhookURL    string
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewNotificationService constructs the service. webhookURL may be empty to
// disable the mirror.
func NewNotificationService(
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	webhookURL string,
	logger *zap.Logger,
) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: notifications,
		users:         users,
		webhookURL:    webhookURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
	}
}

// Notify persists a notification for one user.
func (s *NotificationService) Notify(ctx context.Context, userID string, kind domain.NotificationType, message string) error {
	n := &domain.Notification{UserID: userID, Type: kind, Message: message}
	if err := s.notifications.Create(ctx, n); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// ListForUser returns the recent notifications for a user.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	items, err := s.notifications.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// MarkRead marks one notification as read for its owner.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	if err := s.notifications.MarkRead(ctx, userID, notificationID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// MarkAllRead marks every notification for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.notifications.MarkAllRead(ctx, userID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// HandleTicketCreated notifies on-duty staff about the new ticket and, for
// support tickets, posts the webhook embed.
func (s *NotificationService) HandleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}

	label := "purchase"
	if payload.Kind == domain.TicketKindSupport {
		label = "support"
	}
	message := fmt.Sprintf("New %s ticket from %s: %s", label, payload.OpenerName, payload.Subject)
	s.notifyStaff(ctx, message, payload.OpenerID)

	if payload.Kind == domain.TicketKindSupport {
		s.postWebhook(ctx, payload.OpenerName, payload.Subject, event.TicketID)
	}
	return nil
}

// HandleTicketMessageAdded notifies the opener when staff reply.
func (s *NotificationService) HandleTicketMessageAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketMessageAddedPayload)
	if !ok || !payload.SenderStaff || event.Actor.UserID == payload.OpenerID {
		return nil
	}
	message := fmt.Sprintf("New reply on your ticket %q", payload.Subject)
	if err := s.Notify(ctx, payload.OpenerID, domain.NotificationAdminMessage, message); err != nil {
		s.logger.Warn("notify opener", zap.String("ticket_id", event.TicketID), zap.Error(err))
	}
	return nil
}

// HandleTicketSettled notifies the buyer that their order went through.
func (s *NotificationService) HandleTicketSettled(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketSettledPayload)
	if !ok {
		return nil
	}
	message := fmt.Sprintf("Your order %q (%dx) has been completed.", payload.Subject, payload.Quantity)
	if err := s.Notify(ctx, payload.OpenerID, domain.NotificationAdminMessage, message); err != nil {
		s.logger.Warn("notify buyer", zap.String("ticket_id", event.TicketID), zap.Error(err))
	}
	return nil
}

// HandleTicketClosed notifies the opener when staff close their ticket.
func (s *NotificationService) HandleTicketClosed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketClosedPayload)
	if !ok || !payload.ClosedByStaff {
		return nil
	}
	message := fmt.Sprintf("Your ticket %q has been closed.", payload.Subject)
	if payload.Reason != "" {
		message = fmt.Sprintf("Your ticket %q has been closed: %s", payload.Subject, payload.Reason)
	}
	if err := s.Notify(ctx, payload.OpenerID, domain.NotificationAdminMessage, message); err != nil {
		s.logger.Warn("notify opener", zap.String("ticket_id", event.TicketID), zap.Error(err))
	}
	return nil
}

func (s *NotificationService) notifyStaff(ctx context.Context, message, excludeUserID string) {
	staff, err := s.users.ListByMinRole(ctx, auth.RolesAtOrAbove(domain.RoleModerator))
	if err != nil {
		s.logger.Warn("list staff for notification", zap.Error(err))
		return
	}
	batch := make([]domain.Notification, 0, len(staff))
	for i := range staff {
		if staff[i].ID == excludeUserID {
			continue
		}
		batch = append(batch, domain.Notification{
			UserID:  staff[i].ID,
			Type:    domain.NotificationAdminMessage,
			Message: message,
		})
	}
	if len(batch) == 0 {
		return
	}
	if err := s.notifications.CreateMany(ctx, batch); err != nil {
		s.logger.Warn("persist staff notifications", zap.Error(err))
	}
}

type webhookEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Fields      []webhookEmbedField `json:"fields,omitempty"`
	Timestamp   string              `json:"timestamp"`
}

type webhookEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type webhookPayload struct {
	Embeds []webhookEmbed `json:"embeds"`
}

func (s *NotificationService) postWebhook(ctx context.Context, openerName, subject, ticketID string) {
	if s.webhookURL == "" {
		return
	}
	payload := webhookPayload{
		Embeds: []webhookEmbed{{
			Title:       "New support ticket",
			Description: subject,
			Color:       0x5865F2,
			Fields: []webhookEmbedField{
				{Name: "Opened by", Value: openerName, Inline: true},
				{Name: "Ticket", Value: ticketID, Inline: true},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("post webhook", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.logger.Warn("webhook rejected", zap.Int("status", resp.StatusCode))
	}
}

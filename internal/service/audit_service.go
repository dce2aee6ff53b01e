package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/events"
	"github.com/vuny-labs/marketplace-service/internal/repository"
	apperrors "github.com/vuny-labs/marketplace-service/pkg/util/errorutil"
)

// AuditService records a trail of staff-visible actions. Ticket entries are
// written from lifecycle events; administrative entries are recorded directly.
type AuditService struct {
	audits repository.AuditLogRepository
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(audits repository.AuditLogRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{audits: audits, logger: logger}
}

// Record persists one audit entry.
func (s *AuditService) Record(ctx context.Context, entry domain.AuditEntry) error {
	if err := s.audits.Create(ctx, &entry); err != nil {
		s.logger.Warn("write audit entry", zap.String("type", string(entry.Type)), zap.Error(err))
		return apperrors.MapError(err)
	}
	return nil
}

// ListRecent returns the newest audit entries.
func (s *AuditService) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	entries, err := s.audits.ListRecent(ctx, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// HandleTicketCreated records a "created" entry.
func (s *AuditService) HandleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	message := fmt.Sprintf("%s opened a ticket: %s", event.Actor.Username, payload.Subject)
	if payload.Kind == domain.TicketKindCommerce {
		message = fmt.Sprintf("%s ordered %dx %s", event.Actor.Username, payload.Quantity, payload.Subject)
	}
	return s.Record(ctx, domain.AuditEntry{
		Type:      domain.AuditTicketCreated,
		Message:   message,
		ActorID:   &event.Actor.UserID,
		ActorName: event.Actor.Username,
		Target:    &event.TicketID,
		Meta:      map[string]any{"kind": string(payload.Kind)},
	})
}

// HandleTicketSettled records a "settled" entry.
func (s *AuditService) HandleTicketSettled(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketSettledPayload)
	if !ok {
		return nil
	}
	return s.Record(ctx, domain.AuditEntry{
		Type:      domain.AuditTicketSettled,
		Message:   fmt.Sprintf("%s completed the sale of %dx %s", event.Actor.Username, payload.Quantity, payload.Subject),
		ActorID:   &event.Actor.UserID,
		ActorName: event.Actor.Username,
		Target:    &event.TicketID,
		Meta: map[string]any{
			"quantity":    payload.Quantity,
			"total_price": payload.TotalPrice,
			"buyer_id":    payload.OpenerID,
		},
	})
}

// HandleTicketClosed records a "closed" entry.
func (s *AuditService) HandleTicketClosed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketClosedPayload)
	if !ok {
		return nil
	}
	meta := map[string]any{"kind": string(payload.Kind)}
	if payload.Reason != "" {
		meta["reason"] = payload.Reason
	}
	return s.Record(ctx, domain.AuditEntry{
		Type:      domain.AuditTicketClosed,
		Message:   fmt.Sprintf("%s closed ticket %q", event.Actor.Username, payload.Subject),
		ActorID:   &event.Actor.UserID,
		ActorName: event.Actor.Username,
		Target:    &event.TicketID,
		Meta:      meta,
	})
}

// HandleTicketPurged records a hard delete of a support ticket.
func (s *AuditService) HandleTicketPurged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketPurgedPayload)
	if !ok {
		return nil
	}
	return s.Record(ctx, domain.AuditEntry{
		Type:      domain.AuditTicketPurged,
		Message:   fmt.Sprintf("%s permanently deleted support ticket %q", event.Actor.Username, payload.Subject),
		ActorID:   &event.Actor.UserID,
		ActorName: event.Actor.Username,
		Target:    &event.TicketID,
	})
}

// HandleTicketMessageAdded records staff replies on the trail.
func (s *AuditService) HandleTicketMessageAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketMessageAddedPayload)
	if !ok || !payload.SenderStaff {
		return nil
	}
	return s.Record(ctx, domain.AuditEntry{
		Type:      domain.AuditTicketMessage,
		Message:   fmt.Sprintf("%s replied on ticket %q", event.Actor.Username, payload.Subject),
		ActorID:   &event.Actor.UserID,
		ActorName: event.Actor.Username,
		Target:    &event.TicketID,
		Meta:      map[string]any{"message_id": payload.MessageID},
	})
}

package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/observability"
	"github.com/vuny-labs/marketplace-service/internal/repository"
	"github.com/vuny-labs/marketplace-service/internal/stream"
	apperrors "github.com/vuny-labs/marketplace-service/pkg/util/errorutil"
)

// staffChatHistory bounds how much transcript a joining client receives.
const staffChatHistory = 100

// StaffMessagePayload is a staff chat message with its sender resolved.
type StaffMessagePayload struct {
	ID        string            `json:"id"`
	Sender    domain.PublicUser `json:"sender"`
	Content   string            `json:"content"`
	ImageURL  *string           `json:"image_url,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// StaffChatService runs the moderators-only chat room: a persisted transcript
// fanned out live on a single shared stream topic.
type StaffChatService struct {
	messages    repository.StaffMessageRepository
	users       repository.UserRepository
	broadcaster *stream.Broadcaster
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewStaffChatService constructs the service.
func NewStaffChatService(
	messages repository.StaffMessageRepository,
	users repository.UserRepository,
	broadcaster *stream.Broadcaster,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *StaffChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffChatService{
		messages:    messages,
		users:       users,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger,
	}
}

// List returns the recent transcript, oldest first.
func (s *StaffChatService) List(ctx context.Context) ([]StaffMessagePayload, error) {
	msgs, err := s.messages.ListRecent(ctx, staffChatHistory)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	senders := make(map[string]domain.PublicUser)
	result := make([]StaffMessagePayload, 0, len(msgs))
	for i := range msgs {
		sender, ok := senders[msgs[i].SenderID]
		if !ok {
			sender = domain.PublicUser{ID: msgs[i].SenderID}
			if user, err := s.users.GetByID(ctx, msgs[i].SenderID); err == nil {
				sender = user.Public()
			}
			senders[msgs[i].SenderID] = sender
		}
		result = append(result, staffMessagePayload(&msgs[i], sender))
	}
	return result, nil
}

// Post persists a message and fans it out to every connected staff member.
func (s *StaffChatService) Post(ctx context.Context, sender *domain.User, content string, imageURL *string) (*StaffMessagePayload, error) {
	content = strings.TrimSpace(content)
	if content == "" && imageURL == nil {
		return nil, apperrors.NewValidationError("message is empty", nil)
	}

	msg := &domain.StaffMessage{
		SenderID: sender.ID,
		Content:  content,
		ImageURL: imageURL,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	payload := staffMessagePayload(msg, sender.Public())
	s.broadcast(stream.MessageEvent(payload))
	return &payload, nil
}

// Clear wipes the transcript and tells connected clients to reset.
func (s *StaffChatService) Clear(ctx context.Context, actor *domain.User) error {
	if err := s.messages.DeleteAll(ctx); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("staff chat cleared", zap.String("actor_id", actor.ID))
	s.broadcast(stream.ClearEvent())
	return nil
}

func (s *StaffChatService) broadcast(event stream.Event) {
	s.broadcaster.Publish(stream.StaffChatFeed, event)
	s.metrics.RecordStreamPublish()
}

func staffMessagePayload(msg *domain.StaffMessage, sender domain.PublicUser) StaffMessagePayload {
	return StaffMessagePayload{
		ID:        msg.ID,
		Sender:    sender,
		Content:   msg.Content,
		ImageURL:  msg.ImageURL,
		CreatedAt: msg.CreatedAt,
	}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vuny-labs/marketplace-service/internal/auth"
	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/repository"
	apperrors "github.com/vuny-labs/marketplace-service/pkg/util/errorutil"
)

// UserService covers staff actions on accounts: role grants and bans. Both
// are guarded by the role hierarchy, which protects equal and higher ranks.
type UserService struct {
	users         repository.UserRepository
	notifications *NotificationService
	audits        *AuditService
	logger        *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, notifications *NotificationService, audits *AuditService, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, notifications: notifications, audits: audits, logger: logger}
}

// Get returns one user by id.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// GrantRole assigns a role to a target user. The actor must outrank the
// target, and may grant at most one level below their own rank.
func (s *UserService) GrantRole(ctx context.Context, actor *domain.User, targetID string, role domain.Role) (*domain.User, error) {
	if !auth.KnownRole(role) {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	target, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !auth.CanAct(actor.Role, target.Role) {
		return nil, apperrors.NewForbidden("cannot act on an equal or higher rank")
	}
	if auth.Level(role) > auth.Level(auth.MaxGrantable(actor.Role)) {
		return nil, apperrors.NewForbidden("role exceeds what you may grant")
	}

	if err := s.users.UpdateRole(ctx, target.ID, role); err != nil {
		return nil, apperrors.MapError(err)
	}
	previous := target.Role
	target.Role = role

	s.recordAudit(ctx, domain.AuditEntry{
		Type:      domain.AuditRoleGranted,
		Message:   fmt.Sprintf("%s granted %s to %s", actor.Username, role, target.Username),
		ActorID:   &actor.ID,
		ActorName: actor.Username,
		Target:    &target.ID,
		Meta:      map[string]any{"previous": string(previous), "granted": string(role)},
	})
	return target, nil
}

// Ban blocks an account. Banned users cannot log in or hold open streams.
func (s *UserService) Ban(ctx context.Context, actor *domain.User, targetID, reason string) (*domain.User, error) {
	target, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !auth.CanAct(actor.Role, target.Role) {
		return nil, apperrors.NewForbidden("cannot act on an equal or higher rank")
	}
	if target.Banned {
		return nil, apperrors.NewConflict("user is already banned", nil)
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	if err := s.users.SetBanned(ctx, target.ID, true, reasonPtr, &actor.ID); err != nil {
		return nil, apperrors.MapError(err)
	}
	target.Banned = true
	target.BanReason = reasonPtr

	message := "Your account has been suspended."
	if reason != "" {
		message = fmt.Sprintf("Your account has been suspended: %s", reason)
	}
	if err := s.notifications.Notify(ctx, target.ID, domain.NotificationBan, message); err != nil {
		s.logger.Warn("notify banned user", zap.String("user_id", target.ID), zap.Error(err))
	}
	s.recordAudit(ctx, domain.AuditEntry{
		Type:      domain.AuditUserBanned,
		Message:   fmt.Sprintf("%s banned %s", actor.Username, target.Username),
		ActorID:   &actor.ID,
		ActorName: actor.Username,
		Target:    &target.ID,
		Meta:      map[string]any{"reason": reason},
	})
	return target, nil
}

// Unban restores a banned account.
func (s *UserService) Unban(ctx context.Context, actor *domain.User, targetID string) (*domain.User, error) {
	target, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !auth.CanAct(actor.Role, target.Role) {
		return nil, apperrors.NewForbidden("cannot act on an equal or higher rank")
	}
	if !target.Banned {
		return nil, apperrors.NewConflict("user is not banned", nil)
	}

	if err := s.users.SetBanned(ctx, target.ID, false, nil, nil); err != nil {
		return nil, apperrors.MapError(err)
	}
	target.Banned = false
	target.BanReason = nil

	if err := s.notifications.Notify(ctx, target.ID, domain.NotificationUnban, "Your account has been restored."); err != nil {
		s.logger.Warn("notify unbanned user", zap.String("user_id", target.ID), zap.Error(err))
	}
	s.recordAudit(ctx, domain.AuditEntry{
		Type:      domain.AuditUserUnbanned,
		Message:   fmt.Sprintf("%s unbanned %s", actor.Username, target.Username),
		ActorID:   &actor.ID,
		ActorName: actor.Username,
		Target:    &target.ID,
	})
	return target, nil
}

func (s *UserService) recordAudit(ctx context.Context, entry domain.AuditEntry) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Record(ctx, entry); err != nil {
		s.logger.Warn("record audit entry", zap.String("type", string(entry.Type)), zap.Error(err))
	}
}

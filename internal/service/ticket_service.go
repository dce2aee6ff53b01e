package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/vuny-labs/marketplace-service/internal/auth"
	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/events"
	"github.com/vuny-labs/marketplace-service/internal/observability"
	"github.com/vuny-labs/marketplace-service/internal/repository"
	"github.com/vuny-labs/marketplace-service/internal/stream"
	apperrors "github.com/vuny-labs/marketplace-service/pkg/util/errorutil"
)

const uniqueViolationCode = "23505"

// allowedTransitions is the ticket state machine. Anything not listed here is
// rejected with INVALID_TRANSITION.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:   {domain.TicketStatusSold, domain.TicketStatusClosed},
	domain.TicketStatusSold:   {},
	domain.TicketStatusClosed: {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// MessagePayload is a transcript message with its sender resolved, as served
// over the API and fanned out on the event stream.
type MessagePayload struct {
	ID        string            `json:"id"`
	Seq       int               `json:"seq"`
	Sender    domain.PublicUser `json:"sender"`
	Content   string            `json:"content"`
	ImageURL  *string           `json:"image_url,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// TicketPayload is the ticket view served over the API and the admin feed.
type TicketPayload struct {
	ID          string              `json:"id"`
	Kind        domain.TicketKind   `json:"kind"`
	Status      domain.TicketStatus `json:"status"`
	Opener      domain.PublicUser   `json:"opener"`
	ProductID   *string             `json:"product_id,omitempty"`
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Quantity    int                 `json:"quantity,omitempty"`
	TotalPrice  float64             `json:"total_price,omitempty"`
	CloseReason *string             `json:"close_reason,omitempty"`
	ClosedAt    *time.Time          `json:"closed_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// TicketService coordinates the ticket lifecycle: creation with the
// one-open-ticket invariant, transcript appends, and the terminal settle and
// close transitions with their side effects.
type TicketService struct {
	tickets     repository.TicketRepository
	products    repository.ProductRepository
	users       repository.UserRepository
	counts      *repository.TicketCounterCache
	broadcaster *stream.Broadcaster
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	locks       *keyLock
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	ProductRepo  repository.ProductRepository
	UserRepo     repository.UserRepository
	CounterCache *repository.TicketCounterCache
	Broadcaster  *stream.Broadcaster
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		products:    deps.ProductRepo,
		users:       deps.UserRepo,
		counts:      deps.CounterCache,
		broadcaster: deps.Broadcaster,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		locks:       newKeyLock(),
	}
}

func (s *TicketService) broadcast(topic string, event stream.Event) {
	s.broadcaster.Publish(topic, event)
	s.metrics.RecordStreamPublish()
}

// CreateCommerceTicket opens a purchase ticket for a product. If the opener
// already has an open ticket for that product, the existing ticket is
// returned instead of creating a duplicate.
func (s *TicketService) CreateCommerceTicket(ctx context.Context, opener *domain.User, productID string, quantity int) (*domain.Ticket, []MessagePayload, error) {
	if quantity <= 0 {
		quantity = 1
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("product", map[string]any{"product_id": productID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	if !product.Active {
		return nil, nil, apperrors.NewNotFound("product", map[string]any{"product_id": productID})
	}
	if product.Quantity < quantity {
		return nil, nil, apperrors.NewValidationError("insufficient stock", map[string]any{
			"available": product.Quantity,
			"requested": quantity,
		})
	}

	key := "create:" + opener.ID + ":" + productID
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if existing, err := s.tickets.GetOpenCommerce(ctx, opener.ID, productID); err == nil {
		msgs, msgErr := s.messagesWithSenders(ctx, existing.ID)
		if msgErr != nil {
			return nil, nil, msgErr
		}
		return existing, msgs, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperrors.MapError(err)
	}

	ticket := &domain.Ticket{
		Kind:       domain.TicketKindCommerce,
		OpenerID:   opener.ID,
		ProductID:  &productID,
		Title:      product.Title,
		Quantity:   quantity,
		TotalPrice: product.Price * float64(quantity),
		Status:     domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		if existing, ok := s.recoverExisting(ctx, err, opener.ID, productID); ok {
			msgs, msgErr := s.messagesWithSenders(ctx, existing.ID)
			if msgErr != nil {
				return nil, nil, msgErr
			}
			return existing, msgs, nil
		}
		return nil, nil, apperrors.MapError(err)
	}

	intro := fmt.Sprintf("New order\n\nProduct: %s\nQuantity: %dx\nTotal: %.2f\n\nHello, I would like to buy this product.",
		product.Title, quantity, ticket.TotalPrice)
	first := &domain.Message{TicketID: ticket.ID, SenderID: opener.ID, Content: intro}
	if err := s.tickets.AppendMessage(ctx, first); err != nil {
		s.logger.Error("append opening message", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actorOf(opener),
		Payload: events.TicketCreatedPayload{
			Kind:       ticket.Kind,
			OpenerID:   opener.ID,
			OpenerName: opener.Username,
			Subject:    product.Title,
			Quantity:   quantity,
			TotalPrice: ticket.TotalPrice,
		},
	})
	s.counts.Invalidate(ctx, domain.TicketKindCommerce)

	return ticket, []MessagePayload{messagePayload(first, opener.Public())}, nil
}

// CreateSupportTicket opens a support request. An existing open ticket with
// the same title by the same opener is returned instead of a duplicate.
func (s *TicketService) CreateSupportTicket(ctx context.Context, opener *domain.User, title, description string) (*domain.Ticket, []MessagePayload, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, nil, apperrors.NewValidationError("title and description required", nil)
	}

	key := "create:" + opener.ID + ":" + title
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if existing, err := s.tickets.GetOpenSupport(ctx, opener.ID, title); err == nil {
		msgs, msgErr := s.messagesWithSenders(ctx, existing.ID)
		if msgErr != nil {
			return nil, nil, msgErr
		}
		return existing, msgs, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperrors.MapError(err)
	}

	ticket := &domain.Ticket{
		Kind:        domain.TicketKindSupport,
		OpenerID:    opener.ID,
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	first := &domain.Message{
		TicketID: ticket.ID,
		SenderID: opener.ID,
		Content:  fmt.Sprintf("New ticket: %s\n\n%s", title, description),
	}
	if err := s.tickets.AppendMessage(ctx, first); err != nil {
		s.logger.Error("append opening message", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actorOf(opener),
		Payload: events.TicketCreatedPayload{
			Kind:       ticket.Kind,
			OpenerID:   opener.ID,
			OpenerName: opener.Username,
			Subject:    title,
		},
	})
	s.counts.Invalidate(ctx, domain.TicketKindSupport)
	s.broadcast(stream.AdminSupportFeed, stream.NewTicketEvent(s.ticketPayload(ticket, opener.Public())))

	return ticket, []MessagePayload{messagePayload(first, opener.Public())}, nil
}

// GetTicket fetches a ticket and its transcript, enforcing read access.
func (s *TicketService) GetTicket(ctx context.Context, principal *domain.User, ticketID string) (*domain.Ticket, []MessagePayload, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if decision := auth.Authorize(principal, ticket, auth.ActionRead); !decision.Allowed {
		return nil, nil, apperrors.NewForbidden(decision.Reason)
	}
	msgs, err := s.messagesWithSenders(ctx, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, msgs, nil
}

// AuthorizeSubscribe checks stream admission for a ticket and returns it.
func (s *TicketService) AuthorizeSubscribe(ctx context.Context, principal *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if decision := auth.Authorize(principal, ticket, auth.ActionSubscribe); !decision.Allowed {
		return nil, apperrors.NewForbidden(decision.Reason)
	}
	return ticket, nil
}

// AppendMessage adds a message to an open ticket and fans it out to stream
// subscribers.
func (s *TicketService) AppendMessage(ctx context.Context, sender *domain.User, ticketID, content string, imageURL *string) (*MessagePayload, error) {
	content = strings.TrimSpace(content)
	if content == "" && imageURL == nil {
		return nil, apperrors.NewValidationError("message is empty", nil)
	}

	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if decision := auth.Authorize(sender, ticket, auth.ActionAppend); !decision.Allowed {
		if decision.Reason == auth.ReasonTicketNotOpen {
			return nil, apperrors.NewTicketNotOpen()
		}
		return nil, apperrors.NewForbidden(decision.Reason)
	}

	msg := &domain.Message{
		TicketID: ticket.ID,
		SenderID: sender.ID,
		Content:  content,
		ImageURL: imageURL,
	}
	if err := s.tickets.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTicketNotOpen()
		}
		return nil, apperrors.MapError(err)
	}

	payload := messagePayload(msg, sender.Public())
	s.broadcast(ticket.ID, stream.MessageEvent(payload))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    actorOf(sender),
		Payload: events.TicketMessageAddedPayload{
			Kind:        ticket.Kind,
			MessageID:   msg.ID,
			OpenerID:    ticket.OpenerID,
			Subject:     ticket.Title,
			SenderStaff: auth.Level(sender.Role) >= auth.Level(domain.RoleModerator),
		},
	})
	return &payload, nil
}

// Settle finalizes a commerce sale: stock is deducted (floored at zero), the
// opener is notified, an audit entry is written, a terminal status event is
// broadcast, and the ticket record is removed.
func (s *TicketService) Settle(ctx context.Context, actor *domain.User, ticketID string) error {
	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if decision := auth.Authorize(actor, ticket, auth.ActionSettle); !decision.Allowed {
		return apperrors.NewForbidden(decision.Reason)
	}
	if ticket.Kind != domain.TicketKindCommerce || !isValidTransition(ticket.Status, domain.TicketStatusSold) {
		return apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusSold))
	}

	// Status CAS: a racing transition loses here and reports stale state.
	if err := s.tickets.Close(ctx, ticket.ID, domain.TicketStatusSold, actor.ID, nil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewInvalidTransition(string(domain.TicketStatusSold), string(domain.TicketStatusSold))
		}
		return apperrors.MapError(err)
	}

	if ticket.ProductID != nil {
		if _, err := s.products.DeductStock(ctx, *ticket.ProductID, ticket.Quantity); err != nil {
			s.logger.Error("deduct stock", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketSettled,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload: events.TicketSettledPayload{
			OpenerID:   ticket.OpenerID,
			Subject:    ticket.Title,
			Quantity:   ticket.Quantity,
			TotalPrice: ticket.TotalPrice,
		},
	})
	s.broadcast(ticket.ID, stream.StatusEvent(domain.TicketStatusSold, ""))

	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		s.logger.Error("delete settled ticket", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	s.counts.Invalidate(ctx, ticket.Kind)
	return nil
}

// Close ends a ticket. Commerce tickets are removed; support tickets are
// retained with their close fields set.
func (s *TicketService) Close(ctx context.Context, actor *domain.User, ticketID string, reason string) error {
	reason = strings.TrimSpace(reason)

	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if decision := auth.Authorize(actor, ticket, auth.ActionClose); !decision.Allowed {
		return apperrors.NewForbidden(decision.Reason)
	}
	if !isValidTransition(ticket.Status, domain.TicketStatusClosed) {
		return apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusClosed))
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	if err := s.tickets.Close(ctx, ticket.ID, domain.TicketStatusClosed, actor.ID, reasonPtr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewInvalidTransition(string(domain.TicketStatusClosed), string(domain.TicketStatusClosed))
		}
		return apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload: events.TicketClosedPayload{
			Kind:          ticket.Kind,
			OpenerID:      ticket.OpenerID,
			Subject:       ticket.Title,
			Reason:        reason,
			ClosedByStaff: actor.ID != ticket.OpenerID,
		},
	})
	s.broadcast(ticket.ID, stream.StatusEvent(domain.TicketStatusClosed, reason))

	if ticket.Kind == domain.TicketKindCommerce {
		if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
			s.logger.Error("delete closed ticket", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	s.counts.Invalidate(ctx, ticket.Kind)
	return nil
}

// Purge permanently removes a support ticket, whatever its status. Staff
// only; commerce tickets are removed by their own terminal transitions and
// cannot be purged.
func (s *TicketService) Purge(ctx context.Context, actor *domain.User, ticketID string) error {
	if actor == nil || auth.Level(actor.Role) < auth.Level(domain.RoleModerator) {
		return apperrors.NewForbidden("moderator role required")
	}

	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.Kind != domain.TicketKindSupport {
		return apperrors.NewValidationError("only support tickets can be purged", nil)
	}

	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		return apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketPurged,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload:  events.TicketPurgedPayload{Subject: ticket.Title},
	})
	s.counts.Invalidate(ctx, ticket.Kind)
	return nil
}

// ListMine returns the principal's tickets of a kind, newest first.
func (s *TicketService) ListMine(ctx context.Context, principal *domain.User, kind domain.TicketKind) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByOpener(ctx, kind, principal.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// List returns all tickets of a kind, optionally filtered by status.
func (s *TicketService) List(ctx context.Context, kind domain.TicketKind, status *domain.TicketStatus) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, kind, status)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// CountOpen returns the open-ticket badge count, served from cache when warm.
func (s *TicketService) CountOpen(ctx context.Context, kind domain.TicketKind) (int, error) {
	if count, ok := s.counts.Get(ctx, kind); ok {
		return count, nil
	}
	count, err := s.tickets.CountOpen(ctx, kind)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	s.counts.Set(ctx, kind, count)
	return count, nil
}

// Payload renders the API view of a ticket, resolving the opener.
func (s *TicketService) Payload(ctx context.Context, ticket *domain.Ticket) TicketPayload {
	opener := domain.PublicUser{ID: ticket.OpenerID}
	if user, err := s.users.GetByID(ctx, ticket.OpenerID); err == nil {
		opener = user.Public()
	}
	return s.ticketPayload(ticket, opener)
}

func (s *TicketService) ticketPayload(ticket *domain.Ticket, opener domain.PublicUser) TicketPayload {
	return TicketPayload{
		ID:          ticket.ID,
		Kind:        ticket.Kind,
		Status:      ticket.Status,
		Opener:      opener,
		ProductID:   ticket.ProductID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Quantity:    ticket.Quantity,
		TotalPrice:  ticket.TotalPrice,
		CloseReason: ticket.CloseReason,
		ClosedAt:    ticket.ClosedAt,
		CreatedAt:   ticket.CreatedAt,
	}
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) messagesWithSenders(ctx context.Context, ticketID string) ([]MessagePayload, error) {
	msgs, err := s.tickets.ListMessages(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	senders := make(map[string]domain.PublicUser)
	result := make([]MessagePayload, 0, len(msgs))
	for i := range msgs {
		sender, ok := senders[msgs[i].SenderID]
		if !ok {
			sender = domain.PublicUser{ID: msgs[i].SenderID}
			if user, err := s.users.GetByID(ctx, msgs[i].SenderID); err == nil {
				sender = user.Public()
			}
			senders[msgs[i].SenderID] = sender
		}
		result = append(result, messagePayload(&msgs[i], sender))
	}
	return result, nil
}

func (s *TicketService) recoverExisting(ctx context.Context, err error, openerID, productID string) (*domain.Ticket, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return nil, false
	}
	existing, lookupErr := s.tickets.GetOpenCommerce(ctx, openerID, productID)
	if lookupErr != nil {
		return nil, false
	}
	return existing, true
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func actorOf(user *domain.User) events.Actor {
	return events.Actor{UserID: user.ID, Username: user.Username, Role: user.Role}
}

func messagePayload(msg *domain.Message, sender domain.PublicUser) MessagePayload {
	return MessagePayload{
		ID:        msg.ID,
		Seq:       msg.Seq,
		Sender:    sender,
		Content:   msg.Content,
		ImageURL:  msg.ImageURL,
		CreatedAt: msg.CreatedAt,
	}
}

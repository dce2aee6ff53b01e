package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/repository"
)

// In-memory repositories mirroring the SQL behavior the services rely on:
// the one-open-ticket unique constraint, the open-status guard on appends
// and closes, and the zero floor on stock deduction.

type fakeTicketRepo struct {
	mu       sync.Mutex
	tickets  map[string]*domain.Ticket
	messages map[string][]domain.Message
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:  make(map[string]*domain.Ticket),
		messages: make(map[string][]domain.Message),
	}
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.tickets {
		if existing.Status != domain.TicketStatusOpen ||
			existing.Kind != ticket.Kind || existing.OpenerID != ticket.OpenerID {
			continue
		}
		switch ticket.Kind {
		case domain.TicketKindCommerce:
			if existing.ProductID != nil && ticket.ProductID != nil && *existing.ProductID == *ticket.ProductID {
				return &pgconn.PgError{Code: "23505"}
			}
		case domain.TicketKindSupport:
			if existing.Title == ticket.Title {
				return &pgconn.PgError{Code: "23505"}
			}
		}
	}
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	f.tickets[ticket.ID] = &copied
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) GetOpenCommerce(_ context.Context, openerID, productID string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ticket := range f.tickets {
		if ticket.Kind == domain.TicketKindCommerce && ticket.Status == domain.TicketStatusOpen &&
			ticket.OpenerID == openerID && ticket.ProductID != nil && *ticket.ProductID == productID {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) GetOpenSupport(_ context.Context, openerID, title string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ticket := range f.tickets {
		if ticket.Kind == domain.TicketKindSupport && ticket.Status == domain.TicketStatusOpen &&
			ticket.OpenerID == openerID && ticket.Title == title {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) ListByOpener(_ context.Context, kind domain.TicketKind, openerID string) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range f.tickets {
		if ticket.Kind == kind && ticket.OpenerID == openerID {
			result = append(result, *ticket)
		}
	}
	return result, nil
}

func (f *fakeTicketRepo) List(_ context.Context, kind domain.TicketKind, status *domain.TicketStatus) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range f.tickets {
		if ticket.Kind != kind {
			continue
		}
		if status != nil && ticket.Status != *status {
			continue
		}
		result = append(result, *ticket)
	}
	return result, nil
}

func (f *fakeTicketRepo) CountOpen(_ context.Context, kind domain.TicketKind) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, ticket := range f.tickets {
		if ticket.Kind == kind && ticket.Status == domain.TicketStatusOpen {
			count++
		}
	}
	return count, nil
}

func (f *fakeTicketRepo) AppendMessage(_ context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[msg.TicketID]
	if !ok || ticket.Status != domain.TicketStatusOpen {
		return pgx.ErrNoRows
	}
	ticket.MessageSeq++
	msg.Seq = ticket.MessageSeq
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now()
	f.messages[msg.TicketID] = append(f.messages[msg.TicketID], *msg)
	return nil
}

func (f *fakeTicketRepo) ListMessages(_ context.Context, ticketID string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message{}, f.messages[ticketID]...), nil
}

func (f *fakeTicketRepo) Close(_ context.Context, id string, status domain.TicketStatus, closedByID string, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok || ticket.Status != domain.TicketStatusOpen {
		return pgx.ErrNoRows
	}
	now := time.Now()
	ticket.Status = status
	ticket.ClosedByID = &closedByID
	ticket.CloseReason = reason
	ticket.ClosedAt = &now
	ticket.UpdatedAt = now
	return nil
}

func (f *fakeTicketRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tickets, id)
	delete(f.messages, id)
	return nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[string]*domain.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[string]*domain.Product)}
}

func (f *fakeProductRepo) put(p domain.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	f.products[p.ID] = &p
}

func (f *fakeProductRepo) Create(_ context.Context, product *domain.Product) error {
	product.ID = uuid.NewString()
	product.CreatedAt = time.Now()
	f.put(*product)
	return nil
}

func (f *fakeProductRepo) Update(_ context.Context, product *domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[product.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *product
	f.products[product.ID] = &copied
	return nil
}

func (f *fakeProductRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	product, ok := f.products[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *product
	return &copied, nil
}

func (f *fakeProductRepo) ListActive(_ context.Context, _ repository.ProductFilter) ([]domain.Product, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Product
	for _, product := range f.products {
		if product.Active {
			result = append(result, *product)
		}
	}
	return result, len(result), nil
}

func (f *fakeProductRepo) Deactivate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	product, ok := f.products[id]
	if !ok {
		return pgx.ErrNoRows
	}
	product.Active = false
	return nil
}

func (f *fakeProductRepo) DeductStock(_ context.Context, id string, qty int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	product, ok := f.products[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	product.Quantity -= qty
	if product.Quantity < 0 {
		product.Quantity = 0
	}
	return product.Quantity, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, user := range users {
		copied := *user
		repo.users[user.ID] = &copied
	}
	return repo
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) UpdateRole(_ context.Context, id string, role domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Role = role
	return nil
}

func (f *fakeUserRepo) SetBanned(_ context.Context, id string, banned bool, reason, bannedByID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Banned = banned
	user.BanReason = reason
	user.BannedByID = bannedByID
	return nil
}

func (f *fakeUserRepo) ListByMinRole(_ context.Context, roles []domain.Role) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	allowed := make(map[domain.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	var result []domain.User
	for _, user := range f.users {
		if allowed[user.Role] && !user.Banned {
			result = append(result, *user)
		}
	}
	return result, nil
}

func (f *fakeUserRepo) TouchLastSeen(_ context.Context, _ string) error {
	return nil
}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now()
	f.items = append(f.items, *n)
	return nil
}

func (f *fakeNotificationRepo) CreateMany(ctx context.Context, notifications []domain.Notification) error {
	for i := range notifications {
		if err := f.Create(ctx, &notifications[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeNotificationRepo) ListByUser(_ context.Context, userID string, _ int) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Notification
	for _, n := range f.items {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id && f.items[i].UserID == userID {
			f.items[i].Read = true
		}
	}
	return nil
}

func (f *fakeNotificationRepo) MarkAllRead(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].UserID == userID {
			f.items[i].Read = true
		}
	}
	return nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (f *fakeAuditRepo) Create(_ context.Context, entry *domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now()
	if entry.ActorName == "" {
		entry.ActorName = "system"
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) ListRecent(_ context.Context, _ int) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AuditEntry{}, f.entries...), nil
}

func (f *fakeAuditRepo) byType(t domain.AuditType) []domain.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.AuditEntry
	for _, entry := range f.entries {
		if entry.Type == t {
			result = append(result, entry)
		}
	}
	return result
}

type fakeStaffMessageRepo struct {
	mu       sync.Mutex
	messages []domain.StaffMessage
}

func (f *fakeStaffMessageRepo) Create(_ context.Context, msg *domain.StaffMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now()
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeStaffMessageRepo) ListRecent(_ context.Context, limit int) ([]domain.StaffMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.StaffMessage{}, msgs...), nil
}

func (f *fakeStaffMessageRepo) DeleteAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
	return nil
}

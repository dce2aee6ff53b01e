package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/events"
	"github.com/vuny-labs/marketplace-service/internal/repository"
	"github.com/vuny-labs/marketplace-service/internal/stream"
	apperrors "github.com/vuny-labs/marketplace-service/pkg/util/errorutil"
)

type ticketFixture struct {
	svc         *TicketService
	tickets     *fakeTicketRepo
	products    *fakeProductRepo
	users       *fakeUserRepo
	audits      *fakeAuditRepo
	broadcaster *stream.Broadcaster

	opener    *domain.User
	moderator *domain.User
	stranger  *domain.User
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()

	opener := &domain.User{ID: "u-opener", Username: "alice", Role: domain.RoleMember}
	moderator := &domain.User{ID: "u-mod", Username: "mallory", Role: domain.RoleModerator}
	stranger := &domain.User{ID: "u-stranger", Username: "bob", Role: domain.RolePrivilegedMember}

	tickets := newFakeTicketRepo()
	products := newFakeProductRepo()
	users := newFakeUserRepo(opener, moderator, stranger)
	audits := &fakeAuditRepo{}
	broadcaster := stream.NewBroadcaster(16, zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher()

	auditSvc := NewAuditService(audits, zap.NewNop())
	dispatcher.Subscribe(events.EventTicketCreated, auditSvc.HandleTicketCreated)
	dispatcher.Subscribe(events.EventTicketSettled, auditSvc.HandleTicketSettled)
	dispatcher.Subscribe(events.EventTicketClosed, auditSvc.HandleTicketClosed)
	dispatcher.Subscribe(events.EventTicketMessageAdded, auditSvc.HandleTicketMessageAdded)
	dispatcher.Subscribe(events.EventTicketPurged, auditSvc.HandleTicketPurged)

	svc := NewTicketService(TicketDependencies{
		TicketRepo:   tickets,
		ProductRepo:  products,
		UserRepo:     users,
		CounterCache: repository.NewTicketCounterCache(nil, 0),
		Broadcaster:  broadcaster,
		Dispatcher:   dispatcher,
		Logger:       zap.NewNop(),
	})

	return &ticketFixture{
		svc:         svc,
		tickets:     tickets,
		products:    products,
		users:       users,
		audits:      audits,
		broadcaster: broadcaster,
		opener:      opener,
		moderator:   moderator,
		stranger:    stranger,
	}
}

func (f *ticketFixture) seedProduct(t *testing.T, stock int) *domain.Product {
	t.Helper()
	product := &domain.Product{
		Title:    "Garden Tiller",
		Price:    12.5,
		Quantity: stock,
		Active:   true,
		AuthorID: f.moderator.ID,
	}
	require.NoError(t, f.products.Create(context.Background(), product))
	return product
}

func decodeStreamFrame(t *testing.T, sub *stream.Subscription) stream.Event {
	t.Helper()
	select {
	case frame, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		payload := strings.TrimSuffix(strings.TrimPrefix(string(frame), "data: "), "\n\n")
		var event stream.Event
		require.NoError(t, json.Unmarshal([]byte(payload), &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stream event")
		return stream.Event{}
	}
}

func TestCreateCommerceTicketWritesOpeningMessage(t *testing.T) {
	f := newTicketFixture(t)
	product := f.seedProduct(t, 5)

	ticket, msgs, err := f.svc.CreateCommerceTicket(context.Background(), f.opener, product.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketKindCommerce, ticket.Kind)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, 25.0, ticket.TotalPrice)
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, msgs[0].Seq)
	assert.Equal(t, f.opener.ID, msgs[0].Sender.ID)
	assert.Contains(t, msgs[0].Content, product.Title)

	created := f.audits.byType(domain.AuditTicketCreated)
	require.Len(t, created, 1)
	assert.Equal(t, "alice", created[0].ActorName)
}

func TestCreateCommerceTicketReturnsExistingOpenTicket(t *testing.T) {
	f := newTicketFixture(t)
	product := f.seedProduct(t, 5)
	ctx := context.Background()

	first, _, err := f.svc.CreateCommerceTicket(ctx, f.opener, product.ID, 1)
	require.NoError(t, err)

	second, msgs, err := f.svc.CreateCommerceTicket(ctx, f.opener, product.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "duplicate create must return the open ticket")
	assert.Len(t, msgs, 1, "no second opening message")

	count, err := f.svc.CountOpen(ctx, domain.TicketKindCommerce)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateCommerceTicketConcurrentDuplicates(t *testing.T) {
	f := newTicketFixture(t)
	product := f.seedProduct(t, 50)
	ctx := context.Background()

	const attempts = 10
	ids := make([]string, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(slot int) {
			defer wg.Done()
			ticket, _, err := f.svc.CreateCommerceTicket(ctx, f.opener, product.ID, 1)
			errs[slot] = err
			if ticket != nil {
				ids[slot] = ticket.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	count, err := f.svc.CountOpen(ctx, domain.TicketKindCommerce)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateCommerceTicketInsufficientStock(t *testing.T) {
	f := newTicketFixture(t)
	product := f.seedProduct(t, 1)

	_, _, err := f.svc.CreateCommerceTicket(context.Background(), f.opener, product.ID, 3)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"), "got %v", err)
}

func TestCreateCommerceTicketUnknownProduct(t *testing.T) {
	f := newTicketFixture(t)
	_, _, err := f.svc.CreateCommerceTicket(context.Background(), f.opener, "missing", 1)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"), "got %v", err)
}

func TestCreateSupportTicketDedupesByTitle(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	first, _, err := f.svc.CreateSupportTicket(ctx, f.opener, "Refund request", "Order arrived broken")
	require.NoError(t, err)
	second, _, err := f.svc.CreateSupportTicket(ctx, f.opener, "Refund request", "Still broken")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// A different title opens a separate ticket.
	third, _, err := f.svc.CreateSupportTicket(ctx, f.opener, "Account question", "How do I change my avatar?")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestCreateSupportTicketAnnouncesOnAdminFeed(t *testing.T) {
	f := newTicketFixture(t)
	feed := f.broadcaster.Subscribe(stream.AdminSupportFeed)
	defer f.broadcaster.Unsubscribe(feed)

	_, _, err := f.svc.CreateSupportTicket(context.Background(), f.opener, "Refund request", "Order arrived broken")
	require.NoError(t, err)

	event := decodeStreamFrame(t, feed)
	assert.Equal(t, "new_ticket", event.Type)
	require.NotNil(t, event.Ticket)
}

func TestAppendMessageBroadcastsInOrder(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, _, err := f.svc.CreateSupportTicket(ctx, f.opener, "Refund request", "Order arrived broken")
	require.NoError(t, err)

	sub := f.broadcaster.Subscribe(ticket.ID)
	defer f.broadcaster.Unsubscribe(sub)

	first, err := f.svc.AppendMessage(ctx, f.opener, ticket.ID, "any update?", nil)
	require.NoError(t, err)
	second, err := f.svc.AppendMessage(ctx, f.moderator, ticket.ID, "on it", nil)
	require.NoError(t, err)

	assert.Equal(t, first.Seq+1, second.Seq)

	eventA := decodeStreamFrame(t, sub)
	eventB := decodeStreamFrame(t, sub)
	assert.Equal(t, "message", eventA.Type)
	assert.Equal(t, "message", eventB.Type)

	// Staff replies land on the audit trail; member messages do not.
	assert.Len(t, f.audits.byType(domain.AuditTicketMessage), 1)
}

func TestAppendMessageRejectsOutsiders(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, _, err := f.svc.CreateSupportTicket(ctx, f.opener, "Refund request", "Order arrived broken")
	require.NoError(t, err)

	_, err = f.svc.AppendMessage(ctx, f.stranger, ticket.ID, "let me in", nil)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), "got %v", err)
}

func TestAppendMessageOnClosedTicket(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, _, err := f.svc.CreateSupportTicket(ctx, f.opener, "Refund request", "Order arrived broken")
	require.NoError(t, err)
	require.NoError(t, f.svc.Close(ctx, f.opener, ticket.ID, ""))

	_, err = f.svc.AppendMessage(ctx, f.opener, ticket.ID, "one more thing", nil)
	assert.True(t, apperrors.IsCode(err, "TICKET_NOT_OPEN"), "got %v", err)
}

func TestAppendMessageOnSoldTicket(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, 5)
	ticket, _, err := f.svc.CreateCommerceTicket(ctx, f.opener, product.ID, 1)
	require.NoError(t, err)

	// Mark terminal without removing the row, as seen mid-settle.
	require.NoError(t, f.tickets.Close(ctx, ticket.ID, domain.TicketStatusSold, f.moderator.ID, nil))

	_, err = f.svc.AppendMessage(ctx, f.opener, ticket.ID, "wait", nil)
	assert.True(t, apperrors.IsCode(err, "TICKET_NOT_OPEN"), "got %v", err)
}

func TestConcurrentSettleDeductsStockOnce(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, 10)
	ticket, _, err := f.svc.CreateCommerceTicket(ctx, f.opener, product.ID, 4)
	require.NoError(t, err)

	const racers = 5
	errs := make([]error, racers)
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(slot int) {
			defer wg.Done()
			errs[slot] = f.svc.Settle(ctx, f.moderator, ticket.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION") || apperrors.IsCode(err, "NOT_FOUND"),
				"got %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one settle succeeds")

	remaining, err := f.products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, remaining.Quantity, "stock deducted once")
}

func TestSettleDeductsStockAndRemovesTicket(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, 5)
	ticket, _, err := f.svc.CreateCommerceTicket(ctx, f.opener, product.ID, 3)
	require.NoError(t, err)

	sub := f.broadcaster.Subscribe(ticket.ID)
	defer f.broadcaster.Unsubscribe(sub)

	require.NoError(t, f.svc.Settle(ctx, f.moderator, ticket.ID))

	remaining, err := f.products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining.Quantity)

	event := decodeStreamFrame(t, sub)
	assert.Equal(t, "status", event.Type)
	assert.Equal(t, "sold", event.Status)

	settled := f.audits.byType(domain.AuditTicketSettled)
	require.Len(t, settled, 1)
	assert.Equal(t, "mallory", settled[0].ActorName)

	_, _, err = f.svc.GetTicket(ctx, f.moderator, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"), "settled ticket should be gone, got %v", err)
}

func TestSettleFloorsStockAtZero(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, 3)
	ticket, _, err := f.svc.CreateCommerceTicket(ctx, f.opener, product.ID, 3)
	require.NoError(t, err)

	// Stock shrinks between ordering and settling.
	_, err = f.products.DeductStock(ctx, product.ID, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.Settle(ctx, f.moderator, ticket.ID))

	remaining, err := f.products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining.Quantity, "stock never goes negative")
}

func TestSettleRequiresStaff(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, 5)
	ticket, _, err := f.svc.CreateCommerceTicket(ctx, f.opener, product.ID, 1)
	require.NoError(t, err)

	err = f.svc.Settle(ctx, f.opener, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), "got %v", err)
}

func TestSettleSupportTicketIsInvalid(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, _, err := f.svc.CreateSupportTicket(ctx, f.opener, "Refund request", "Order arrived broken")
	require.NoError(t, err)

	err = f.svc.Settle(ctx, f.moderator, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"), "got %v", err)
}

func TestCloseSupportTicketBroadcastsReasonOnce(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, _, err := f.svc.CreateSupportTicket(ctx, f.opener, "Refund request", "Order arrived broken")
	require.NoError(t, err)

	sub := f.broadcaster.Subscribe(ticket.ID)
	defer f.broadcaster.Unsubscribe(sub)

	require.NoError(t, f.svc.Close(ctx, f.moderator, ticket.ID, "duplicate"))

	event := decodeStreamFrame(t, sub)
	assert.Equal(t, "status", event.Type)
	assert.Equal(t, "closed", event.Status)
	assert.Equal(t, "duplicate", event.Reason)

	select {
	case frame, ok := <-sub.C:
		if ok {
			t.Fatalf("unexpected second frame: %s", frame)
		}
	case <-time.After(50 * time.Millisecond):
	}

	// Support tickets survive closing with their close fields set.
	closed, _, err := f.svc.GetTicket(ctx, f.moderator, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	require.NotNil(t, closed.CloseReason)
	assert.Equal(t, "duplicate", *closed.CloseReason)
}

func TestCloseCommerceTicketRemovesRecord(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, 5)
	ticket, _, err := f.svc.CreateCommerceTicket(ctx, f.opener, product.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.Close(ctx, f.opener, ticket.ID, ""))

	_, _, err = f.svc.GetTicket(ctx, f.opener, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"), "got %v", err)

	// Stock untouched on a plain close.
	remaining, err := f.products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining.Quantity)
}

func TestCloseTwiceIsInvalidTransition(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, _, err := f.svc.CreateSupportTicket(ctx, f.opener, "Refund request", "Order arrived broken")
	require.NoError(t, err)

	require.NoError(t, f.svc.Close(ctx, f.opener, ticket.ID, ""))
	err = f.svc.Close(ctx, f.opener, ticket.ID, "")
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"), "got %v", err)
}

func TestPurgeRemovesSupportTicketAndAudits(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, _, err := f.svc.CreateSupportTicket(ctx, f.opener, "Refund request", "Order arrived broken")
	require.NoError(t, err)

	require.NoError(t, f.svc.Purge(ctx, f.moderator, ticket.ID))

	_, _, err = f.svc.GetTicket(ctx, f.moderator, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"), "got %v", err)

	purged := f.audits.byType(domain.AuditTicketPurged)
	require.Len(t, purged, 1)
	assert.Equal(t, "mallory", purged[0].ActorName)
	assert.Contains(t, purged[0].Message, "Refund request")
}

func TestPurgeRequiresStaff(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, _, err := f.svc.CreateSupportTicket(ctx, f.opener, "Refund request", "Order arrived broken")
	require.NoError(t, err)

	err = f.svc.Purge(ctx, f.opener, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), "got %v", err)
	_, _, err = f.svc.GetTicket(ctx, f.opener, ticket.ID)
	assert.NoError(t, err)
}

func TestPurgeRejectsCommerceTickets(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, 5)
	ticket, _, err := f.svc.CreateCommerceTicket(ctx, f.opener, product.ID, 1)
	require.NoError(t, err)

	err = f.svc.Purge(ctx, f.moderator, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"), "got %v", err)
}

func TestGetTicketEnforcesReadAccess(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, _, err := f.svc.CreateSupportTicket(ctx, f.opener, "Refund request", "Order arrived broken")
	require.NoError(t, err)

	_, _, err = f.svc.GetTicket(ctx, f.stranger, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), "got %v", err)

	_, msgs, err := f.svc.GetTicket(ctx, f.moderator, ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice", msgs[0].Sender.Username)
}

func TestAuthorizeSubscribe(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, _, err := f.svc.CreateSupportTicket(ctx, f.opener, "Refund request", "Order arrived broken")
	require.NoError(t, err)

	_, err = f.svc.AuthorizeSubscribe(ctx, f.stranger, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), "got %v", err)

	got, err := f.svc.AuthorizeSubscribe(ctx, f.opener, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)
}

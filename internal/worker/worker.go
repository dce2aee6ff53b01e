package worker

import (
	"github.com/vuny-labs/marketplace-service/internal/events"
	"github.com/vuny-labs/marketplace-service/internal/service"
)

// Start wires the event-driven side effects: notifications and the audit
// trail. Handlers run synchronously on the dispatching goroutine.
func Start(dispatcher events.Dispatcher, notifications *service.NotificationService, audits *service.AuditService) {
	if dispatcher == nil {
		return
	}
	if notifications != nil {
		dispatcher.Subscribe(events.EventTicketCreated, notifications.HandleTicketCreated)
		dispatcher.Subscribe(events.EventTicketMessageAdded, notifications.HandleTicketMessageAdded)
		dispatcher.Subscribe(events.EventTicketSettled, notifications.HandleTicketSettled)
		dispatcher.Subscribe(events.EventTicketClosed, notifications.HandleTicketClosed)
	}
	if audits != nil {
		dispatcher.Subscribe(events.EventTicketCreated, audits.HandleTicketCreated)
		dispatcher.Subscribe(events.EventTicketMessageAdded, audits.HandleTicketMessageAdded)
		dispatcher.Subscribe(events.EventTicketSettled, audits.HandleTicketSettled)
		dispatcher.Subscribe(events.EventTicketClosed, audits.HandleTicketClosed)
		dispatcher.Subscribe(events.EventTicketPurged, audits.HandleTicketPurged)
	}
}

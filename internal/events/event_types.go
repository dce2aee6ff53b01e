package events

import (
	"time"

	"github.com/vuny-labs/marketplace-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketMessageAdded EventType = "ticket_message_added"
	EventTicketSettled      EventType = "ticket_settled"
	EventTicketClosed       EventType = "ticket_closed"
	EventTicketPurged       EventType = "ticket_purged"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Kind       domain.TicketKind `json:"kind"`
	OpenerID   string            `json:"opener_id"`
	OpenerName string            `json:"opener_name"`
	Subject    string            `json:"subject"`
	Quantity   int               `json:"quantity,omitempty"`
	TotalPrice float64           `json:"total_price,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	Kind        domain.TicketKind `json:"kind"`
	MessageID   string            `json:"message_id"`
	OpenerID    string            `json:"opener_id"`
	Subject     string            `json:"subject"`
	SenderStaff bool              `json:"sender_staff"`
}

// TicketSettledPayload payload.
type TicketSettledPayload struct {
	OpenerID   string  `json:"opener_id"`
	Subject    string  `json:"subject"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"total_price"`
}

// TicketPurgedPayload payload.
type TicketPurgedPayload struct {
	Subject string `json:"subject"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Kind          domain.TicketKind `json:"kind"`
	OpenerID      string            `json:"opener_id"`
	Subject       string            `json:"subject"`
	Reason        string            `json:"reason,omitempty"`
	ClosedByStaff bool              `json:"closed_by_staff"`
}

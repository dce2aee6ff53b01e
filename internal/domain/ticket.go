package domain

import "time"

// TicketKind distinguishes commerce purchase tickets from support requests.
type TicketKind string

const (
	TicketKindCommerce TicketKind = "COMMERCE"
	TicketKindSupport  TicketKind = "SUPPORT"
)

// TicketStatus enumerates lifecycle states.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusSold   TicketStatus = "sold"
	TicketStatusClosed TicketStatus = "closed"
)

// Ticket is the aggregate for purchase negotiations and support requests.
// Commerce tickets reference a product and carry quantity/price; support
// tickets carry a title and description instead.
type Ticket struct {
	ID          string
	Kind        TicketKind
	OpenerID    string
	ProductID   *string
	Title       string
	Description string
	Quantity    int
	TotalPrice  float64
	Status      TicketStatus
	MessageSeq  int
	CloseReason *string
	ClosedByID  *string
	ClosedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Open reports whether the ticket still accepts messages and transitions.
func (t *Ticket) Open() bool {
	return t.Status == TicketStatusOpen
}

// Terminal reports whether the ticket reached an end state.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusSold || s == TicketStatusClosed
}

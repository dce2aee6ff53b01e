package domain

import "time"

// Message is one entry in a ticket transcript. Content may be empty when an
// image is attached. Seq is assigned by the ticket and grows monotonically
// while the ticket is open.
type Message struct {
	ID        string
	TicketID  string
	Seq       int
	SenderID  string
	Content   string
	ImageURL  *string
	CreatedAt time.Time
}

package domain

import "time"

// StaffMessage is one entry in the staff-only chat room. Unlike ticket
// messages it belongs to no ticket and has no sequence; ordering is by
// creation time.
type StaffMessage struct {
	ID        string
	SenderID  string
	Content   string
	ImageURL  *string
	CreatedAt time.Time
}

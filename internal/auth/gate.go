package auth

import "github.com/vuny-labs/marketplace-service/internal/domain"

// TicketAction is an operation a principal can attempt on a ticket.
type TicketAction string

const (
	ActionSubscribe TicketAction = "subscribe"
	ActionRead      TicketAction = "read"
	ActionAppend    TicketAction = "append"
	ActionClose     TicketAction = "close"
	ActionSettle    TicketAction = "settle"
)

// ReasonTicketNotOpen marks append denials caused by ticket state rather than
// by who the principal is. Callers surface it as a state error, not a
// permission error.
const ReasonTicketNotOpen = "ticket is not open"

// Decision is the structured outcome of an authorization check. Denials are
// data, not errors; callers translate them into transport responses.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny carries the denial reason.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Authorize evaluates whether the user may perform the action on the ticket.
// Moderators and above can act on any ticket; everyone else only on tickets
// they opened. Appends additionally require the ticket to still be open, and
// settling is staff-only.
func Authorize(user *domain.User, ticket *domain.Ticket, action TicketAction) Decision {
	if user == nil {
		return Deny("authentication required")
	}
	isStaff := Level(user.Role) >= Level(domain.RoleModerator)
	isOpener := ticket != nil && ticket.OpenerID == user.ID

	switch action {
	case ActionSubscribe, ActionRead, ActionClose:
		if isStaff || isOpener {
			return Allow()
		}
		return Deny("not a ticket participant")
	case ActionAppend:
		if !isStaff && !isOpener {
			return Deny("not a ticket participant")
		}
		if ticket == nil || !ticket.Open() {
			return Deny(ReasonTicketNotOpen)
		}
		return Allow()
	case ActionSettle:
		if isStaff {
			return Allow()
		}
		return Deny("moderator role required")
	default:
		return Deny("unknown action")
	}
}

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vuny-labs/marketplace-service/internal/domain"
)

func gateUser(id string, role domain.Role) *domain.User {
	return &domain.User{ID: id, Username: id, Role: role}
}

func gateTicket(openerID string, status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{ID: "t1", OpenerID: openerID, Status: status}
}

func TestAuthorize(t *testing.T) {
	opener := gateUser("opener", domain.RoleMember)
	stranger := gateUser("stranger", domain.RolePrivilegedMember)
	moderator := gateUser("mod", domain.RoleModerator)

	open := gateTicket(opener.ID, domain.TicketStatusOpen)
	closed := gateTicket(opener.ID, domain.TicketStatusClosed)

	cases := []struct {
		name    string
		user    *domain.User
		ticket  *domain.Ticket
		action  TicketAction
		allowed bool
	}{
		{"opener subscribes", opener, open, ActionSubscribe, true},
		{"opener reads", opener, open, ActionRead, true},
		{"opener appends while open", opener, open, ActionAppend, true},
		{"opener closes", opener, open, ActionClose, true},
		{"opener cannot settle", opener, open, ActionSettle, false},
		{"opener cannot append after close", opener, closed, ActionAppend, false},
		{"opener still reads after close", opener, closed, ActionRead, true},

		{"stranger cannot subscribe", stranger, open, ActionSubscribe, false},
		{"stranger cannot read", stranger, open, ActionRead, false},
		{"stranger cannot append", stranger, open, ActionAppend, false},
		{"stranger cannot close", stranger, open, ActionClose, false},

		{"moderator subscribes", moderator, open, ActionSubscribe, true},
		{"moderator appends", moderator, open, ActionAppend, true},
		{"moderator closes", moderator, open, ActionClose, true},
		{"moderator settles", moderator, open, ActionSettle, true},
		{"moderator cannot append after close", moderator, closed, ActionAppend, false},

		{"anonymous denied", nil, open, ActionRead, false},
		{"unknown action denied", moderator, open, TicketAction("archive"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Authorize(tc.user, tc.ticket, tc.action)
			assert.Equal(t, tc.allowed, decision.Allowed)
			if !tc.allowed {
				assert.NotEmpty(t, decision.Reason)
			}
		})
	}
}

func TestAppendDenialReasonsAreDistinguishable(t *testing.T) {
	opener := &domain.User{ID: "u1", Role: domain.RoleMember}
	stranger := &domain.User{ID: "u2", Role: domain.RoleMember}
	closed := &domain.Ticket{ID: "t1", OpenerID: "u1", Status: domain.TicketStatusClosed}

	// State denial for a participant; identity denial for everyone else, even
	// when the ticket is also non-open.
	assert.Equal(t, ReasonTicketNotOpen, Authorize(opener, closed, ActionAppend).Reason)
	assert.Equal(t, "not a ticket participant", Authorize(stranger, closed, ActionAppend).Reason)
}

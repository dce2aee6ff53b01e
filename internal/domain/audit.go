package domain

import "time"

// AuditType identifies what an audit entry records.
type AuditType string

const (
	AuditTicketCreated AuditType = "created"
	AuditTicketSettled AuditType = "settled"
	AuditTicketClosed  AuditType = "closed"
	AuditTicketPurged  AuditType = "purged"
	AuditTicketMessage AuditType = "message"
	AuditProductChange AuditType = "product_change"
	AuditUserBanned    AuditType = "user_banned"
	AuditUserUnbanned  AuditType = "user_unbanned"
	AuditRoleGranted   AuditType = "role_granted"
)

// AuditEntry is an immutable log line produced by staff-visible actions.
type AuditEntry struct {
	ID        string
	Type      AuditType
	Message   string
	ActorID   *string
	ActorName string
	Target    *string
	Meta      map[string]any
	CreatedAt time.Time
}

package domain

import "time"

// NotificationType categorizes in-app notifications.
type NotificationType string

const (
	NotificationAdminMessage NotificationType = "ADMIN_MESSAGE"
	NotificationBan          NotificationType = "BAN"
	NotificationUnban        NotificationType = "UNBAN"
)

// Notification is a persisted message addressed to one user.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Message   string
	Read      bool
	CreatedAt time.Time
}

package domain

import "time"

// Role enumerates marketplace roles, ordered from least to most privileged.
type Role string

const (
	RoleGuest            Role = "GUEST"
	RoleMember           Role = "MEMBER"
	RolePrivilegedMember Role = "PRIVILEGED_MEMBER"
	RoleModerator        Role = "MODERATOR"
	RoleSeniorModerator  Role = "SENIOR_MODERATOR"
	RoleRoot             Role = "ROOT"
)

// User is the domain model for marketplace members.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Avatar       *string
	Banned       bool
	BanReason    *string
	BannedByID   *string
	BannedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastSeenAt   time.Time
}

// PublicUser is the subset of user fields safe to embed in responses.
type PublicUser struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar,omitempty"`
	Role     Role    `json:"role"`
}

// Public strips credential and moderation fields.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   u.Avatar,
		Role:     u.Role,
	}
}

package user

import "time"

const (
	EventUserRegistered      = "UserRegistered"
	EventUserProfileUpdated  = "UserProfileUpdated"
	EventUserPasswordChanged = "UserPasswordChanged"
	EventUserRoleChanged     = "UserRoleChanged"
	EventUserStatusChanged   = "UserStatusChanged"
	EventUserLoggedIn        = "UserLoggedIn"
	EventUserLoggedOut       = "UserLoggedOut"
)

type UserRegistered struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	RegisteredAt time.Time `json:"registered_at"`
}

type UserProfileUpdated struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserPasswordChanged struct {
	UserID       string    `json:"user_id"`
	PasswordHash string    `json:"password_hash"`
	ChangedAt    time.Time `json:"changed_at"`
}

// UserRoleChanged moves an account between customer, vendor and admin.
// Tokens issued before the change keep the old role until they expire.
type UserRoleChanged struct {
	UserID    string    `json:"user_id"`
	OldRole   string    `json:"old_role"`
	NewRole   string    `json:"new_role"`
	ChangedAt time.Time `json:"changed_at"`
}

// UserStatusChanged blocks (Active false) or restores an account.
type UserStatusChanged struct {
	UserID    string    `json:"user_id"`
	Active    bool      `json:"active"`
	Reason    string    `json:"reason,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

type UserLoggedIn struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	LoggedAt  time.Time `json:"logged_at"`
}

type UserLoggedOut struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	LoggedAt  time.Time `json:"logged_at"`
}

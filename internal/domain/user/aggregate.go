package user

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/marketplace/internal/auth"
	"github.com/example/marketplace/internal/domain/aggregate"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/infrastructure/store"
)

const AggregateType = "User"

var (
	ErrUserNotFound       = errors.Wrap(domainerr.ErrNotFound, "user")
	ErrInvalidEmail       = errors.Wrap(domainerr.ErrValidation, "email is invalid")
	ErrInvalidName        = errors.Wrap(domainerr.ErrValidation, "name is required")
	ErrInvalidRole        = errors.Wrap(domainerr.ErrValidation, "role must be customer, vendor or admin")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserDeactivated    = errors.Wrap(domainerr.ErrInvalidTransition, "user account is deactivated")
	ErrStatusUnchanged    = errors.Wrap(domainerr.ErrInvalidTransition, "account already in that state")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9](?:[a-zA-Z0-9\-]*[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9\-]*[a-zA-Z0-9])?)*\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return len(email) <= 254 && emailRegex.MatchString(email)
}

func validRole(role string) bool {
	switch role {
	case auth.RoleCustomer, auth.RoleVendor, auth.RoleAdmin:
		return true
	}
	return false
}

// User represents a user aggregate
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Version      int        `json:"version"`
}

// Aggregate interface implementation
func (u *User) GetID() string    { return u.ID }
func (u *User) GetVersion() int  { return u.Version }
func (u *User) SetVersion(v int) { u.Version = v }

// ApplyEvent applies a single event to the user state
func (u *User) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventUserRegistered:
		var data UserRegistered
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		u.ID = data.UserID
		u.Email = data.Email
		u.PasswordHash = data.PasswordHash
		u.Name = data.Name
		u.Role = data.Role
		u.IsActive = true
		u.CreatedAt = data.RegisteredAt
		u.UpdatedAt = data.RegisteredAt
	case EventUserProfileUpdated:
		var data UserProfileUpdated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		u.Name = data.Name
		u.UpdatedAt = data.UpdatedAt
	case EventUserPasswordChanged:
		var data UserPasswordChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		u.PasswordHash = data.PasswordHash
		u.UpdatedAt = data.ChangedAt
	case EventUserRoleChanged:
		var data UserRoleChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		u.Role = data.NewRole
		u.UpdatedAt = data.ChangedAt
	case EventUserStatusChanged:
		var data UserStatusChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		u.IsActive = data.Active
		u.UpdatedAt = data.ChangedAt
	case EventUserLoggedIn:
		var data UserLoggedIn
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		u.LastLoginAt = &data.LoggedAt
	}
	return nil
}

// Service handles user domain operations
type Service struct {
	eventStore store.EventStoreInterface
}

// NewService creates a new user service
func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

func (s *Service) Load(ctx context.Context, userID string) (*User, error) {
	u, found, err := aggregate.LoadAggregate(ctx, s.eventStore, userID, func() *User { return &User{} })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrUserNotFound, "id %s", userID)
	}
	return u, nil
}

// Register creates a new customer
func (s *Service) Register(ctx context.Context, email, password, name string) (*User, error) {
	return s.RegisterWithRole(ctx, email, password, name, auth.RoleCustomer)
}

// RegisterAdmin creates a new admin user
func (s *Service) RegisterAdmin(ctx context.Context, email, password, name string) (*User, error) {
	return s.RegisterWithRole(ctx, email, password, name, auth.RoleAdmin)
}

// RegisterWithRole creates a new user with a specific role
func (s *Service) RegisterWithRole(ctx context.Context, email, password, name, role string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !isValidEmail(email) {
		return nil, errors.Wrapf(ErrInvalidEmail, "%q", email)
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	if !validRole(role) {
		return nil, errors.Wrapf(ErrInvalidRole, "got %q", role)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{ID: uuid.New().String()}
	b := store.NewBatch()
	err = aggregate.Record(b, u, AggregateType, EventUserRegistered, UserRegistered{
		UserID:       u.ID,
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		RegisteredAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) edit(ctx context.Context, userID, eventType string, data func(u *User) (any, error)) error {
	u, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}
	payload, err := data(u)
	if err != nil {
		return err
	}
	b := store.NewBatch()
	if err := aggregate.Record(b, u, AggregateType, eventType, payload); err != nil {
		return err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return err
	}
	aggregate.SnapshotAll(ctx, s.eventStore, aggregate.Snapshotter{Aggregate: u, Type: AggregateType})
	return nil
}

// RecordLogin records a user login event
func (s *Service) RecordLogin(ctx context.Context, userID, sessionID, ipAddress, userAgent string) error {
	return s.edit(ctx, userID, EventUserLoggedIn, func(u *User) (any, error) {
		if !u.IsActive {
			return nil, ErrUserDeactivated
		}
		return UserLoggedIn{
			UserID:    userID,
			SessionID: sessionID,
			IPAddress: ipAddress,
			UserAgent: userAgent,
			LoggedAt:  time.Now().UTC(),
		}, nil
	})
}

// RecordLogout records a user logout event
func (s *Service) RecordLogout(ctx context.Context, userID, sessionID string) error {
	return s.edit(ctx, userID, EventUserLoggedOut, func(u *User) (any, error) {
		return UserLoggedOut{UserID: userID, SessionID: sessionID, LoggedAt: time.Now().UTC()}, nil
	})
}

// UpdateProfile updates user profile information
func (s *Service) UpdateProfile(ctx context.Context, userID, name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	return s.edit(ctx, userID, EventUserProfileUpdated, func(u *User) (any, error) {
		return UserProfileUpdated{UserID: userID, Name: name, UpdatedAt: time.Now().UTC()}, nil
	})
}

// ChangePassword changes user password
func (s *Service) ChangePassword(ctx context.Context, userID, newPassword string) error {
	return s.edit(ctx, userID, EventUserPasswordChanged, func(u *User) (any, error) {
		passwordHash, err := auth.HashPassword(newPassword)
		if err != nil {
			return nil, err
		}
		return UserPasswordChanged{UserID: userID, PasswordHash: passwordHash, ChangedAt: time.Now().UTC()}, nil
	})
}

// ChangeRole grants role to the user. Granting the current role records
// nothing.
func (s *Service) ChangeRole(ctx context.Context, userID, role string) (*User, error) {
	if !validRole(role) {
		return nil, errors.Wrapf(ErrInvalidRole, "got %q", role)
	}
	u, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role == role {
		return u, nil
	}
	b := store.NewBatch()
	err = aggregate.Record(b, u, AggregateType, EventUserRoleChanged, UserRoleChanged{
		UserID:    userID,
		OldRole:   u.Role,
		NewRole:   role,
		ChangedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	return u, nil
}

// Deactivate blocks the account: logins and token refreshes are refused.
func (s *Service) Deactivate(ctx context.Context, userID, reason string) error {
	return s.setActive(ctx, userID, false, reason)
}

func (s *Service) Activate(ctx context.Context, userID string) error {
	return s.setActive(ctx, userID, true, "")
}

func (s *Service) setActive(ctx context.Context, userID string, active bool, reason string) error {
	return s.edit(ctx, userID, EventUserStatusChanged, func(u *User) (any, error) {
		if u.IsActive == active {
			return nil, errors.Wrapf(ErrStatusUnchanged, "active=%t", active)
		}
		return UserStatusChanged{UserID: userID, Active: active, Reason: reason, ChangedAt: time.Now().UTC()}, nil
	})
}

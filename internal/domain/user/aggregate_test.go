package user

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/marketplace/internal/auth"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/infrastructure/store/mocks"
)

func TestMain(m *testing.M) {
	auth.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func newTestUserService() (*Service, *mocks.MockEventStore) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)
	return service, eventStore
}

// ============================================
// Email Validation Tests
// ============================================

func TestIsValidEmail_ValidEmails(t *testing.T) {
	validEmails := []string{
		"test@example.com",
		"user.name@domain.org",
		"user+tag@example.com",
		"user123@test.co.jp",
		"a@b.cd",
		"user_name@domain.com",
		"USER@EXAMPLE.COM",
		"test@subdomain.example.com",
	}

	for _, email := range validEmails {
		t.Run(email, func(t *testing.T) {
			assert.True(t, isValidEmail(email), "Expected %s to be valid", email)
		})
	}
}

func TestIsValidEmail_InvalidEmails(t *testing.T) {
	invalidEmails := []string{
		"",
		"notanemail",
		"@example.com",
		"user@",
		"user@.com",
		"user@domain",
		"user@domain.",
		"user space@example.com",
		"user@exam ple.com",
		// Too long email (>254 chars) - need 255+ characters total
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" +
			"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" +
			"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa@example.com",
	}

	for _, email := range invalidEmails {
		t.Run(email, func(t *testing.T) {
			assert.False(t, isValidEmail(email), "Expected %s to be invalid", email)
		})
	}
}

// ============================================
// Register Tests
// ============================================

func TestService_Register_Success(t *testing.T) {
	service, eventStore := newTestUserService()
	ctx := context.Background()

	user, err := service.Register(ctx, "Test@Example.com", "password123", "Test User")

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, "Test User", user.Name)
	assert.Equal(t, auth.RoleCustomer, user.Role)
	assert.True(t, user.IsActive)
	assert.True(t, auth.CheckPassword("password123", user.PasswordHash))

	// Verify event was stored
	assert.Equal(t, []string{EventUserRegistered}, eventStore.CommittedTypes())
}

func TestService_Register_Validation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		userName string
		wantErr  error
	}{
		{"invalid email", "invalid-email", "password123", "Test User", ErrInvalidEmail},
		{"empty name", "test@example.com", "password123", "", ErrInvalidName},
		{"short password", "test@example.com", "short", "Test User", auth.ErrPasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, eventStore := newTestUserService()

			user, err := service.Register(context.Background(), tt.email, tt.password, tt.userName)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domainerr.ErrValidation)
			assert.Nil(t, user)
			assert.Empty(t, eventStore.CommitCalls)
		})
	}
}

func TestService_RegisterWithRole(t *testing.T) {
	service, _ := newTestUserService()
	ctx := context.Background()

	for _, role := range []string{auth.RoleCustomer, auth.RoleVendor, auth.RoleAdmin} {
		t.Run(role, func(t *testing.T) {
			user, err := service.RegisterWithRole(ctx, "test@example.com", "password123", "Test", role)
			require.NoError(t, err)
			assert.Equal(t, role, user.Role)
		})
	}

	_, err := service.RegisterWithRole(ctx, "test@example.com", "password123", "Test", "moderator")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func seedUser(t *testing.T, eventStore *mocks.MockEventStore, userID string) {
	t.Helper()
	require.NoError(t, eventStore.AddEvent(userID, AggregateType, EventUserRegistered, UserRegistered{UserID: userID, Name: "Old", Role: auth.RoleCustomer}))
}

// ============================================
// Profile and Password Tests
// ============================================

func TestService_UpdateProfile(t *testing.T) {
	service, eventStore := newTestUserService()
	ctx := context.Background()
	seedUser(t, eventStore, "user-123")

	require.NoError(t, service.UpdateProfile(ctx, "user-123", "New Name"))
	assert.ErrorIs(t, service.UpdateProfile(ctx, "user-123", ""), ErrInvalidName)
	assert.ErrorIs(t, service.UpdateProfile(ctx, "non-existent", "New Name"), ErrUserNotFound)

	assert.Equal(t, []string{EventUserProfileUpdated}, eventStore.CommittedTypes())
	u, err := service.Load(ctx, "user-123")
	require.NoError(t, err)
	assert.Equal(t, "New Name", u.Name)
	assert.Equal(t, 2, u.Version)
}

func TestService_ChangePassword(t *testing.T) {
	service, eventStore := newTestUserService()
	ctx := context.Background()
	seedUser(t, eventStore, "user-123")

	require.NoError(t, service.ChangePassword(ctx, "user-123", "newpassword123"))
	assert.ErrorIs(t, service.ChangePassword(ctx, "user-123", "short"), auth.ErrPasswordTooShort)
	assert.ErrorIs(t, service.ChangePassword(ctx, "non-existent", "newpassword123"), ErrUserNotFound)

	u, err := service.Load(ctx, "user-123")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("newpassword123", u.PasswordHash))
}

// ============================================
// Login/Logout Recording Tests
// ============================================

func TestService_RecordLogin(t *testing.T) {
	service, eventStore := newTestUserService()
	ctx := context.Background()
	seedUser(t, eventStore, "user-123")

	err := service.RecordLogin(ctx, "user-123", "session-456", "192.168.1.1", "Mozilla/5.0")

	require.NoError(t, err)
	require.Len(t, eventStore.CommitCalls, 1)
	event := eventStore.CommitCalls[0][0]
	assert.Equal(t, EventUserLoggedIn, event.EventType)

	// Verify event data
	var data UserLoggedIn
	require.NoError(t, json.Unmarshal(event.Data, &data))
	assert.Equal(t, "user-123", data.UserID)
	assert.Equal(t, "session-456", data.SessionID)
	assert.Equal(t, "192.168.1.1", data.IPAddress)
	assert.Equal(t, "Mozilla/5.0", data.UserAgent)

	u, err := service.Load(ctx, "user-123")
	require.NoError(t, err)
	assert.NotNil(t, u.LastLoginAt)
}

func TestService_RecordLogout(t *testing.T) {
	service, eventStore := newTestUserService()
	seedUser(t, eventStore, "user-123")

	require.NoError(t, service.RecordLogout(context.Background(), "user-123", "session-456"))

	assert.Equal(t, []string{EventUserLoggedOut}, eventStore.CommittedTypes())
}

// ============================================
// Deactivate/Activate Tests
// ============================================

func TestService_DeactivateBlocksLogin(t *testing.T) {
	service, eventStore := newTestUserService()
	ctx := context.Background()
	seedUser(t, eventStore, "user-123")

	require.NoError(t, service.Deactivate(ctx, "user-123", "chargebacks"))
	err := service.RecordLogin(ctx, "user-123", "s", "", "")
	assert.ErrorIs(t, err, ErrUserDeactivated)

	require.NoError(t, service.Activate(ctx, "user-123"))
	require.NoError(t, service.RecordLogin(ctx, "user-123", "s", "", ""))

	assert.Equal(t, []string{EventUserStatusChanged, EventUserStatusChanged, EventUserLoggedIn}, eventStore.CommittedTypes())
}

func TestService_DeactivateActivate_UserNotFound(t *testing.T) {
	service, _ := newTestUserService()
	ctx := context.Background()

	assert.ErrorIs(t, service.Deactivate(ctx, "non-existent", ""), ErrUserNotFound)
	assert.ErrorIs(t, service.Activate(ctx, "non-existent"), ErrUserNotFound)
}

func TestService_DeactivateTwiceRejected(t *testing.T) {
	service, eventStore := newTestUserService()
	ctx := context.Background()
	seedUser(t, eventStore, "user-123")

	require.NoError(t, service.Deactivate(ctx, "user-123", "fraud review"))
	err := service.Deactivate(ctx, "user-123", "again")

	assert.ErrorIs(t, err, ErrStatusUnchanged)
	assert.NoError(t, service.Activate(ctx, "user-123"))
	assert.ErrorIs(t, service.Activate(ctx, "user-123"), domainerr.ErrInvalidTransition)
}

// ============================================
// Role Tests
// ============================================

func TestService_ChangeRole(t *testing.T) {
	service, eventStore := newTestUserService()
	ctx := context.Background()
	seedUser(t, eventStore, "user-123")

	u, err := service.ChangeRole(ctx, "user-123", auth.RoleVendor)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleVendor, u.Role)

	_, err = service.ChangeRole(ctx, "user-123", auth.RoleVendor)
	require.NoError(t, err)
	assert.Equal(t, []string{EventUserRoleChanged}, eventStore.CommittedTypes(), "same role records nothing")

	var data UserRoleChanged
	require.NoError(t, json.Unmarshal(eventStore.CommitCalls[0][0].Data, &data))
	assert.Equal(t, auth.RoleCustomer, data.OldRole)
	assert.Equal(t, auth.RoleVendor, data.NewRole)

	_, err = service.ChangeRole(ctx, "user-123", "superuser")
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = service.ChangeRole(ctx, "ghost", auth.RoleAdmin)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/marketplace/internal/api/middleware"
	"github.com/example/marketplace/internal/auth"
	"github.com/example/marketplace/internal/domain/user"
	"github.com/example/marketplace/internal/infrastructure/store"
	"github.com/example/marketplace/internal/readmodel"
)

// hashToken creates a SHA-256 hash of the token for secure storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	userService *user.Service
	jwtService  *auth.JWTService
	readStore   store.ReadStoreInterface
	now         func() time.Time
}

func NewAuthHandlers(userService *user.Service, jwtService *auth.JWTService, readStore store.ReadStoreInterface) *AuthHandlers {
	return &AuthHandlers{
		userService: userService,
		jwtService:  jwtService,
		readStore:   readStore,
		now:         time.Now,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message,omitempty"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func userResponse(u *readmodel.UserReadModel) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
}

// userByEmail scans the users read model; emails compare case-insensitively.
func (h *AuthHandlers) userByEmail(email string) (*readmodel.UserReadModel, error) {
	users, err := h.readStore.GetAll(readmodel.Users)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	for _, item := range users {
		if u, ok := item.(*readmodel.UserReadModel); ok && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, nil
}

func (h *AuthHandlers) userByID(id string) (*readmodel.UserReadModel, bool) {
	data, ok, err := h.readStore.Get(readmodel.Users, id)
	if err != nil || !ok {
		return nil, false
	}
	u, ok := data.(*readmodel.UserReadModel)
	return u, ok
}

// Register handles user registration
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	existing, err := h.userByEmail(req.Email)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if existing != nil {
		respondJSONError(w, "email already registered", http.StatusConflict)
		return
	}

	newUser, err := h.userService.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.setAuthCookies(w, newUser.ID, newUser.Email, newUser.Role, r); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, AuthResponse{
		User: UserResponse{
			ID:        newUser.ID,
			Email:     newUser.Email,
			Name:      newUser.Name,
			Role:      newUser.Role,
			CreatedAt: newUser.CreatedAt,
		},
		Message: "registration successful",
	})
}

// Login handles user login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	userModel, err := h.userByEmail(req.Email)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if userModel == nil || !auth.CheckPassword(req.Password, userModel.PasswordHash) {
		respondJSONError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	if !userModel.IsActive {
		respondJSONError(w, "account is deactivated", http.StatusForbidden)
		return
	}

	if err := h.setAuthCookies(w, userModel.ID, userModel.Email, userModel.Role, r); err != nil {
		respondError(w, r, err)
		return
	}

	// Best effort: a failed login record does not fail the login.
	if err := h.userService.RecordLogin(r.Context(), userModel.ID, uuid.New().String(), r.RemoteAddr, r.UserAgent()); err != nil {
		logger.WithContext(r.Context()).WithError(err).WithField("user_id", userModel.ID).Warn("record login failed")
	}

	respondJSON(w, http.StatusOK, AuthResponse{User: userResponse(userModel), Message: "login successful"})
}

// Logout handles user logout
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		sessionID := ""
		if cookie, err := r.Cookie("session_id"); err == nil {
			sessionID = cookie.Value
		}
		if err := h.userService.RecordLogout(r.Context(), claims.UserID, sessionID); err != nil {
			logger.WithContext(r.Context()).WithError(err).WithField("user_id", claims.UserID).Warn("record logout failed")
		}
		h.deleteSessions(claims.UserID)
	}

	h.clearAuthCookies(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

func (h *AuthHandlers) deleteSessions(userID string) {
	sessions, err := h.readStore.GetAll(readmodel.Sessions)
	if err != nil {
		logger.WithError(err).Warn("list sessions failed")
		return
	}
	for _, item := range sessions {
		s, ok := item.(*readmodel.SessionReadModel)
		if !ok || s.UserID != userID {
			continue
		}
		if err := h.readStore.Delete(readmodel.Sessions, s.ID); err != nil {
			logger.WithError(err).WithFields(log.Fields{
				"user_id":    userID,
				"session_id": s.ID,
			}).Warn("delete session failed")
		}
	}
}

// Refresh rotates the session: the old session is dropped and new tokens are
// issued when the refresh token matches the stored hash.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	fail := func(message string, status int) {
		h.clearAuthCookies(w)
		respondJSONError(w, message, status)
	}

	refreshCookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondJSONError(w, "no refresh token", http.StatusUnauthorized)
		return
	}
	sessionCookie, err := r.Cookie("session_id")
	if err != nil {
		fail("no session", http.StatusUnauthorized)
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(refreshCookie.Value)
	if err != nil {
		fail("invalid refresh token", http.StatusUnauthorized)
		return
	}

	data, exists, err := h.readStore.Get(readmodel.Sessions, sessionCookie.Value)
	session, isSession := data.(*readmodel.SessionReadModel)
	if err != nil || !exists || !isSession {
		fail("session not found", http.StatusUnauthorized)
		return
	}
	if h.now().After(session.ExpiresAt) {
		if err := h.readStore.Delete(readmodel.Sessions, session.ID); err != nil {
			logger.WithContext(r.Context()).WithError(err).WithField("session_id", session.ID).Warn("delete expired session failed")
		}
		fail("session expired", http.StatusUnauthorized)
		return
	}
	if session.UserID != userID || hashToken(refreshCookie.Value) != session.RefreshTokenHash {
		fail("invalid refresh token", http.StatusUnauthorized)
		return
	}

	userModel, ok := h.userByID(userID)
	if !ok {
		fail("user not found", http.StatusUnauthorized)
		return
	}
	if !userModel.IsActive {
		fail("account is deactivated", http.StatusForbidden)
		return
	}

	// The old session must be gone before a new one is issued.
	if err := h.readStore.Delete(readmodel.Sessions, session.ID); err != nil {
		respondError(w, r, errors.Wrapf(err, "rotate session %s", session.ID))
		return
	}
	if err := h.setAuthCookies(w, userModel.ID, userModel.Email, userModel.Role, r); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "token refreshed"})
}

// Me returns the current authenticated user's information
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	userModel, ok := h.userByID(middleware.GetUserID(r.Context()))
	if !ok {
		respondJSONError(w, "user not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, userResponse(userModel))
}

func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	userModel, ok := h.userByID(middleware.GetUserID(r.Context()))
	if !ok {
		respondJSONError(w, "user not found", http.StatusNotFound)
		return
	}
	if !auth.CheckPassword(req.CurrentPassword, userModel.PasswordHash) {
		respondJSONError(w, "current password is incorrect", http.StatusBadRequest)
		return
	}

	if err := h.userService.ChangePassword(r.Context(), userModel.ID, req.NewPassword); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

func (h *AuthHandlers) setAuthCookies(w http.ResponseWriter, userID, email, role string, r *http.Request) error {
	accessToken, accessExpiry, err := h.jwtService.GenerateAccessToken(userID, email, role)
	if err != nil {
		return errors.Wrap(err, "access token")
	}
	refreshToken, refreshExpiry, err := h.jwtService.GenerateRefreshToken(userID)
	if err != nil {
		return errors.Wrap(err, "refresh token")
	}

	sessionID := uuid.New().String()
	if err := h.readStore.Set(readmodel.Sessions, sessionID, &readmodel.SessionReadModel{
		ID:               sessionID,
		UserID:           userID,
		RefreshTokenHash: hashToken(refreshToken),
		ExpiresAt:        refreshExpiry,
		CreatedAt:        h.now(),
		IPAddress:        r.RemoteAddr,
		UserAgent:        r.UserAgent(),
	}); err != nil {
		return errors.Wrap(err, "store session")
	}

	secure := r.TLS != nil
	for _, c := range []*http.Cookie{
		{Name: "access_token", Value: accessToken, Path: "/", Expires: accessExpiry},
		{Name: "refresh_token", Value: refreshToken, Path: "/api/auth/refresh", Expires: refreshExpiry},
		{Name: "session_id", Value: sessionID, Path: "/", Expires: refreshExpiry},
	} {
		c.HttpOnly = true
		c.Secure = secure
		c.SameSite = http.SameSiteStrictMode
		http.SetCookie(w, c)
	}
	return nil
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	for _, c := range []struct{ name, path string }{
		{"access_token", "/"},
		{"refresh_token", "/api/auth/refresh"},
		{"session_id", "/"},
	} {
		http.SetCookie(w, &http.Cookie{Name: c.name, Value: "", Path: c.path, MaxAge: -1, HttpOnly: true})
	}
}

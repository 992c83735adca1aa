package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/marketplace/internal/domain/user"
	"github.com/example/marketplace/internal/readmodel"
)

type AdminUserResponse struct {
	UserResponse
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// ListUsers lists accounts, oldest first, optionally filtered by ?role=.
func (h *AuthHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	items, err := h.readStore.GetAll(readmodel.Users)
	if err != nil {
		respondError(w, r, err)
		return
	}
	role := r.URL.Query().Get("role")
	out := make([]AdminUserResponse, 0, len(items))
	for _, item := range items {
		u, ok := item.(*readmodel.UserReadModel)
		if !ok || (role != "" && u.Role != role) {
			continue
		}
		out = append(out, AdminUserResponse{UserResponse: userResponse(u), IsActive: u.IsActive, LastLoginAt: u.LastLoginAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	respondJSON(w, http.StatusOK, out)
}

// ChangeUserRole grants a role. Administrators cannot change their own role.
func (h *AuthHandlers) ChangeUserRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == currentUserID(r) {
		respondJSONError(w, "cannot change your own role", http.StatusConflict)
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	u, err := h.userService.ChangeRole(r.Context(), userID, req.Role)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt})
}

// SetUserStatus handles /users/{userID}/deactivate and /activate. Deactivation
// also drops every refresh session of the account.
func (h *AuthHandlers) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
	}

	var err error
	switch chi.URLParam(r, "action") {
	case "deactivate":
		if userID == currentUserID(r) {
			respondJSONError(w, "cannot deactivate yourself", http.StatusConflict)
			return
		}
		if err = h.userService.Deactivate(r.Context(), userID, req.Reason); err == nil {
			h.deleteSessions(userID)
		}
	case "activate":
		err = h.userService.Activate(r.Context(), userID)
	default:
		respondJSONError(w, "unknown action", http.StatusBadRequest)
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	u, err := h.userService.Load(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, userStatus(u))
}

func userStatus(u *user.User) AdminUserResponse {
	return AdminUserResponse{
		UserResponse: UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt},
		IsActive:     u.IsActive,
		LastLoginAt:  u.LastLoginAt,
	}
}

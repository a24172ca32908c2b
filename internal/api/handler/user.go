package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/livia-app/livia/internal/api/middleware"
	"github.com/livia-app/livia/internal/api/response"
	"github.com/livia-app/livia/internal/api/validation"
	"github.com/livia-app/livia/internal/auth"
)

// UserService creates users and revokes their sessions.
type UserService interface {
	CreateUser(ctx context.Context, u auth.NewUser) (*auth.Principal, error)
	RevokeUser(ctx context.Context, userID uuid.UUID) error
}

// UserHandler handles user administration. Super admins only.
type UserHandler struct {
	svc  UserService
	repo auth.UserRepository
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc UserService, repo auth.UserRepository) *UserHandler {
	return &UserHandler{svc: svc, repo: repo}
}

// Create handles POST /admin/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req auth.NewUser
	if !decode(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateCreateUser(req)) {
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)

	p, err := h.svc.CreateUser(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			response.Err(w, http.StatusConflict, "DUPLICATE_EMAIL", "A user with that email already exists", requestID)
		case errors.Is(err, auth.ErrUnknownTenant):
			unknownReference(w, r, "tenantId", "tenant does not exist")
		default:
			internalError(w, r, "Failed to create user", err)
		}
		return
	}

	response.Success(w, http.StatusCreated, p, requestID)
}

// List handles GET /admin/users, optionally filtered by ?tenantId=.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := listScope(w, r)
	if !ok {
		return
	}

	users, err := h.repo.List(r.Context(), auth.ListFilter{TenantID: tenantID})
	if err != nil {
		internalError(w, r, "Failed to list users", err)
		return
	}
	response.SuccessList(w, http.StatusOK, users, len(users), middleware.GetRequestID(r.Context()))
}

// GetByID handles GET /admin/users/{id}.
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			notFound(w, r, "User")
			return
		}
		internalError(w, r, "Failed to get user", err, "id", id)
		return
	}
	response.Success(w, http.StatusOK, p, middleware.GetRequestID(r.Context()))
}

// Update handles PATCH /admin/users/{id}. Deactivating a user revokes
// every live session they hold.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch auth.Patch
	if !decode(w, r, &patch) {
		return
	}
	if invalid(w, r, validation.ValidateUpdateUser(patch)) {
		return
	}
	deactivating := patch.IsActive != nil && !*patch.IsActive
	if deactivating && h.isSelf(r, id) {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Cannot deactivate your own account", middleware.GetRequestID(r.Context()))
		return
	}

	p, err := h.repo.Update(r.Context(), id, patch)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			notFound(w, r, "User")
			return
		}
		internalError(w, r, "Failed to update user", err, "id", id)
		return
	}

	if deactivating {
		if err := h.svc.RevokeUser(r.Context(), id); err != nil {
			internalError(w, r, "Failed to revoke user sessions", err, "id", id)
			return
		}
	}

	response.Success(w, http.StatusOK, p, middleware.GetRequestID(r.Context()))
}

// Delete handles DELETE /admin/users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if h.isSelf(r, id) {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Cannot delete your own account", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.svc.RevokeUser(r.Context(), id); err != nil {
		internalError(w, r, "Failed to revoke user sessions", err, "id", id)
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			notFound(w, r, "User")
			return
		}
		internalError(w, r, "Failed to delete user", err, "id", id)
		return
	}

	response.NoContent(w)
}

func (h *UserHandler) isSelf(r *http.Request, id uuid.UUID) bool {
	p := middleware.GetPrincipal(r.Context())
	return p != nil && p.ID == id
}

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/livia-app/livia/internal/api/middleware"
	"github.com/livia-app/livia/internal/api/response"
	"github.com/livia-app/livia/internal/api/validation"
	"github.com/livia-app/livia/internal/tenant"
)

// TenantHandler handles tenant CRUD endpoints. Super admins only.
type TenantHandler struct {
	repo tenant.Repository
}

// NewTenantHandler creates a new TenantHandler.
func NewTenantHandler(repo tenant.Repository) *TenantHandler {
	return &TenantHandler{repo: repo}
}

// Create handles POST /admin/tenants.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req tenant.NewTenant
	if !decode(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateCreateTenant(req)) {
		return
	}

	t := &tenant.Tenant{
		Name:        strings.TrimSpace(req.Name),
		Document:    strings.TrimSpace(req.Document),
		Plan:        req.Plan,
		NeurocoreID: req.NeurocoreID,
	}
	if t.Plan == "" {
		t.Plan = validation.Plans[0]
	}

	if err := h.repo.Create(r.Context(), t); err != nil {
		if errors.Is(err, tenant.ErrDuplicateTenantName) {
			response.Err(w, http.StatusConflict, "DUPLICATE_NAME", fmt.Sprintf("A tenant named %q already exists", t.Name), requestID)
			return
		}
		internalError(w, r, "Failed to create tenant", err)
		return
	}

	response.Success(w, http.StatusCreated, t, requestID)
}

// List handles GET /admin/tenants.
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.repo.List(r.Context())
	if err != nil {
		internalError(w, r, "Failed to list tenants", err)
		return
	}
	response.SuccessList(w, http.StatusOK, tenants, len(tenants), middleware.GetRequestID(r.Context()))
}

// GetByID handles GET /admin/tenants/{id}.
func (h *TenantHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	t, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			notFound(w, r, "Tenant")
			return
		}
		internalError(w, r, "Failed to get tenant", err, "id", id)
		return
	}

	response.Success(w, http.StatusOK, t, middleware.GetRequestID(r.Context()))
}

// Update handles PATCH /admin/tenants/{id}.
func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch tenant.Patch
	if !decode(w, r, &patch) {
		return
	}
	if invalid(w, r, validation.ValidateUpdateTenant(patch)) {
		return
	}

	t, err := h.repo.Update(r.Context(), id, patch)
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrTenantNotFound):
			notFound(w, r, "Tenant")
		case errors.Is(err, tenant.ErrDuplicateTenantName):
			response.Err(w, http.StatusConflict, "DUPLICATE_NAME", "A tenant with that name already exists", requestID)
		default:
			internalError(w, r, "Failed to update tenant", err, "id", id)
		}
		return
	}

	response.Success(w, http.StatusOK, t, requestID)
}

// Delete handles DELETE /admin/tenants/{id}.
func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, tenant.ErrTenantNotFound):
			notFound(w, r, "Tenant")
		case errors.Is(err, tenant.ErrTenantHasUsers):
			response.Err(w, http.StatusConflict, "TENANT_HAS_USERS", "Cannot delete a tenant that still has users", middleware.GetRequestID(r.Context()))
		default:
			internalError(w, r, "Failed to delete tenant", err, "id", id)
		}
		return
	}

	response.NoContent(w)
}

// Package handler implements the HTTP endpoints of the LIVIA API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/livia-app/livia/internal/api/middleware"
	"github.com/livia-app/livia/internal/api/response"
	"github.com/livia-app/livia/internal/api/validation"
	"github.com/livia-app/livia/internal/auth"
)

const maxBodyBytes = 1 << 20

// decode reads a JSON body into v, answering 400 INVALID_JSON on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

// invalid answers 400 VALIDATION_ERROR when errs is non-empty.
func invalid(w http.ResponseWriter, r *http.Request, errs []validation.FieldError) bool {
	if len(errs) == 0 {
		return false
	}
	response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", errs, middleware.GetRequestID(r.Context()))
	return true
}

// pathID parses the {id} URL parameter, answering 400 INVALID_ID on failure.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", middleware.GetRequestID(r.Context()))
		return uuid.Nil, false
	}
	return id, true
}

// listScope returns the tenant a listing is restricted to. Tenant users
// are pinned to their own tenant; super admins may pass ?tenantId=.
func listScope(w http.ResponseWriter, r *http.Request) (*uuid.UUID, bool) {
	p := middleware.GetPrincipal(r.Context())
	if p != nil && p.Role == auth.RoleTenantUser {
		return p.TenantID, true
	}
	raw := r.URL.Query().Get("tenantId")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed",
			[]validation.FieldError{{Field: "tenantId", Message: "tenantId must be a valid UUID"}},
			middleware.GetRequestID(r.Context()))
		return nil, false
	}
	return &id, true
}

// ownTenant forces requested to the caller's tenant for tenant users.
func ownTenant(r *http.Request, requested *uuid.UUID) *uuid.UUID {
	p := middleware.GetPrincipal(r.Context())
	if p != nil && p.Role == auth.RoleTenantUser {
		return p.TenantID
	}
	return requested
}

// visible reports whether the caller may see a row of tenantID. Rows of
// other tenants are answered as missing.
func visible(r *http.Request, tenantID uuid.UUID) bool {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		return false
	}
	if p.Role == auth.RoleSuperAdmin {
		return true
	}
	return p.TenantID != nil && *p.TenantID == tenantID
}

func notFound(w http.ResponseWriter, r *http.Request, what string) {
	response.Err(w, http.StatusNotFound, "NOT_FOUND", what+" not found", middleware.GetRequestID(r.Context()))
}

func internalError(w http.ResponseWriter, r *http.Request, msg string, err error, args ...any) {
	requestID := middleware.GetRequestID(r.Context())
	slog.Error(msg, append([]any{"error", err, "requestId", requestID}, args...)...)
	response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", msg, requestID)
}

func unknownReference(w http.ResponseWriter, r *http.Request, field, message string) {
	response.ErrWithDetails(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Input validation failed",
		[]validation.FieldError{{Field: field, Message: message}}, middleware.GetRequestID(r.Context()))
}

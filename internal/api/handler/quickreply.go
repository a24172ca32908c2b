package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/livia-app/livia/internal/api/middleware"
	"github.com/livia-app/livia/internal/api/response"
	"github.com/livia-app/livia/internal/api/validation"
	"github.com/livia-app/livia/internal/quickreply"
)

// QuickReplyHandler handles quick reply endpoints for both areas.
type QuickReplyHandler struct {
	repo quickreply.Repository
}

// NewQuickReplyHandler creates a new QuickReplyHandler.
func NewQuickReplyHandler(repo quickreply.Repository) *QuickReplyHandler {
	return &QuickReplyHandler{repo: repo}
}

// Create handles POST {area}/quick-replies.
func (h *QuickReplyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req quickreply.NewQuickReply
	if !decode(w, r, &req) {
		return
	}
	req.TenantID = ownTenant(r, req.TenantID)
	if invalid(w, r, validation.ValidateCreateQuickReply(req)) {
		return
	}

	q := &quickreply.QuickReply{
		TenantID: *req.TenantID,
		Title:    strings.TrimSpace(req.Title),
		Message:  req.Message,
		IsActive: true,
	}
	if err := h.repo.Create(r.Context(), q); err != nil {
		if errors.Is(err, quickreply.ErrUnknownTenant) {
			unknownReference(w, r, "tenantId", "tenant does not exist")
			return
		}
		internalError(w, r, "Failed to create quick reply", err)
		return
	}

	response.Success(w, http.StatusCreated, q, middleware.GetRequestID(r.Context()))
}

// List handles GET {area}/quick-replies, most used first.
func (h *QuickReplyHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := listScope(w, r)
	if !ok {
		return
	}

	items, err := h.repo.List(r.Context(), quickreply.ListFilter{TenantID: tenantID})
	if err != nil {
		internalError(w, r, "Failed to list quick replies", err)
		return
	}
	response.SuccessList(w, http.StatusOK, items, len(items), middleware.GetRequestID(r.Context()))
}

// GetByID handles GET {area}/quick-replies/{id}.
func (h *QuickReplyHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	q, ok := h.load(w, r)
	if !ok {
		return
	}
	response.Success(w, http.StatusOK, q, middleware.GetRequestID(r.Context()))
}

// Update handles PATCH {area}/quick-replies/{id}.
func (h *QuickReplyHandler) Update(w http.ResponseWriter, r *http.Request) {
	q, ok := h.load(w, r)
	if !ok {
		return
	}
	var patch quickreply.Patch
	if !decode(w, r, &patch) {
		return
	}
	if invalid(w, r, validation.ValidateUpdateQuickReply(patch)) {
		return
	}

	updated, err := h.repo.Update(r.Context(), q.ID, patch)
	if err != nil {
		if errors.Is(err, quickreply.ErrQuickReplyNotFound) {
			notFound(w, r, "Quick reply")
			return
		}
		internalError(w, r, "Failed to update quick reply", err, "id", q.ID)
		return
	}
	response.Success(w, http.StatusOK, updated, middleware.GetRequestID(r.Context()))
}

// Delete handles DELETE {area}/quick-replies/{id}.
func (h *QuickReplyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	q, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), q.ID); err != nil {
		if errors.Is(err, quickreply.ErrQuickReplyNotFound) {
			notFound(w, r, "Quick reply")
			return
		}
		internalError(w, r, "Failed to delete quick reply", err, "id", q.ID)
		return
	}
	response.NoContent(w)
}

// Use handles POST /dashboard/quick-replies/{id}/use.
func (h *QuickReplyHandler) Use(w http.ResponseWriter, r *http.Request) {
	q, ok := h.load(w, r)
	if !ok {
		return
	}

	updated, err := h.repo.IncrementUsage(r.Context(), q.ID)
	if err != nil {
		if errors.Is(err, quickreply.ErrQuickReplyNotFound) {
			notFound(w, r, "Quick reply")
			return
		}
		internalError(w, r, "Failed to record quick reply use", err, "id", q.ID)
		return
	}
	response.Success(w, http.StatusOK, updated, middleware.GetRequestID(r.Context()))
}

func (h *QuickReplyHandler) load(w http.ResponseWriter, r *http.Request) (*quickreply.QuickReply, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	q, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, quickreply.ErrQuickReplyNotFound) {
			notFound(w, r, "Quick reply")
			return nil, false
		}
		internalError(w, r, "Failed to get quick reply", err, "id", id)
		return nil, false
	}
	if !visible(r, q.TenantID) {
		notFound(w, r, "Quick reply")
		return nil, false
	}
	return q, true
}

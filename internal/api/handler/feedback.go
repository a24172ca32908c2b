package handler

import (
	"errors"
	"net/http"

	"github.com/livia-app/livia/internal/api/middleware"
	"github.com/livia-app/livia/internal/api/response"
	"github.com/livia-app/livia/internal/api/validation"
	"github.com/livia-app/livia/internal/feedback"
)

// FeedbackHandler handles feedback endpoints for both areas.
type FeedbackHandler struct {
	repo feedback.Repository
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(repo feedback.Repository) *FeedbackHandler {
	return &FeedbackHandler{repo: repo}
}

// Create handles POST {area}/feedbacks.
func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req feedback.NewFeedback
	if !decode(w, r, &req) {
		return
	}
	req.TenantID = ownTenant(r, req.TenantID)
	if invalid(w, r, validation.ValidateCreateFeedback(req)) {
		return
	}

	f := &feedback.Feedback{
		TenantID:       *req.TenantID,
		ConversationID: req.ConversationID,
		MessageID:      req.MessageID,
		Rating:         req.Rating,
		Comment:        req.Comment,
		Status:         feedback.StatusPending,
	}
	if err := h.repo.Create(r.Context(), f); err != nil {
		if errors.Is(err, feedback.ErrUnknownReference) {
			unknownReference(w, r, "conversationId", "tenant or conversation does not exist")
			return
		}
		internalError(w, r, "Failed to create feedback", err)
		return
	}

	response.Success(w, http.StatusCreated, f, middleware.GetRequestID(r.Context()))
}

// List handles GET {area}/feedbacks, optionally filtered by ?status=.
func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := listScope(w, r)
	if !ok {
		return
	}
	filter := feedback.ListFilter{TenantID: tenantID}
	if s := r.URL.Query().Get("status"); s != "" {
		if invalid(w, r, validation.ValidateUpdateFeedback(feedback.Patch{Status: &s})) {
			return
		}
		filter.Status = &s
	}

	items, err := h.repo.List(r.Context(), filter)
	if err != nil {
		internalError(w, r, "Failed to list feedbacks", err)
		return
	}
	response.SuccessList(w, http.StatusOK, items, len(items), middleware.GetRequestID(r.Context()))
}

// GetByID handles GET {area}/feedbacks/{id}.
func (h *FeedbackHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	f, ok := h.load(w, r)
	if !ok {
		return
	}
	response.Success(w, http.StatusOK, f, middleware.GetRequestID(r.Context()))
}

// Update handles PATCH {area}/feedbacks/{id}.
func (h *FeedbackHandler) Update(w http.ResponseWriter, r *http.Request) {
	f, ok := h.load(w, r)
	if !ok {
		return
	}
	var patch feedback.Patch
	if !decode(w, r, &patch) {
		return
	}
	if invalid(w, r, validation.ValidateUpdateFeedback(patch)) {
		return
	}

	updated, err := h.repo.Update(r.Context(), f.ID, patch)
	if err != nil {
		if errors.Is(err, feedback.ErrFeedbackNotFound) {
			notFound(w, r, "Feedback")
			return
		}
		internalError(w, r, "Failed to update feedback", err, "id", f.ID)
		return
	}
	response.Success(w, http.StatusOK, updated, middleware.GetRequestID(r.Context()))
}

// Delete handles DELETE {area}/feedbacks/{id}.
func (h *FeedbackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	f, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), f.ID); err != nil {
		if errors.Is(err, feedback.ErrFeedbackNotFound) {
			notFound(w, r, "Feedback")
			return
		}
		internalError(w, r, "Failed to delete feedback", err, "id", f.ID)
		return
	}
	response.NoContent(w)
}

func (h *FeedbackHandler) load(w http.ResponseWriter, r *http.Request) (*feedback.Feedback, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	f, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, feedback.ErrFeedbackNotFound) {
			notFound(w, r, "Feedback")
			return nil, false
		}
		internalError(w, r, "Failed to get feedback", err, "id", id)
		return nil, false
	}
	if !visible(r, f.TenantID) {
		notFound(w, r, "Feedback")
		return nil, false
	}
	return f, true
}

package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/livia-app/livia/internal/api/middleware"
	"github.com/livia-app/livia/internal/api/response"
	"github.com/livia-app/livia/internal/api/validation"
	"github.com/livia-app/livia/internal/conversation"
)

// ConversationHandler handles conversation endpoints for both areas.
type ConversationHandler struct {
	repo conversation.Repository
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(repo conversation.Repository) *ConversationHandler {
	return &ConversationHandler{repo: repo}
}

// Create handles POST {area}/conversations.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req conversation.NewConversation
	if !decode(w, r, &req) {
		return
	}
	req.TenantID = ownTenant(r, req.TenantID)
	if invalid(w, r, validation.ValidateCreateConversation(req)) {
		return
	}

	c := &conversation.Conversation{
		TenantID:     *req.TenantID,
		AgentID:      req.AgentID,
		ContactName:  strings.TrimSpace(req.ContactName),
		ContactPhone: req.ContactPhone,
		Status:       conversation.StatusOpen,
	}
	if err := h.repo.Create(r.Context(), c); err != nil {
		if errors.Is(err, conversation.ErrUnknownReference) {
			unknownReference(w, r, "agentId", "tenant or agent does not exist")
			return
		}
		internalError(w, r, "Failed to create conversation", err)
		return
	}

	response.Success(w, http.StatusCreated, c, middleware.GetRequestID(r.Context()))
}

// List handles GET {area}/conversations, optionally filtered by ?status=.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := listScope(w, r)
	if !ok {
		return
	}
	filter := conversation.ListFilter{TenantID: tenantID}
	if s := r.URL.Query().Get("status"); s != "" {
		if invalid(w, r, validation.ValidateUpdateConversation(conversation.Patch{Status: &s})) {
			return
		}
		filter.Status = &s
	}

	convs, err := h.repo.List(r.Context(), filter)
	if err != nil {
		internalError(w, r, "Failed to list conversations", err)
		return
	}
	response.SuccessList(w, http.StatusOK, convs, len(convs), middleware.GetRequestID(r.Context()))
}

// GetByID handles GET {area}/conversations/{id}.
func (h *ConversationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	response.Success(w, http.StatusOK, c, middleware.GetRequestID(r.Context()))
}

// Update handles PATCH {area}/conversations/{id}.
func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	var patch conversation.Patch
	if !decode(w, r, &patch) {
		return
	}
	if invalid(w, r, validation.ValidateUpdateConversation(patch)) {
		return
	}

	updated, err := h.repo.Update(r.Context(), c.ID, patch)
	if err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			notFound(w, r, "Conversation")
			return
		}
		internalError(w, r, "Failed to update conversation", err, "id", c.ID)
		return
	}
	response.Success(w, http.StatusOK, updated, middleware.GetRequestID(r.Context()))
}

// Delete handles DELETE {area}/conversations/{id}.
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), c.ID); err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			notFound(w, r, "Conversation")
			return
		}
		internalError(w, r, "Failed to delete conversation", err, "id", c.ID)
		return
	}
	response.NoContent(w)
}

func (h *ConversationHandler) load(w http.ResponseWriter, r *http.Request) (*conversation.Conversation, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	c, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			notFound(w, r, "Conversation")
			return nil, false
		}
		internalError(w, r, "Failed to get conversation", err, "id", id)
		return nil, false
	}
	if !visible(r, c.TenantID) {
		notFound(w, r, "Conversation")
		return nil, false
	}
	return c, true
}

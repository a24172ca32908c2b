package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/livia-app/livia/internal/api/middleware"
	"github.com/livia-app/livia/internal/api/response"
	"github.com/livia-app/livia/internal/api/validation"
	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/conversation"
	"github.com/livia-app/livia/internal/workflow"
)

// WorkflowHandler proxies side-effect calls to the workflow engine.
type WorkflowHandler struct {
	caller        workflow.Caller
	conversations conversation.Repository
}

// NewWorkflowHandler creates a new WorkflowHandler. A nil caller answers
// every call with 503.
func NewWorkflowHandler(caller workflow.Caller, conversations conversation.Repository) *WorkflowHandler {
	return &WorkflowHandler{caller: caller, conversations: conversations}
}

// Proxy handles POST {area}/workflow. Tenant callers always act on their
// own tenant and only on their own conversations.
func (h *WorkflowHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p := middleware.GetPrincipal(r.Context())

	var req workflow.Request
	if !decode(w, r, &req) {
		return
	}
	if !workflow.Allowed(req.Endpoint) {
		invalid(w, r, []validation.FieldError{{Field: "endpoint", Message: "endpoint is not an allowed workflow"}})
		return
	}
	if req.Data == nil {
		req.Data = map[string]any{}
	}

	if p.Role == auth.RoleTenantUser {
		if req.Endpoint == workflow.TrainKnowledgeBase {
			response.Err(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", requestID)
			return
		}
		req.Data["tenantId"] = p.TenantID.String()
	}

	if raw, ok := req.Data["conversationId"]; ok {
		if !h.conversationVisible(w, r, raw) {
			return
		}
	}

	if h.caller == nil {
		response.Err(w, http.StatusServiceUnavailable, "WORKFLOW_UNAVAILABLE", "Workflow engine is not configured", requestID)
		return
	}

	out, err := h.caller.Call(r.Context(), req.Endpoint, req.Data, p.ID)
	if err != nil {
		slog.Warn("workflow call failed", "endpoint", req.Endpoint, "error", err, "requestId", requestID)
		var upstream *workflow.UpstreamError
		switch {
		case errors.Is(err, workflow.ErrNotConfigured):
			response.Err(w, http.StatusServiceUnavailable, "WORKFLOW_UNAVAILABLE", "Workflow engine is not configured", requestID)
		case errors.Is(err, workflow.ErrUnknownEndpoint):
			invalid(w, r, []validation.FieldError{{Field: "endpoint", Message: "endpoint is not an allowed workflow"}})
		case errors.As(err, &upstream):
			response.ErrWithDetails(w, http.StatusBadGateway, "WORKFLOW_ERROR", "Workflow engine rejected the call",
				[]validation.FieldError{{Field: "endpoint", Message: fmt.Sprintf("workflow engine answered %d", upstream.StatusCode)}}, requestID)
		default:
			response.Err(w, http.StatusBadGateway, "WORKFLOW_ERROR", "Workflow engine is unreachable", requestID)
		}
		return
	}

	response.Success(w, http.StatusOK, out, requestID)
}

func (h *WorkflowHandler) conversationVisible(w http.ResponseWriter, r *http.Request, raw any) bool {
	s, _ := raw.(string)
	id, err := uuid.Parse(s)
	if err != nil {
		invalid(w, r, []validation.FieldError{{Field: "data.conversationId", Message: "conversationId must be a valid UUID"}})
		return false
	}
	c, err := h.conversations.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			notFound(w, r, "Conversation")
			return false
		}
		internalError(w, r, "Failed to get conversation", err, "id", id)
		return false
	}
	if !visible(r, c.TenantID) {
		notFound(w, r, "Conversation")
		return false
	}
	return true
}

package handler

import (
	"context"
	"net/http"

	"github.com/livia-app/livia/internal/agent"
	"github.com/livia-app/livia/internal/api/middleware"
	"github.com/livia-app/livia/internal/api/response"
	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/conversation"
	"github.com/livia-app/livia/internal/feedback"
	"github.com/livia-app/livia/internal/tenant"
)

// SummaryHandler serves the landing counters of /admin and /dashboard.
type SummaryHandler struct {
	tenants       tenant.Repository
	agents        agent.Repository
	users         auth.UserRepository
	conversations conversation.Repository
	feedbacks     feedback.Repository
}

// NewSummaryHandler creates a new SummaryHandler.
func NewSummaryHandler(tenants tenant.Repository, agents agent.Repository, users auth.UserRepository,
	conversations conversation.Repository, feedbacks feedback.Repository) *SummaryHandler {
	return &SummaryHandler{tenants: tenants, agents: agents, users: users, conversations: conversations, feedbacks: feedbacks}
}

// Admin handles GET /admin.
func (h *SummaryHandler) Admin(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, []counter{
		{"tenants", h.tenants.Count},
		{"agents", func(ctx context.Context) (int, error) {
			items, err := h.agents.List(ctx, agent.ListFilter{})
			return len(items), err
		}},
		{"users", func(ctx context.Context) (int, error) {
			items, err := h.users.List(ctx, auth.ListFilter{})
			return len(items), err
		}},
	})
}

// Dashboard handles GET /dashboard for the caller's tenant.
func (h *SummaryHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetPrincipal(r.Context()).TenantID
	open := conversation.StatusOpen
	pending := feedback.StatusPending

	h.serve(w, r, []counter{
		{"agents", func(ctx context.Context) (int, error) {
			items, err := h.agents.List(ctx, agent.ListFilter{TenantID: tenantID})
			return len(items), err
		}},
		{"openConversations", func(ctx context.Context) (int, error) {
			items, err := h.conversations.List(ctx, conversation.ListFilter{TenantID: tenantID, Status: &open})
			return len(items), err
		}},
		{"pendingFeedbacks", func(ctx context.Context) (int, error) {
			items, err := h.feedbacks.List(ctx, feedback.ListFilter{TenantID: tenantID, Status: &pending})
			return len(items), err
		}},
	})
}

type counter struct {
	name  string
	count func(context.Context) (int, error)
}

func (h *SummaryHandler) serve(w http.ResponseWriter, r *http.Request, counters []counter) {
	counts := make(map[string]int, len(counters))
	for _, c := range counters {
		n, err := c.count(r.Context())
		if err != nil {
			internalError(w, r, "Failed to load summary", err, "counter", c.name)
			return
		}
		counts[c.name] = n
	}
	response.Success(w, http.StatusOK, counts, middleware.GetRequestID(r.Context()))
}

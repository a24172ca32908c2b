package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/livia-app/livia/internal/agent"
	"github.com/livia-app/livia/internal/api/middleware"
	"github.com/livia-app/livia/internal/api/response"
	"github.com/livia-app/livia/internal/api/validation"
)

// AgentHandler handles agent CRUD endpoints for both areas.
type AgentHandler struct {
	repo agent.Repository
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(repo agent.Repository) *AgentHandler {
	return &AgentHandler{repo: repo}
}

// Create handles POST {area}/agents.
func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req agent.NewAgent
	if !decode(w, r, &req) {
		return
	}
	req.TenantID = ownTenant(r, req.TenantID)
	if invalid(w, r, validation.ValidateCreateAgent(req)) {
		return
	}

	a := &agent.Agent{
		TenantID:     *req.TenantID,
		Name:         strings.TrimSpace(req.Name),
		Type:         req.Type,
		Persona:      req.Persona,
		Instructions: req.Instructions,
	}
	if err := h.repo.Create(r.Context(), a); err != nil {
		if errors.Is(err, agent.ErrUnknownTenant) {
			unknownReference(w, r, "tenantId", "tenant does not exist")
			return
		}
		internalError(w, r, "Failed to create agent", err)
		return
	}

	response.Success(w, http.StatusCreated, a, middleware.GetRequestID(r.Context()))
}

// List handles GET {area}/agents.
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := listScope(w, r)
	if !ok {
		return
	}

	agents, err := h.repo.List(r.Context(), agent.ListFilter{TenantID: tenantID})
	if err != nil {
		internalError(w, r, "Failed to list agents", err)
		return
	}
	response.SuccessList(w, http.StatusOK, agents, len(agents), middleware.GetRequestID(r.Context()))
}

// GetByID handles GET {area}/agents/{id}.
func (h *AgentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	a, ok := h.load(w, r)
	if !ok {
		return
	}
	response.Success(w, http.StatusOK, a, middleware.GetRequestID(r.Context()))
}

// Update handles PATCH {area}/agents/{id}.
func (h *AgentHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, ok := h.load(w, r)
	if !ok {
		return
	}
	var patch agent.Patch
	if !decode(w, r, &patch) {
		return
	}
	if invalid(w, r, validation.ValidateUpdateAgent(patch)) {
		return
	}

	updated, err := h.repo.Update(r.Context(), a.ID, patch)
	if err != nil {
		if errors.Is(err, agent.ErrAgentNotFound) {
			notFound(w, r, "Agent")
			return
		}
		internalError(w, r, "Failed to update agent", err, "id", a.ID)
		return
	}
	response.Success(w, http.StatusOK, updated, middleware.GetRequestID(r.Context()))
}

// Delete handles DELETE {area}/agents/{id}.
func (h *AgentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), a.ID); err != nil {
		if errors.Is(err, agent.ErrAgentNotFound) {
			notFound(w, r, "Agent")
			return
		}
		internalError(w, r, "Failed to delete agent", err, "id", a.ID)
		return
	}
	response.NoContent(w)
}

// load fetches the {id} agent if the caller may see it.
func (h *AgentHandler) load(w http.ResponseWriter, r *http.Request) (*agent.Agent, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	a, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, agent.ErrAgentNotFound) {
			notFound(w, r, "Agent")
			return nil, false
		}
		internalError(w, r, "Failed to get agent", err, "id", id)
		return nil, false
	}
	if !visible(r, a.TenantID) {
		notFound(w, r, "Agent")
		return nil, false
	}
	return a, true
}

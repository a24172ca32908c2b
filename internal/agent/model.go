package agent

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeReactive = "reactive"
	TypeActive   = "active"
)

// Agent is an AI agent attached to a tenant.
type Agent struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenantId"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Persona      string    `json:"persona"`
	Instructions string    `json:"instructions"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Patch holds user-updatable fields on an agent. Nil fields are not updated.
type Patch struct {
	Name         *string `json:"name,omitempty"`
	Persona      *string `json:"persona,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
	IsActive     *bool   `json:"isActive,omitempty"`
}

// Apply returns a with the patch merged in.
func (p Patch) Apply(a Agent) Agent {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Persona != nil {
		a.Persona = *p.Persona
	}
	if p.Instructions != nil {
		a.Instructions = *p.Instructions
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
	return a
}

// ListFilter narrows an agent listing. A nil TenantID lists every agent.
type ListFilter struct {
	TenantID *uuid.UUID
}

// NewAgent is the input for creating an agent. TenantID is required from
// super admins and forced to the caller's tenant for tenant users.
type NewAgent struct {
	TenantID     *uuid.UUID `json:"tenantId,omitempty"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Persona      string     `json:"persona"`
	Instructions string     `json:"instructions"`
}

package conversation

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Conversation is a WhatsApp chat between a contact and a tenant.
type Conversation struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenantId"`
	AgentID       *uuid.UUID `json:"agentId"`
	ContactName   string     `json:"contactName"`
	ContactPhone  string     `json:"contactPhone"`
	Status        string     `json:"status"`
	AIPaused      bool       `json:"aiPaused"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Patch holds user-updatable fields on a conversation.
type Patch struct {
	Status   *string `json:"status,omitempty"`
	AIPaused *bool   `json:"aiPaused,omitempty"`
}

// Apply returns c with the patch merged in.
func (p Patch) Apply(c Conversation) Conversation {
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.AIPaused != nil {
		c.AIPaused = *p.AIPaused
	}
	return c
}

// ListFilter narrows a conversation listing.
type ListFilter struct {
	TenantID *uuid.UUID
	Status   *string
}

// NewConversation is the input for opening a conversation.
type NewConversation struct {
	TenantID     *uuid.UUID `json:"tenantId,omitempty"`
	AgentID      *uuid.UUID `json:"agentId,omitempty"`
	ContactName  string     `json:"contactName"`
	ContactPhone string     `json:"contactPhone"`
}

package quickreply

import (
	"time"

	"github.com/google/uuid"
)

// QuickReply is a canned message tenant users insert into a chat.
type QuickReply struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenantId"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	UsageCount int       `json:"usageCount"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Patch holds user-updatable fields on a quick reply.
type Patch struct {
	Title    *string `json:"title,omitempty"`
	Message  *string `json:"message,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// Apply returns q with the patch merged in.
func (p Patch) Apply(q QuickReply) QuickReply {
	if p.Title != nil {
		q.Title = *p.Title
	}
	if p.Message != nil {
		q.Message = *p.Message
	}
	if p.IsActive != nil {
		q.IsActive = *p.IsActive
	}
	return q
}

// ListFilter narrows a quick reply listing.
type ListFilter struct {
	TenantID *uuid.UUID
}

// NewQuickReply is the input for creating a quick reply.
type NewQuickReply struct {
	TenantID *uuid.UUID `json:"tenantId,omitempty"`
	Title    string     `json:"title"`
	Message  string     `json:"message"`
}

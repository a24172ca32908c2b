package feedback

import (
	"time"

	"github.com/google/uuid"
)

const (
	RatingPositive = "positive"
	RatingNegative = "negative"

	StatusPending  = "pending"
	StatusResolved = "resolved"
)

// Feedback is a rating left on an AI answer inside a conversation.
type Feedback struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenantId"`
	ConversationID *uuid.UUID `json:"conversationId"`
	MessageID      *string    `json:"messageId"`
	Rating         string     `json:"rating"`
	Comment        string     `json:"comment"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Patch holds user-updatable fields on a feedback.
type Patch struct {
	Status  *string `json:"status,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

// Apply returns f with the patch merged in.
func (p Patch) Apply(f Feedback) Feedback {
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.Comment != nil {
		f.Comment = *p.Comment
	}
	return f
}

// ListFilter narrows a feedback listing.
type ListFilter struct {
	TenantID *uuid.UUID
	Status   *string
}

// NewFeedback is the input for recording a feedback.
type NewFeedback struct {
	TenantID       *uuid.UUID `json:"tenantId,omitempty"`
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
	MessageID      *string    `json:"messageId,omitempty"`
	Rating         string     `json:"rating"`
	Comment        string     `json:"comment"`
}

package conversation

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrConversationNotFound is returned when a conversation record is not found.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrUnknownReference is returned when the tenant or a referenced record does not exist.
var ErrUnknownReference = errors.New("referenced record does not exist")

// Repository provides CRUD operations on the conversations table.
type Repository interface {
	Create(ctx context.Context, c *Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error)
	List(ctx context.Context, filter ListFilter) ([]Conversation, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*Conversation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

package quickreply

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrQuickReplyNotFound is returned when a quick reply record is not found.
var ErrQuickReplyNotFound = errors.New("quick reply not found")

// ErrUnknownTenant is returned when the referenced tenant does not exist.
var ErrUnknownTenant = errors.New("tenant does not exist")

// Repository provides CRUD operations on the quick_replies table.
type Repository interface {
	Create(ctx context.Context, q *QuickReply) error
	GetByID(ctx context.Context, id uuid.UUID) (*QuickReply, error)
	List(ctx context.Context, filter ListFilter) ([]QuickReply, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*QuickReply, error)
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementUsage(ctx context.Context, id uuid.UUID) (*QuickReply, error)
}

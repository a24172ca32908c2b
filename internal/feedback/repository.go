package feedback

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrFeedbackNotFound is returned when a feedback record is not found.
var ErrFeedbackNotFound = errors.New("feedback not found")

// ErrUnknownReference is returned when the tenant or a referenced record does not exist.
var ErrUnknownReference = errors.New("referenced record does not exist")

// Repository provides CRUD operations on the feedbacks table.
type Repository interface {
	Create(ctx context.Context, f *Feedback) error
	GetByID(ctx context.Context, id uuid.UUID) (*Feedback, error)
	List(ctx context.Context, filter ListFilter) ([]Feedback, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*Feedback, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

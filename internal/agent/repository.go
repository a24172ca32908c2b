package agent

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrAgentNotFound is returned when an agent record is not found.
var ErrAgentNotFound = errors.New("agent not found")

// ErrUnknownTenant is returned when the referenced tenant does not exist.
var ErrUnknownTenant = errors.New("tenant does not exist")

// Repository provides CRUD operations on the agents table.
type Repository interface {
	Create(ctx context.Context, a *Agent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Agent, error)
	List(ctx context.Context, filter ListFilter) ([]Agent, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*Agent, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

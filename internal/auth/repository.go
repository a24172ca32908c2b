package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a profile or credential record is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned when the email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrUnknownTenant is returned when a profile references a missing tenant.
var ErrUnknownTenant = errors.New("tenant does not exist")

// UserRepository provides operations on credentials and profiles.
type UserRepository interface {
	Create(ctx context.Context, u NewUser, passwordHash string) (*Principal, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Principal, error)
	GetCredentialsByEmail(ctx context.Context, email string) (*Credentials, error)
	List(ctx context.Context, filter ListFilter) ([]Principal, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*Principal, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountSuperAdmins(ctx context.Context) (int, error)
}

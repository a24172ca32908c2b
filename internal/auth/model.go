package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role is the access role carried by a profile.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleTenantUser Role = "tenant_user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleSuperAdmin || r == RoleTenantUser
}

// ErrInvalidPrincipal is returned when a profile violates the role/tenant invariant.
var ErrInvalidPrincipal = errors.New("principal role and tenant do not agree")

// Principal is the authenticated, role-bearing user profile.
type Principal struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  *uuid.UUID `json:"tenantId"` // nil for super_admin
	Role      Role       `json:"role"`
	IsActive  bool       `json:"isActive"`
	FullName  string     `json:"fullName"`
	Email     string     `json:"email"`
	AvatarURL *string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Validate checks that super admins carry no tenant and tenant users carry one.
func (p *Principal) Validate() error {
	switch p.Role {
	case RoleSuperAdmin:
		if p.TenantID != nil {
			return ErrInvalidPrincipal
		}
	case RoleTenantUser:
		if p.TenantID == nil {
			return ErrInvalidPrincipal
		}
	default:
		return ErrInvalidPrincipal
	}
	return nil
}

// Session is an issued access token and its expiry.
type Session struct {
	AccessToken string    `json:"accessToken"`
	UserID      uuid.UUID `json:"userId"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Expired reports whether the session expiry has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Event is a session change notification.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Credentials is the sign-in record backing a profile.
type Credentials struct {
	UserID       uuid.UUID
	Email        string
	PasswordHash string
}

// NewUser is the input for creating a user with credentials and a profile.
type NewUser struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	FullName string     `json:"fullName"`
	Role     Role       `json:"role"`
	TenantID *uuid.UUID `json:"tenantId,omitempty"`
}

// Patch holds the updatable profile fields. Nil fields are left unchanged.
type Patch struct {
	FullName *string `json:"fullName,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// Apply returns p with the patch merged in.
func (pt Patch) Apply(p Principal) Principal {
	if pt.FullName != nil {
		p.FullName = *pt.FullName
	}
	if pt.IsActive != nil {
		p.IsActive = *pt.IsActive
	}
	return p
}

// ListFilter narrows a profile listing. A nil TenantID lists every profile.
type ListFilter struct {
	TenantID *uuid.UUID
}

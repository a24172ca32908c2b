package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is a customer organization.
type Tenant struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Document    string     `json:"document"` // CNPJ
	Plan        string     `json:"plan"`
	NeurocoreID *uuid.UUID `json:"neurocoreId"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Patch holds user-updatable fields on a tenant. Nil fields are not updated.
type Patch struct {
	Name        *string    `json:"name,omitempty"`
	Plan        *string    `json:"plan,omitempty"`
	NeurocoreID *uuid.UUID `json:"neurocoreId,omitempty"`
	IsActive    *bool      `json:"isActive,omitempty"`
}

// Apply returns t with the patch merged in.
func (p Patch) Apply(t Tenant) Tenant {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Plan != nil {
		t.Plan = *p.Plan
	}
	if p.NeurocoreID != nil {
		id := *p.NeurocoreID
		t.NeurocoreID = &id
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	return t
}

// NewTenant is the input for creating a tenant.
type NewTenant struct {
	Name        string     `json:"name"`
	Document    string     `json:"document"`
	Plan        string     `json:"plan"`
	NeurocoreID *uuid.UUID `json:"neurocoreId,omitempty"`
}

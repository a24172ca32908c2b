package validation

import (
	"github.com/livia-app/livia/internal/agent"
	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/conversation"
	"github.com/livia-app/livia/internal/feedback"
	"github.com/livia-app/livia/internal/quickreply"
	"github.com/livia-app/livia/internal/tenant"
)

// Plans lists the billing plans a tenant may be on.
var Plans = []string{"basic", "pro", "enterprise"}

// ValidateLogin validates a sign-in request.
func ValidateLogin(email, password string) []FieldError {
	var c checker
	if !emailRegex.MatchString(email) {
		c.fail("email", "email must be a valid address")
	}
	if password == "" {
		c.fail("password", "password is required")
	}
	return c.result()
}

// ValidateCreateTenant validates a new tenant.
func ValidateCreateTenant(in tenant.NewTenant) []FieldError {
	var c checker
	c.text("name", in.Name, 255)
	c.optionalText("document", in.Document, 32)
	if in.Plan != "" {
		c.oneOf("plan", in.Plan, Plans...)
	}
	return c.result()
}

// ValidateUpdateTenant validates only the fields present in p.
func ValidateUpdateTenant(p tenant.Patch) []FieldError {
	var c checker
	c.patchText("name", p.Name, 255)
	if p.Plan != nil {
		c.oneOf("plan", *p.Plan, Plans...)
	}
	return c.result()
}

// ValidateCreateAgent validates a new agent. TenantID must already be
// resolved for the caller.
func ValidateCreateAgent(in agent.NewAgent) []FieldError {
	var c checker
	c.tenant(in.TenantID)
	c.text("name", in.Name, 255)
	c.oneOf("type", in.Type, agent.TypeReactive, agent.TypeActive)
	c.optionalText("persona", in.Persona, 2000)
	c.optionalText("instructions", in.Instructions, 10000)
	return c.result()
}

// ValidateUpdateAgent validates only the fields present in p.
func ValidateUpdateAgent(p agent.Patch) []FieldError {
	var c checker
	c.patchText("name", p.Name, 255)
	if p.Persona != nil {
		c.optionalText("persona", *p.Persona, 2000)
	}
	if p.Instructions != nil {
		c.optionalText("instructions", *p.Instructions, 10000)
	}
	return c.result()
}

// ValidateCreateConversation validates a new conversation.
func ValidateCreateConversation(in conversation.NewConversation) []FieldError {
	var c checker
	c.tenant(in.TenantID)
	if !phoneRegex.MatchString(in.ContactPhone) {
		c.fail("contactPhone", "contactPhone must be 10 to 15 digits, optionally prefixed by +")
	}
	c.optionalText("contactName", in.ContactName, 255)
	return c.result()
}

// ValidateUpdateConversation validates only the fields present in p.
func ValidateUpdateConversation(p conversation.Patch) []FieldError {
	var c checker
	if p.Status != nil {
		c.oneOf("status", *p.Status, conversation.StatusOpen, conversation.StatusClosed)
	}
	return c.result()
}

// ValidateCreateFeedback validates a new feedback.
func ValidateCreateFeedback(in feedback.NewFeedback) []FieldError {
	var c checker
	c.tenant(in.TenantID)
	c.oneOf("rating", in.Rating, feedback.RatingPositive, feedback.RatingNegative)
	c.optionalText("comment", in.Comment, 2000)
	return c.result()
}

// ValidateUpdateFeedback validates only the fields present in p.
func ValidateUpdateFeedback(p feedback.Patch) []FieldError {
	var c checker
	if p.Status != nil {
		c.oneOf("status", *p.Status, feedback.StatusPending, feedback.StatusResolved)
	}
	if p.Comment != nil {
		c.optionalText("comment", *p.Comment, 2000)
	}
	return c.result()
}

// ValidateCreateQuickReply validates a new quick reply.
func ValidateCreateQuickReply(in quickreply.NewQuickReply) []FieldError {
	var c checker
	c.tenant(in.TenantID)
	c.text("title", in.Title, 100)
	c.text("message", in.Message, 4096)
	return c.result()
}

// ValidateUpdateQuickReply validates only the fields present in p.
func ValidateUpdateQuickReply(p quickreply.Patch) []FieldError {
	var c checker
	c.patchText("title", p.Title, 100)
	c.patchText("message", p.Message, 4096)
	return c.result()
}

// ValidateCreateUser validates a new user. Super admins carry no tenant
// and tenant users must carry one.
func ValidateCreateUser(in auth.NewUser) []FieldError {
	var c checker
	if !emailRegex.MatchString(in.Email) {
		c.fail("email", "email must be a valid address")
	}
	if len(in.Password) < 8 {
		c.fail("password", "password must be at least 8 characters")
	} else if len(in.Password) > 72 {
		c.fail("password", "password must be at most 72 bytes")
	}
	c.text("fullName", in.FullName, 255)
	c.oneOf("role", string(in.Role), string(auth.RoleSuperAdmin), string(auth.RoleTenantUser))
	switch in.Role {
	case auth.RoleSuperAdmin:
		if in.TenantID != nil {
			c.fail("tenantId", "tenantId must be empty for super_admin")
		}
	case auth.RoleTenantUser:
		c.tenant(in.TenantID)
	}
	return c.result()
}

// ValidateUpdateUser validates only the fields present in p.
func ValidateUpdateUser(p auth.Patch) []FieldError {
	var c checker
	c.patchText("fullName", p.FullName, 255)
	return c.result()
}

package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/livia-app/livia/internal/agent"
	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/conversation"
	"github.com/livia-app/livia/internal/quickreply"
	"github.com/livia-app/livia/internal/tenant"
)

func fields(errs []FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestValidateCreateAgent(t *testing.T) {
	tenantID := uuid.New()
	tests := []struct {
		name   string
		in     agent.NewAgent
		fields []string
	}{
		{
			name:   "valid",
			in:     agent.NewAgent{TenantID: &tenantID, Name: "Livia", Type: agent.TypeReactive},
			fields: []string{},
		},
		{
			name:   "missing everything",
			in:     agent.NewAgent{},
			fields: []string{"tenantId", "name", "type"},
		},
		{
			name:   "blank name and bad type",
			in:     agent.NewAgent{TenantID: &tenantID, Name: "   ", Type: "passive"},
			fields: []string{"name", "type"},
		},
		{
			name:   "name too long",
			in:     agent.NewAgent{TenantID: &tenantID, Name: strings.Repeat("a", 256), Type: agent.TypeActive},
			fields: []string{"name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fields, fields(ValidateCreateAgent(tt.in)))
		})
	}
}

func TestValidateUpdateAgent_OnlyChecksPresentFields(t *testing.T) {
	assert.Empty(t, ValidateUpdateAgent(agent.Patch{}))
	assert.Equal(t, []string{"name"}, fields(ValidateUpdateAgent(agent.Patch{Name: ptr("")})))
}

func TestValidateCreateUser_RoleTenantInvariant(t *testing.T) {
	tenantID := uuid.New()
	base := auth.NewUser{Email: "ana@example.com", Password: "s3cret-pass", FullName: "Ana"}

	admin := base
	admin.Role = auth.RoleSuperAdmin
	assert.Empty(t, ValidateCreateUser(admin))

	admin.TenantID = &tenantID
	assert.Equal(t, []string{"tenantId"}, fields(ValidateCreateUser(admin)))

	user := base
	user.Role = auth.RoleTenantUser
	assert.Equal(t, []string{"tenantId"}, fields(ValidateCreateUser(user)))

	user.TenantID = &tenantID
	assert.Empty(t, ValidateCreateUser(user))
}

func TestValidateCreateUser_Credentials(t *testing.T) {
	errs := ValidateCreateUser(auth.NewUser{Email: "nope", Password: "short", FullName: "A", Role: auth.RoleSuperAdmin})
	assert.Equal(t, []string{"email", "password"}, fields(errs))
}

func TestValidateTenant(t *testing.T) {
	assert.Empty(t, ValidateCreateTenant(tenant.NewTenant{Name: "Acme"}))
	assert.Equal(t, []string{"plan"}, fields(ValidateCreateTenant(tenant.NewTenant{Name: "Acme", Plan: "gold"})))
	assert.Equal(t, []string{"name"}, fields(ValidateUpdateTenant(tenant.Patch{Name: ptr(" ")})))
}

func TestValidateConversation(t *testing.T) {
	tenantID := uuid.New()
	assert.Empty(t, ValidateCreateConversation(conversation.NewConversation{TenantID: &tenantID, ContactPhone: "+5511999990000"}))
	assert.Equal(t, []string{"contactPhone"},
		fields(ValidateCreateConversation(conversation.NewConversation{TenantID: &tenantID, ContactPhone: "12ab"})))
	assert.Equal(t, []string{"status"}, fields(ValidateUpdateConversation(conversation.Patch{Status: ptr("archived")})))
}

func TestValidateQuickReply(t *testing.T) {
	tenantID := uuid.New()
	assert.Empty(t, ValidateCreateQuickReply(quickreply.NewQuickReply{TenantID: &tenantID, Title: "Hi", Message: "Hello!"}))
	assert.Equal(t, []string{"title", "message"},
		fields(ValidateCreateQuickReply(quickreply.NewQuickReply{TenantID: &tenantID})))
}

func TestValidateLogin(t *testing.T) {
	assert.Empty(t, ValidateLogin("ana@example.com", "x"))
	assert.Equal(t, []string{"email", "password"}, fields(ValidateLogin("", "")))
}

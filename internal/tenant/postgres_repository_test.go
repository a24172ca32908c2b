package tenant_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livia-app/livia/internal/tenant"
	"github.com/livia-app/livia/internal/testutil"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreate_Success(t *testing.T) {
	repo := tenant.NewRepository(testutil.Postgres(t))
	ctx := context.Background()

	tn := &tenant.Tenant{Name: "Clinica Sorriso", Document: "12345678000190", Plan: "pro", IsActive: true}
	require.NoError(t, repo.Create(ctx, tn))

	assert.NotEqual(t, uuid.Nil, tn.ID)
	assert.False(t, tn.CreatedAt.IsZero())

	found, err := repo.GetByID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Clinica Sorriso", found.Name)
	assert.Equal(t, "pro", found.Plan)
	assert.Nil(t, found.NeurocoreID)
}

func TestCreate_DuplicateName(t *testing.T) {
	repo := tenant.NewRepository(testutil.Postgres(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &tenant.Tenant{Name: "dup", Plan: "basic"}))
	err := repo.Create(ctx, &tenant.Tenant{Name: "dup", Plan: "pro"})
	assert.ErrorIs(t, err, tenant.ErrDuplicateTenantName)
}

func TestGetByID_NotFound(t *testing.T) {
	repo := tenant.NewRepository(testutil.Postgres(t))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestList_OrderedByNameAndCount(t *testing.T) {
	repo := tenant.NewRepository(testutil.Postgres(t))
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, repo.Create(ctx, &tenant.Tenant{Name: name, Plan: "basic"}))
	}

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[2].Name)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUpdate(t *testing.T) {
	repo := tenant.NewRepository(testutil.Postgres(t))
	ctx := context.Background()

	tn := &tenant.Tenant{Name: "before", Plan: "basic", IsActive: true}
	require.NoError(t, repo.Create(ctx, tn))
	other := &tenant.Tenant{Name: "taken", Plan: "basic"}
	require.NoError(t, repo.Create(ctx, other))

	nc := uuid.New()
	updated, err := repo.Update(ctx, tn.ID, tenant.Patch{Name: strPtr("after"), NeurocoreID: &nc, IsActive: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Name)
	assert.Equal(t, &nc, updated.NeurocoreID)
	assert.False(t, updated.IsActive)
	assert.True(t, updated.UpdatedAt.After(tn.UpdatedAt) || updated.UpdatedAt.Equal(tn.UpdatedAt))

	unchanged, err := repo.Update(ctx, tn.ID, tenant.Patch{})
	require.NoError(t, err)
	assert.Equal(t, "after", unchanged.Name)

	_, err = repo.Update(ctx, tn.ID, tenant.Patch{Name: strPtr("taken")})
	assert.ErrorIs(t, err, tenant.ErrDuplicateTenantName)

	_, err = repo.Update(ctx, uuid.New(), tenant.Patch{Name: strPtr("ghost")})
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestDelete(t *testing.T) {
	pool := testutil.Postgres(t)
	repo := tenant.NewRepository(pool)
	ctx := context.Background()

	empty := &tenant.Tenant{Name: "empty", Plan: "basic"}
	require.NoError(t, repo.Create(ctx, empty))
	require.NoError(t, repo.Delete(ctx, empty.ID))
	assert.ErrorIs(t, repo.Delete(ctx, empty.ID), tenant.ErrTenantNotFound)

	busy := &tenant.Tenant{Name: "busy", Plan: "basic"}
	require.NoError(t, repo.Create(ctx, busy))
	_, err := pool.Exec(ctx, `
		WITH u AS (INSERT INTO auth_users (email, password_hash) VALUES ('ana@example.com', 'x') RETURNING id)
		INSERT INTO profiles (id, tenant_id, role, email) SELECT id, $1, 'tenant_user', 'ana@example.com' FROM u`, busy.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Delete(ctx, busy.ID), tenant.ErrTenantHasUsers)
}

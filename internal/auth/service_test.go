package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBcryptCost = 4

// --- Mock User Repository ---

type mockUserRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*Principal
	creds    map[string]*Credentials
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{profiles: map[uuid.UUID]*Principal{}, creds: map[string]*Credentials{}}
}

func (m *mockUserRepo) Create(_ context.Context, u NewUser, hash string) (*Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := m.creds[email]; ok {
		return nil, ErrDuplicateEmail
	}
	p := &Principal{ID: uuid.New(), TenantID: u.TenantID, Role: u.Role, IsActive: true, FullName: u.FullName, Email: email}
	m.creds[email] = &Credentials{UserID: p.ID, Email: email, PasswordHash: hash}
	m.profiles[p.ID] = p
	return p, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, ErrUserNotFound
}

func (m *mockUserRepo) GetCredentialsByEmail(_ context.Context, email string) (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.creds[strings.ToLower(email)]; ok {
		return c, nil
	}
	return nil, ErrUserNotFound
}

func (m *mockUserRepo) List(_ context.Context, _ ListFilter) ([]Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Principal{}
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockUserRepo) Update(_ context.Context, id uuid.UUID, patch Patch) (*Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	*p = patch.Apply(*p)
	cp := *p
	return &cp, nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(m.profiles, id)
	delete(m.creds, p.Email)
	return nil
}

func (m *mockUserRepo) CountSuperAdmins(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.profiles {
		if p.Role == RoleSuperAdmin {
			n++
		}
	}
	return n, nil
}

// --- Helpers ---

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *mockUserRepo) {
	t.Helper()
	store, _ := newTestSessionStore(t)
	repo := newMockUserRepo()
	return NewService(repo, store, testSecret, time.Hour, testBcryptCost, opts...), repo
}

func createTenantUser(t *testing.T, svc *Service) *Principal {
	t.Helper()
	tenantID := uuid.New()
	p, err := svc.CreateUser(context.Background(), NewUser{
		Email: "Ana@Example.com", Password: "correct horse", FullName: "Ana", Role: RoleTenantUser, TenantID: &tenantID,
	})
	require.NoError(t, err)
	return p
}

// --- Tests ---

func TestService_SignInVerifySignOut(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := createTenantUser(t, svc)

	sess, err := svc.SignInWithPassword(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, p.ID, sess.UserID)

	got, err := svc.Verify(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.UserID)

	require.NoError(t, svc.SignOut(ctx, sess.AccessToken))
	_, err = svc.Verify(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestService_SignInRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	createTenantUser(t, svc)

	_, err := svc.SignInWithPassword(context.Background(), "ana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignInWithPassword(context.Background(), "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_RefreshRetiresOldSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createTenantUser(t, svc)

	old, err := svc.SignInWithPassword(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)

	fresh, err := svc.Refresh(ctx, old.AccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, old.AccessToken, fresh.AccessToken)

	_, err = svc.Verify(ctx, old.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = svc.Verify(ctx, fresh.AccessToken)
	assert.NoError(t, err)
}

func TestService_RefreshRejectsInactiveProfile(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	p := createTenantUser(t, svc)

	s1, err := svc.SignInWithPassword(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	s2, err := svc.SignInWithPassword(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)

	inactive := false
	_, err = repo.Update(ctx, p.ID, Patch{IsActive: &inactive})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, s1.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidSession)

	// the sibling session is revoked with it
	_, err = svc.Verify(ctx, s2.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestService_RefreshRejectsDeletedProfile(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	p := createTenantUser(t, svc)

	sess, err := svc.SignInWithPassword(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, p.ID))

	_, err = svc.Refresh(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = svc.Verify(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestService_RevokeUserEndsEverySession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := createTenantUser(t, svc)

	s1, err := svc.SignInWithPassword(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	s2, err := svc.SignInWithPassword(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeUser(ctx, p.ID))

	for _, s := range []*Session{s1, s2} {
		_, err := svc.Verify(ctx, s.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidSession)
	}
}

func TestService_VerifyRejectsExpiredToken(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	svc, _ := newTestService(t, WithClock(clock))
	ctx := context.Background()
	createTenantUser(t, svc)

	sess, err := svc.SignInWithPassword(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = svc.Verify(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidSession)

	// signing out an expired token is a no-op
	assert.NoError(t, svc.SignOut(ctx, sess.AccessToken))
}

func TestService_BootstrapSuperAdmin(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	created, err := svc.BootstrapSuperAdmin(ctx, "root@example.com", "bootstrap-pass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.BootstrapSuperAdmin(ctx, "other@example.com", "bootstrap-pass")
	require.NoError(t, err)
	assert.False(t, created)

	n, err := repo.CountSuperAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPrincipal_Validate(t *testing.T) {
	tenantID := uuid.New()
	tests := []struct {
		name  string
		p     Principal
		valid bool
	}{
		{"super admin without tenant", Principal{Role: RoleSuperAdmin}, true},
		{"super admin with tenant", Principal{Role: RoleSuperAdmin, TenantID: &tenantID}, false},
		{"tenant user with tenant", Principal{Role: RoleTenantUser, TenantID: &tenantID}, true},
		{"tenant user without tenant", Principal{Role: RoleTenantUser}, false},
		{"unknown role", Principal{Role: "owner"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPrincipal)
			}
		})
	}
}

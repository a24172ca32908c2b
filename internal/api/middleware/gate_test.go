package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livia-app/livia/internal/api/middleware"
	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/route"
)

const cookieName = "livia_session"

// --- Fakes ---

type fakeSessions struct {
	mu       sync.Mutex
	live     map[string]uuid.UUID
	verifyFn func(token string) (*auth.Session, error)
	revoked  []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{live: map[string]uuid.UUID{}}
}

func (f *fakeSessions) add(token string, userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[token] = userID
}

func (f *fakeSessions) Verify(_ context.Context, token string) (*auth.Session, error) {
	if f.verifyFn != nil {
		return f.verifyFn(token)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.live[token]
	if !ok {
		return nil, auth.ErrInvalidSession
	}
	return &auth.Session{AccessToken: token, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeSessions) SignOut(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, token)
	f.revoked = append(f.revoked, token)
	return nil
}

type fakeProfiles map[uuid.UUID]*auth.Principal

func (f fakeProfiles) GetProfile(_ context.Context, id uuid.UUID) (*auth.Principal, error) {
	if p, ok := f[id]; ok {
		if p == nil {
			return nil, errors.New("profile store unavailable")
		}
		return p, nil
	}
	return nil, auth.ErrUserNotFound
}

// --- Helpers ---

var tenantID = uuid.MustParse("b0a2f5d8-6c11-4f0e-8a51-3f2d7c9e0a11")

func tenantUser(active bool) *auth.Principal {
	return &auth.Principal{ID: uuid.New(), Role: auth.RoleTenantUser, TenantID: &tenantID, IsActive: active, Email: "ana@example.com"}
}

func superAdmin() *auth.Principal {
	return &auth.Principal{ID: uuid.New(), Role: auth.RoleSuperAdmin, IsActive: true, Email: "root@example.com"}
}

type gateFixture struct {
	sessions *fakeSessions
	profiles fakeProfiles
	handler  http.Handler
	reached  *bool
	seen     **auth.Principal
}

func newGate(t *testing.T) *gateFixture {
	t.Helper()
	reached := false
	var seen *auth.Principal
	f := &gateFixture{
		sessions: newFakeSessions(),
		profiles: fakeProfiles{},
		reached:  &reached,
		seen:     &seen,
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		seen = middleware.GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	f.handler = middleware.Gate(route.Default(), f.sessions, f.profiles, cookieName)(next)
	return f
}

// signIn registers p with a live token and returns the token.
func (f *gateFixture) signIn(p *auth.Principal) string {
	token := "token-" + p.ID.String()
	f.sessions.add(token, p.ID)
	f.profiles[p.ID] = p
	return token
}

func (f *gateFixture) do(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, target string) {
	t.Helper()
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, target, w.Header().Get("Location"))
}

// --- Tests ---

func TestGate_PublicPathsPassWithoutSession(t *testing.T) {
	for _, path := range []string{"/", "/health", "/api/auth/login"} {
		t.Run(path, func(t *testing.T) {
			f := newGate(t)
			w := f.do(path, "")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.True(t, *f.reached)
		})
	}
}

func TestGate_ProtectedPathWithoutSessionRedirectsToLogin(t *testing.T) {
	for _, path := range []string{"/admin", "/dashboard/agents", "/livechat", "/unmapped"} {
		t.Run(path, func(t *testing.T) {
			f := newGate(t)
			w := f.do(path, "")
			assertRedirect(t, w, "/login")
			assert.False(t, *f.reached)
		})
	}
}

func TestGate_InvalidTokenClearsCookie(t *testing.T) {
	f := newGate(t)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "stale"})
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assertRedirect(t, w, "/login")
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookieName, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestGate_BearerTakesPrecedenceOverCookie(t *testing.T) {
	f := newGate(t)
	p := tenantUser(true)
	token := f.signIn(p)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "stale"})
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, *f.seen)
	assert.Equal(t, p.ID, (*f.seen).ID)
}

func TestGate_TenantUserOnAdminPathGoesToOwnDashboard(t *testing.T) {
	// an authenticated tenant user never reaches an admin handler
	f := newGate(t)
	token := f.signIn(tenantUser(true))

	w := f.do("/admin/tenants", token)

	assertRedirect(t, w, "/dashboard")
	assert.False(t, *f.reached)
}

func TestGate_SuperAdminOnTenantPathGoesToAdmin(t *testing.T) {
	f := newGate(t)
	token := f.signIn(superAdmin())

	w := f.do("/dashboard/agents", token)

	assertRedirect(t, w, "/admin")
	assert.False(t, *f.reached)
}

func TestGate_AllowedRolePassesWithPrincipal(t *testing.T) {
	f := newGate(t)
	admin := superAdmin()
	token := f.signIn(admin)

	w := f.do("/admin/users", token)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, *f.seen)
	assert.Equal(t, admin.ID, (*f.seen).ID)
}

func TestGate_InactiveProfileIsTerminatedBeforeRedirect(t *testing.T) {
	f := newGate(t)
	token := f.signIn(tenantUser(false))

	w := f.do("/dashboard", token)

	assertRedirect(t, w, "/login")
	assert.Equal(t, []string{token}, f.sessions.revoked)

	// the same token is no longer accepted anywhere
	w = f.do("/login", token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGate_MissingProfileFailsClosed(t *testing.T) {
	f := newGate(t)
	userID := uuid.New()
	f.sessions.add("orphan", userID)

	w := f.do("/dashboard", "orphan")

	assertRedirect(t, w, "/login")
	assert.Equal(t, []string{"orphan"}, f.sessions.revoked)
}

func TestGate_ProfileLookupErrorFailsClosed(t *testing.T) {
	f := newGate(t)
	userID := uuid.New()
	f.sessions.add("t", userID)
	f.profiles[userID] = nil

	w := f.do("/admin", "t")

	assertRedirect(t, w, "/login")
	assert.False(t, *f.reached)
}

func TestGate_VerifierFailureRedirects(t *testing.T) {
	f := newGate(t)
	f.sessions.verifyFn = func(string) (*auth.Session, error) { return nil, errors.New("redis down") }

	w := f.do("/dashboard", "anything")

	assertRedirect(t, w, "/login")
}

func TestGate_AuthPagesSendActiveUsersToDashboard(t *testing.T) {
	f := newGate(t)
	token := f.signIn(tenantUser(true))

	assertRedirect(t, f.do("/login", token), "/dashboard")
	assertRedirect(t, f.do("/signup", token), "/dashboard")

	f = newGate(t)
	w := f.do("/login", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGate_OwnDashboardDoesNotRedirect(t *testing.T) {
	f := newGate(t)
	token := f.signIn(tenantUser(true))

	w := f.do("/dashboard", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
}

func TestRequireClass_BackstopsMissingPrincipal(t *testing.T) {
	h := middleware.RequireClass(route.Default(), route.Admin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var env map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "UNAUTHORIZED", env["error"].(map[string]any)["code"])
}

func TestRequireSession(t *testing.T) {
	sessions := newFakeSessions()
	userID := uuid.New()
	sessions.add("live", userID)

	var got *auth.Session
	h := middleware.RequireSession(sessions, cookieName)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.GetSession(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"revoked", "gone", http.StatusUnauthorized},
		{"live", "live", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: cookieName, Value: tt.token})
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
	require.NotNil(t, got)
	assert.Equal(t, userID, got.UserID)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "c"})
	assert.Empty(t, middleware.TokenFromRequest(req, cookieName), "a non-bearer header is not a token")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "c"})
	assert.Equal(t, "c", middleware.TokenFromRequest(req, cookieName))
}

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livia-app/livia/internal/agent"
	"github.com/livia-app/livia/internal/api"
	"github.com/livia-app/livia/internal/api/handler"
	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/conversation"
	"github.com/livia-app/livia/internal/feedback"
)

// --- In-memory repositories ---

type memoryUsers struct {
	auth.UserRepository
	mu       sync.Mutex
	profiles map[uuid.UUID]*auth.Principal
	creds    map[string]*auth.Credentials
}

func (m *memoryUsers) Create(_ context.Context, u auth.NewUser, hash string) (*auth.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(u.Email)
	p := &auth.Principal{ID: uuid.New(), TenantID: u.TenantID, Role: u.Role, IsActive: true, FullName: u.FullName, Email: email}
	m.profiles[p.ID] = p
	m.creds[email] = &auth.Credentials{UserID: p.ID, Email: email, PasswordHash: hash}
	return p, nil
}

func (m *memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*auth.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryUsers) GetCredentialsByEmail(_ context.Context, email string) (*auth.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[strings.ToLower(email)]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return c, nil
}

func (m *memoryUsers) setActive(id uuid.UUID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[id].IsActive = active
}

type emptyAgents struct{ agent.Repository }

func (emptyAgents) List(context.Context, agent.ListFilter) ([]agent.Agent, error) {
	return []agent.Agent{}, nil
}

type emptyConversations struct{ conversation.Repository }

func (emptyConversations) List(context.Context, conversation.ListFilter) ([]conversation.Conversation, error) {
	return []conversation.Conversation{}, nil
}

type emptyFeedbacks struct{ feedback.Repository }

func (emptyFeedbacks) List(context.Context, feedback.ListFilter) ([]feedback.Feedback, error) {
	return []feedback.Feedback{}, nil
}

// --- Fixture ---

type fixture struct {
	server *httptest.Server
	client *http.Client
	svc    *auth.Service
	users  *memoryUsers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := &memoryUsers{profiles: map[uuid.UUID]*auth.Principal{}, creds: map[string]*auth.Credentials{}}
	svc := auth.NewService(users, auth.NewRedisSessionStoreWithClient(rdb), []byte("router-test-secret"), time.Hour, 4)

	router := api.NewRouter(api.RouterDeps{
		Auth:         svc,
		Cookie:       handler.CookieConfig{Name: "livia_session"},
		Version:      "test",
		Agents:       emptyAgents{},
		Users:        users,
		Conversation: emptyConversations{},
		Feedbacks:    emptyFeedbacks{},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &fixture{
		server: srv,
		client: &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }},
		svc:    svc,
		users:  users,
	}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env struct {
		Data struct {
			Session auth.Session `json:"session"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.NotEmpty(t, env.Data.Session.AccessToken)
	return env.Data.Session.AccessToken
}

func (f *fixture) tenantUser(t *testing.T) *auth.Principal {
	t.Helper()
	tenantID := uuid.New()
	p, err := f.svc.CreateUser(context.Background(), auth.NewUser{
		Email: "ana@example.com", Password: "correct horse", FullName: "Ana", Role: auth.RoleTenantUser, TenantID: &tenantID,
	})
	require.NoError(t, err)
	return p
}

// --- Tests ---

func TestRouter_TenantUserIsKeptOutOfAdmin(t *testing.T) {
	f := newFixture(t)
	f.tenantUser(t)
	token := f.login(t, "ana@example.com", "correct horse")

	resp := f.do(t, http.MethodGet, "/admin/tenants", token, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp = f.do(t, http.MethodGet, "/dashboard", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, map[string]int{"agents": 0, "openConversations": 0, "pendingFeedbacks": 0}, env.Data)
}

func TestRouter_DeactivatedUserIsSignedOutAtTheEdge(t *testing.T) {
	f := newFixture(t)
	p := f.tenantUser(t)
	token := f.login(t, "ana@example.com", "correct horse")

	f.users.setActive(p.ID, false)

	resp := f.do(t, http.MethodGet, "/dashboard", token, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = f.do(t, http.MethodGet, "/api/auth/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_LoginSetsCookieAndProfileIsServed(t *testing.T) {
	f := newFixture(t)
	p := f.tenantUser(t)

	resp := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "livia_session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	resp = f.do(t, http.MethodGet, "/api/auth/profile", cookie.Value, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env struct {
		Data auth.Principal `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, p.ID, env.Data.ID)
}

func TestRouter_BadCredentials(t *testing.T) {
	f := newFixture(t)
	f.tenantUser(t)

	resp := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_LoginPageRedirectsSignedInUsers(t *testing.T) {
	f := newFixture(t)
	f.tenantUser(t)
	token := f.login(t, "ana@example.com", "correct horse")

	resp := f.do(t, http.MethodGet, "/login", token, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp = f.do(t, http.MethodGet, "/login", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_LogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	f.tenantUser(t)
	token := f.login(t, "ana@example.com", "correct horse")

	resp := f.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/dashboard", token, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/client"
)

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "error": nil})
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": nil, "error": map[string]string{"code": code, "message": code}})
}

type recorder struct {
	mu     sync.Mutex
	events []auth.Event
}

func (r *recorder) record(ev auth.Event, _ *auth.Session) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) Events() []auth.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auth.Event(nil), r.events...)
}

func TestFileTokenStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	s := &auth.Session{AccessToken: "abc", UserID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second)}

	require.NoError(t, NewFileTokenStore(path).Save(s))

	other := NewFileTokenStore(path)
	loaded, err := other.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, s.UserID, loaded.UserID)
	assert.True(t, s.ExpiresAt.Equal(loaded.ExpiresAt))
	assert.Equal(t, "abc", other.AccessToken())

	require.NoError(t, other.Clear())
	assert.Equal(t, "", other.AccessToken())

	empty, err := NewFileTokenStore(path).Load()
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestHTTPIdentity_SignInStoresAndAnnounces(t *testing.T) {
	userID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		writeData(w, http.StatusOK, map[string]any{
			"session": auth.Session{AccessToken: "t1", UserID: userID, ExpiresAt: time.Now().Add(time.Hour)},
		})
	}))
	defer srv.Close()

	store := &MemoryTokenStore{}
	id := NewHTTPIdentity(client.New(srv.URL, store), store)
	rec := &recorder{}
	unsubscribe := id.OnAuthStateChange(rec.record)
	defer unsubscribe()
	require.Eventually(t, func() bool { return len(rec.Events()) == 1 }, time.Second, time.Millisecond)

	s, err := id.SignInWithPassword(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, userID, s.UserID)
	assert.Equal(t, "t1", store.AccessToken())
	assert.Equal(t, []auth.Event{auth.EventInitialSession, auth.EventSignedIn}, rec.Events())
}

func TestHTTPIdentity_GetSessionClearsRejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusUnauthorized, "INVALID_SESSION")
	}))
	defer srv.Close()

	store := &MemoryTokenStore{}
	require.NoError(t, store.Save(&auth.Session{AccessToken: "revoked", UserID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour)}))
	id := NewHTTPIdentity(client.New(srv.URL, store), store)

	s, err := id.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, "", store.AccessToken())
}

func TestHTTPIdentity_GetSessionDropsExpiredLocally(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	store := &MemoryTokenStore{}
	require.NoError(t, store.Save(&auth.Session{AccessToken: "old", UserID: uuid.New(), ExpiresAt: time.Now().Add(-time.Minute)}))
	id := NewHTTPIdentity(client.New(srv.URL, store), store)

	s, err := id.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestHTTPIdentity_RefreshIsCoalesced(t *testing.T) {
	userID := uuid.New()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/session" {
			writeData(w, http.StatusOK, auth.Session{UserID: userID, ExpiresAt: time.Now().Add(time.Hour)})
			return
		}
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		writeData(w, http.StatusOK, map[string]any{
			"session": auth.Session{AccessToken: "fresh", UserID: userID, ExpiresAt: time.Now().Add(time.Hour)},
		})
	}))
	defer srv.Close()

	store := &MemoryTokenStore{}
	require.NoError(t, store.Save(&auth.Session{AccessToken: "stale", UserID: userID, ExpiresAt: time.Now().Add(30 * time.Second)}))
	id := NewHTTPIdentity(client.New(srv.URL, store), store)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := id.GetSession(context.Background())
			assert.NoError(t, err)
			if assert.NotNil(t, s) {
				assert.Equal(t, "fresh", s.AccessToken)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "fresh", store.AccessToken())
}

func TestHTTPIdentity_RefreshSurvivesFirstCallerCancel(t *testing.T) {
	userID := uuid.New()
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		writeData(w, http.StatusOK, map[string]any{
			"session": auth.Session{AccessToken: "fresh", UserID: userID, ExpiresAt: time.Now().Add(time.Hour)},
		})
	}))
	defer srv.Close()

	store := &MemoryTokenStore{}
	require.NoError(t, store.Save(&auth.Session{AccessToken: "stale", UserID: userID, ExpiresAt: time.Now().Add(30 * time.Second)}))
	id := NewHTTPIdentity(client.New(srv.URL, store), store)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := id.Refresh(ctx)
		firstErr <- err
	}()
	<-started

	type result struct {
		s   *auth.Session
		err error
	}
	second := make(chan result, 1)
	go func() {
		s, err := id.Refresh(context.Background())
		second <- result{s, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.Error(t, <-firstErr)
	close(release)

	got := <-second
	require.NoError(t, got.err)
	require.NotNil(t, got.s)
	assert.Equal(t, "fresh", got.s.AccessToken)
	assert.Equal(t, "fresh", store.AccessToken())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPIdentity_SignOutClearsEvenWhenServerFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR")
	}))
	defer srv.Close()

	store := &MemoryTokenStore{}
	require.NoError(t, store.Save(&auth.Session{AccessToken: "t", UserID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour)}))
	id := NewHTTPIdentity(client.New(srv.URL, store), store)
	rec := &recorder{}
	id.OnAuthStateChange(rec.record)
	require.Eventually(t, func() bool { return len(rec.Events()) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, id.SignOut(context.Background()))
	assert.Equal(t, "", store.AccessToken())
	assert.Equal(t, auth.EventSignedOut, rec.Events()[1])
}

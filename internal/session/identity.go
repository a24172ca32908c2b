package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/livia-app/livia/internal/apperr"
	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/client"
)

// IdentityClient is the identity provider as the console sees it.
type IdentityClient interface {
	GetSession(ctx context.Context) (*auth.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context) error
	OnAuthStateChange(fn func(auth.Event, *auth.Session)) (unsubscribe func())
}

// ProfileFetcher looks up the profile behind a session.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, userID uuid.UUID) (*auth.Principal, error)
}

const defaultRefreshMargin = time.Minute

// HTTPIdentity implements IdentityClient against the server's /api/auth
// endpoints and persists the session in a TokenStore.
type HTTPIdentity struct {
	api           *client.Client
	store         TokenStore
	now           func() time.Time
	refreshMargin time.Duration

	refreshGroup singleflight.Group

	mu     sync.Mutex
	subs   map[int]func(auth.Event, *auth.Session)
	nextID int
}

// IdentityOption configures an HTTPIdentity.
type IdentityOption func(*HTTPIdentity)

// WithIdentityClock overrides the time source.
func WithIdentityClock(now func() time.Time) IdentityOption {
	return func(h *HTTPIdentity) { h.now = now }
}

// WithRefreshMargin sets how close to expiry GetSession refreshes the token.
func WithRefreshMargin(d time.Duration) IdentityOption {
	return func(h *HTTPIdentity) { h.refreshMargin = d }
}

// NewHTTPIdentity creates an identity client.
func NewHTTPIdentity(api *client.Client, store TokenStore, opts ...IdentityOption) *HTTPIdentity {
	h := &HTTPIdentity{
		api:           api,
		store:         store,
		now:           time.Now,
		refreshMargin: defaultRefreshMargin,
		subs:          make(map[int]func(auth.Event, *auth.Session)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GetSession returns the stored session after checking it with the
// server, refreshing it first when it is about to expire. A rejected or
// expired session is cleared and reported as nil.
func (h *HTTPIdentity) GetSession(ctx context.Context) (*auth.Session, error) {
	s, err := h.store.Load()
	if err != nil {
		slog.Warn("session file unreadable", "error", err)
		return nil, nil
	}
	if s == nil {
		return nil, nil
	}

	now := h.now()
	if s.Expired(now) {
		h.drop()
		return nil, nil
	}
	if s.ExpiresAt.Sub(now) < h.refreshMargin {
		return h.Refresh(ctx)
	}

	live, err := h.api.CurrentSession(ctx, s.AccessToken)
	if err != nil {
		if apperr.Is(err, apperr.KindUnauthenticated) {
			h.drop()
			return nil, nil
		}
		return nil, err
	}
	live.AccessToken = s.AccessToken
	return live, nil
}

// SignInWithPassword opens a session and announces SIGNED_IN.
func (h *HTTPIdentity) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	s, err := h.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := h.store.Save(s); err != nil {
		return nil, apperr.Normalize(err)
	}
	h.emit(auth.EventSignedIn, s)
	return s, nil
}

// SignOut revokes the session on the server, best effort, then clears it
// locally and announces SIGNED_OUT.
func (h *HTTPIdentity) SignOut(ctx context.Context) error {
	if token := h.store.AccessToken(); token != "" {
		if err := h.api.Logout(ctx, token); err != nil {
			slog.Warn("server sign-out failed", "error", err)
		}
	}
	if err := h.store.Clear(); err != nil {
		return apperr.Normalize(err)
	}
	h.emit(auth.EventSignedOut, nil)
	return nil
}

// Refresh exchanges the stored token for a new one. Concurrent callers
// share a single request, which outlives any one caller's cancellation.
func (h *HTTPIdentity) Refresh(ctx context.Context) (*auth.Session, error) {
	shared := context.WithoutCancel(ctx)
	ch := h.refreshGroup.DoChan("refresh", func() (any, error) {
		token := h.store.AccessToken()
		if token == "" {
			return (*auth.Session)(nil), nil
		}
		s, err := h.api.RefreshSession(shared, token)
		if err != nil {
			if apperr.Is(err, apperr.KindUnauthenticated) {
				h.drop()
				return (*auth.Session)(nil), nil
			}
			return nil, err
		}
		if err := h.store.Save(s); err != nil {
			return nil, apperr.Normalize(err)
		}
		h.emit(auth.EventTokenRefreshed, s)
		return s, nil
	})
	select {
	case <-ctx.Done():
		return nil, apperr.Normalize(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*auth.Session), nil
	}
}

// AccessToken returns the stored token.
func (h *HTTPIdentity) AccessToken() string {
	return h.store.AccessToken()
}

// OnAuthStateChange subscribes fn to session events. fn first receives
// INITIAL_SESSION with the stored session, asynchronously.
func (h *HTTPIdentity) OnAuthStateChange(fn func(auth.Event, *auth.Session)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	go func() {
		s, _ := h.store.Load()
		if s != nil && s.Expired(h.now()) {
			s = nil
		}
		h.mu.Lock()
		_, ok := h.subs[id]
		h.mu.Unlock()
		if ok {
			fn(auth.EventInitialSession, s)
		}
	}()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

func (h *HTTPIdentity) drop() {
	if err := h.store.Clear(); err != nil {
		slog.Warn("clearing session failed", "error", err)
	}
	h.emit(auth.EventSignedOut, nil)
}

func (h *HTTPIdentity) emit(ev auth.Event, s *auth.Session) {
	h.mu.Lock()
	subs := make([]func(auth.Event, *auth.Session), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(ev, s)
	}
}

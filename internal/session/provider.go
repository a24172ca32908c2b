package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/livia-app/livia/internal/apperr"
	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/route"
)

// DefaultLoadingTimeout bounds how long the provider reports loading.
const DefaultLoadingTimeout = 3 * time.Second

var (
	// ErrProfileNotFound is returned by SignIn when the session has no profile.
	ErrProfileNotFound = apperr.New(apperr.KindUnauthenticated, "PROFILE_NOT_FOUND", "profile not found")
	// ErrInactive is returned by SignIn when the profile is deactivated.
	ErrInactive = apperr.New(apperr.KindUnauthorized, "INACTIVE_PROFILE", "profile is inactive")
)

// Navigator owns the console's current location.
type Navigator interface {
	CurrentPath() string
	Redirect(path string)
}

// Snapshot is a consistent view of the provider.
type Snapshot struct {
	State     State
	Principal *auth.Principal
	Loading   bool
}

// Provider tracks the caller's session for the lifetime of the console.
// Every session event bumps an epoch; an asynchronous resolution is only
// applied if no newer event arrived while it was running.
type Provider struct {
	identity IdentityClient
	profiles ProfileFetcher
	nav      Navigator
	table    *route.Table
	timeout  time.Duration

	mu        sync.Mutex
	state     State
	principal *auth.Principal
	loading   bool
	epoch     uint64
	ready     chan struct{}
	listeners []func(Snapshot)

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	timer       *time.Timer
	wg          sync.WaitGroup
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLoadingTimeout overrides DefaultLoadingTimeout.
func WithLoadingTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) { p.timeout = d }
}

// WithRouteTable overrides the default route table.
func WithRouteTable(t *route.Table) ProviderOption {
	return func(p *Provider) { p.table = t }
}

// NewProvider creates a Provider in the UNKNOWN, loading state.
func NewProvider(identity IdentityClient, profiles ProfileFetcher, nav Navigator, opts ...ProviderOption) *Provider {
	p := &Provider{
		identity: identity,
		profiles: profiles,
		nav:      nav,
		table:    route.Default(),
		timeout:  DefaultLoadingTimeout,
		state:    Unknown,
		loading:  true,
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start subscribes to identity events, runs the initial session check and
// arms the loading timeout.
func (p *Provider) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx, p.cancel = context.WithCancel(ctx)
	epoch := p.epoch
	p.timer = time.AfterFunc(p.timeout, p.expireLoading)
	p.mu.Unlock()

	p.unsubscribe = p.identity.OnAuthStateChange(p.handleEvent)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		s, err := p.identity.GetSession(p.ctx)
		if err != nil {
			slog.Warn("initial session check failed", "error", err)
			s = nil
		}
		p.resolve(epoch, auth.EventInitialSession, s)
	}()
}

// Stop unsubscribes and waits for outstanding resolutions.
func (p *Provider) Stop() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Snapshot returns the current state.
func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Wait blocks until loading is over or ctx is done.
func (p *Provider) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-p.ready:
		return p.Snapshot(), nil
	case <-ctx.Done():
		return p.Snapshot(), ctx.Err()
	}
}

// OnChange registers fn to be called after every applied state change.
func (p *Provider) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// SignIn authenticates, re-fetches the profile and lands the caller on
// their dashboard root unless they are already under it.
func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	s, err := p.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		return apperr.Normalize(err)
	}

	principal := p.fetchProfile(ctx, s)
	switch {
	case principal == nil:
		p.terminate(ctx)
		return ErrProfileNotFound
	case !principal.IsActive:
		p.terminate(ctx)
		return ErrInactive
	}

	p.applyLatest(Active, principal)

	root := p.table.DashboardRoot(principal.Role)
	if !route.Under(p.nav.CurrentPath(), root) {
		p.nav.Redirect(root)
	}
	return nil
}

// SignOut terminates the session and returns to the sign-in page.
func (p *Provider) SignOut(ctx context.Context) error {
	err := p.identity.SignOut(ctx)
	p.applyLatest(Unauthenticated, nil)
	p.toLogin()
	if err != nil {
		return apperr.Normalize(err)
	}
	return nil
}

func (p *Provider) handleEvent(ev auth.Event, s *auth.Session) {
	p.mu.Lock()
	p.epoch++
	epoch := p.epoch
	if p.ctx == nil || p.ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		p.resolve(epoch, ev, s)
	}()
}

func (p *Provider) resolve(epoch uint64, ev auth.Event, s *auth.Session) {
	if ev == auth.EventSignedOut || s == nil {
		p.apply(epoch, Unauthenticated, nil)
		return
	}

	principal := p.fetchProfile(p.ctx, s)

	p.mu.Lock()
	cur := p.state
	p.mu.Unlock()

	next := Transition(cur, ev, principal)
	if next != Inactive {
		p.apply(epoch, next, principal)
		return
	}

	if !p.current(epoch) {
		return
	}
	slog.Info("inactive profile, terminating session", "userId", principal.ID, "event", string(ev))
	p.terminate(p.ctx)
	p.toLogin()
}

// fetchProfile treats every lookup failure as "no profile".
func (p *Provider) fetchProfile(ctx context.Context, s *auth.Session) *auth.Principal {
	principal, err := p.profiles.FetchProfile(ctx, s.UserID)
	if err != nil {
		slog.Warn("profile lookup failed", "userId", s.UserID, "error", err)
		return nil
	}
	if principal != nil && principal.Validate() != nil {
		slog.Warn("profile violates role/tenant invariant", "userId", principal.ID)
		return nil
	}
	return principal
}

func (p *Provider) terminate(ctx context.Context) {
	if err := p.identity.SignOut(ctx); err != nil {
		slog.Warn("sign-out during termination failed", "error", err)
	}
	p.applyLatest(Unauthenticated, nil)
}

func (p *Provider) toLogin() {
	login := p.table.LoginPath()
	if !route.Under(p.nav.CurrentPath(), login) {
		p.nav.Redirect(login)
	}
}

func (p *Provider) current(epoch uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.epoch == epoch
}

// apply writes a resolution if epoch is still current. A resolution that
// lands ends loading.
func (p *Provider) apply(epoch uint64, state State, principal *auth.Principal) bool {
	p.mu.Lock()
	if p.epoch != epoch {
		p.mu.Unlock()
		return false
	}
	p.commitLocked(state, principal)
	return true
}

// applyLatest writes the outcome of a direct caller action, superseding
// every resolution still in flight.
func (p *Provider) applyLatest(state State, principal *auth.Principal) {
	p.mu.Lock()
	p.epoch++
	p.commitLocked(state, principal)
}

// commitLocked is called with p.mu held and releases it.
func (p *Provider) commitLocked(state State, principal *auth.Principal) {
	p.state = state
	p.principal = principal
	p.endLoadingLocked()
	snap := p.snapshotLocked()
	listeners := append([]func(Snapshot){}, p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (p *Provider) expireLoading() {
	p.mu.Lock()
	if !p.loading {
		p.mu.Unlock()
		return
	}
	slog.Debug("session check timed out", "timeout", p.timeout)
	if p.state == Unknown {
		p.state = Unauthenticated
	}
	p.endLoadingLocked()
	snap := p.snapshotLocked()
	listeners := append([]func(Snapshot){}, p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (p *Provider) endLoadingLocked() {
	if p.loading {
		p.loading = false
		close(p.ready)
	}
}

func (p *Provider) snapshotLocked() Snapshot {
	var principal *auth.Principal
	if p.principal != nil {
		cp := *p.principal
		principal = &cp
	}
	return Snapshot{State: p.state, Principal: principal, Loading: p.loading}
}

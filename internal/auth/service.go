package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when email or password do not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrInvalidSession is returned when a token is malformed, expired or revoked.
var ErrInvalidSession = errors.New("invalid or expired session")

// Service is the identity provider: password sign-in, token issuance and
// the live-session registry.
type Service struct {
	users      UserRepository
	sessions   SessionStore
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a new auth Service.
func NewService(users UserRepository, sessions SessionStore, secret []byte, ttl time.Duration, bcryptCost int, opts ...ServiceOption) *Service {
	s := &Service{
		users:      users,
		sessions:   sessions,
		secret:     secret,
		ttl:        ttl,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashPassword returns the bcrypt hash of password.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// SignInWithPassword checks credentials and opens a new session. It does
// not look at the profile; callers decide whether the profile may proceed.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	creds, err := s.users.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up credentials: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, creds.UserID)
}

// Verify resolves a raw access token to its live session.
func (s *Service) Verify(ctx context.Context, token string) (*Session, error) {
	sess, _, err := s.verify(ctx, token)
	return sess, err
}

// Refresh replaces a live session with a new one. A deactivated or deleted
// profile loses every session instead.
func (s *Service) Refresh(ctx context.Context, token string) (*Session, error) {
	sess, claims, err := s.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	p, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if p == nil || !p.IsActive || p.Validate() != nil {
		if err := s.RevokeUser(ctx, sess.UserID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidSession
	}

	if err := s.sessions.Delete(ctx, claims.ID, sess.UserID); err != nil {
		return nil, fmt.Errorf("retiring session: %w", err)
	}
	return s.issue(ctx, sess.UserID)
}

// SignOut revokes the session behind token. Unknown or expired tokens are
// already signed out.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := ParseToken(s.secret, token, s.now())
	if err != nil {
		return nil
	}
	userID, _ := claims.UserID()
	if err := s.sessions.Delete(ctx, claims.ID, userID); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

// RevokeUser terminates every live session of userID.
func (s *Service) RevokeUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoking user sessions: %w", err)
	}
	slog.Info("user sessions revoked", "userId", userID)
	return nil
}

// GetProfile returns the profile for userID.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*Principal, error) {
	return s.users.GetByID(ctx, userID)
}

// CreateUser hashes the password and stores credentials plus profile.
func (s *Service) CreateUser(ctx context.Context, u NewUser) (*Principal, error) {
	hash, err := s.HashPassword(u.Password)
	if err != nil {
		return nil, err
	}
	p, err := s.users.Create(ctx, u, hash)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// BootstrapSuperAdmin creates the initial super admin if none exists.
// Returns false if a super admin was already present.
func (s *Service) BootstrapSuperAdmin(ctx context.Context, email, password string) (bool, error) {
	count, err := s.users.CountSuperAdmins(ctx)
	if err != nil {
		return false, fmt.Errorf("counting super admins: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	p, err := s.CreateUser(ctx, NewUser{
		Email:    email,
		Password: password,
		FullName: "Super Admin",
		Role:     RoleSuperAdmin,
	})
	if err != nil {
		return false, fmt.Errorf("creating super admin: %w", err)
	}

	slog.Info("super admin created", "userId", p.ID, "email", p.Email)
	return true, nil
}

func (s *Service) verify(ctx context.Context, token string) (*Session, Claims, error) {
	claims, err := ParseToken(s.secret, token, s.now())
	if err != nil {
		return nil, Claims{}, ErrInvalidSession
	}

	live, err := s.sessions.Exists(ctx, claims.ID)
	if err != nil {
		return nil, Claims{}, fmt.Errorf("checking session: %w", err)
	}
	if !live {
		return nil, Claims{}, ErrInvalidSession
	}

	userID, _ := claims.UserID()
	return &Session{
		AccessToken: token,
		UserID:      userID,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, claims, nil
}

func (s *Service) issue(ctx context.Context, userID uuid.UUID) (*Session, error) {
	token, claims, err := IssueToken(s.secret, userID, s.now(), s.ttl)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Save(ctx, claims.ID, userID, claims.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("registering session: %w", err)
	}

	return &Session{
		AccessToken: token,
		UserID:      userID,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

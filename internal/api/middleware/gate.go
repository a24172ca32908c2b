package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/route"
)

// SessionVerifier resolves and revokes access tokens.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
}

// ProfileLookup loads the profile behind a session.
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*auth.Principal, error)
}

// Gate runs before every handler and decides, from the path alone, whether
// the request may proceed. Failures never render an error: the caller is
// sent to the login page or to their own dashboard root with a 303.
//
// Inactive or missing profiles have their session revoked before the
// redirect so the presented token cannot be replayed.
func Gate(table *route.Table, sessions SessionVerifier, profiles ProfileLookup, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := table.Classify(r.URL.Path)
			if class == route.Public {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			requestID := GetRequestID(ctx)

			// pass lets auth-only pages through for anyone without a usable session.
			pass := func() {
				if class == route.Auth {
					next.ServeHTTP(w, r)
					return
				}
				redirect(w, r, table.LoginPath())
			}

			token := TokenFromRequest(r, cookieName)
			if token == "" {
				pass()
				return
			}

			sess, err := sessions.Verify(ctx, token)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidSession) {
					slog.Error("session verification failed", "error", err, "requestId", requestID)
				}
				clearCookie(w, cookieName)
				pass()
				return
			}

			p, err := profiles.GetProfile(ctx, sess.UserID)
			if err != nil && !errors.Is(err, auth.ErrUserNotFound) {
				slog.Error("profile lookup failed", "error", err, "userId", sess.UserID, "requestId", requestID)
			}
			if err != nil || p == nil || p.Validate() != nil || !p.IsActive {
				terminate(ctx, sessions, token, sess.UserID, requestID)
				clearCookie(w, cookieName)
				pass()
				return
			}

			if class == route.Auth {
				redirect(w, r, table.DashboardRoot(p.Role))
				return
			}
			if !table.Allows(p.Role, class) {
				slog.Info("role not allowed for path", "role", p.Role, "class", class, "path", r.URL.Path, "requestId", requestID)
				redirect(w, r, table.DashboardRoot(p.Role))
				return
			}

			ctx = withSession(ctx, sess, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie. The Authorization header takes precedence.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

func terminate(ctx context.Context, sessions SessionVerifier, token string, userID uuid.UUID, requestID string) {
	if err := sessions.SignOut(ctx, token); err != nil {
		slog.Error("failed to terminate session", "error", err, "userId", userID, "requestId", requestID)
		return
	}
	slog.Info("session terminated", "userId", userID, "requestId", requestID)
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

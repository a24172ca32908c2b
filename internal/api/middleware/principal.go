package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/livia-app/livia/internal/api/response"
	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/route"
)

const (
	sessionKey   contextKey = "session"
	principalKey contextKey = "principal"
)

func withSession(ctx context.Context, sess *auth.Session, p *auth.Principal) context.Context {
	ctx = context.WithValue(ctx, sessionKey, sess)
	if p != nil {
		ctx = WithPrincipal(ctx, p)
	}
	return ctx
}

// WithPrincipal returns ctx carrying p as the admitted principal.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal returns the principal admitted by Gate, or nil.
func GetPrincipal(ctx context.Context) *auth.Principal {
	if p, ok := ctx.Value(principalKey).(*auth.Principal); ok {
		return p
	}
	return nil
}

// GetSession returns the verified session, or nil.
func GetSession(ctx context.Context) *auth.Session {
	if s, ok := ctx.Value(sessionKey).(*auth.Session); ok {
		return s
	}
	return nil
}

// RequireSession answers 401 unless the request carries a live token. It
// guards the public /api/auth endpoints that act on the caller's session;
// the profile is not loaded.
func RequireSession(sessions SessionVerifier, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			token := TokenFromRequest(r, cookieName)
			if token == "" {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Session token is required", requestID)
				return
			}

			sess, err := sessions.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidSession) {
					response.Err(w, http.StatusUnauthorized, "INVALID_SESSION", "Invalid or expired session", requestID)
					return
				}
				slog.Error("session verification failed", "error", err, "requestId", requestID)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Session verification failed", requestID)
				return
			}

			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess, nil)))
		})
	}
}

// RequireClass re-checks the principal admitted by Gate against table for
// class. It is mounted on each protected route group.
func RequireClass(table *route.Table, class route.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			p := GetPrincipal(r.Context())
			if p == nil || !p.IsActive {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
				return
			}
			if !table.Allows(p.Role, class) {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

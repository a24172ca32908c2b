package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/livia-app/livia/internal/api/middleware"
	"github.com/livia-app/livia/internal/api/response"
	"github.com/livia-app/livia/internal/api/validation"
	"github.com/livia-app/livia/internal/auth"
)

// Authenticator is the identity provider behind the /api/auth endpoints.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error)
	Refresh(ctx context.Context, token string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*auth.Principal, error)
}

// CookieConfig describes the browser session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Session   *auth.Session   `json:"session"`
	Principal *auth.Principal `json:"principal,omitempty"`
}

// AuthHandler handles sign-in, sign-out and session endpoints.
type AuthHandler struct {
	svc    Authenticator
	cookie CookieConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc Authenticator, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{svc: svc, cookie: cookie}
}

// Login handles POST /api/auth/login. The session is returned in the body
// and set as a cookie; profile checks are left to the caller.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateLogin(req.Email, req.Password)) {
		return
	}

	sess, err := h.svc.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Err(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", requestID)
			return
		}
		internalError(w, r, "Failed to sign in", err)
		return
	}

	h.setCookie(w, sess)
	response.Success(w, http.StatusOK, sessionResponse{Session: sess, Principal: h.profile(r.Context(), sess.UserID)}, requestID)
}

// Logout handles POST /api/auth/logout. It succeeds without a token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r, h.cookie.Name)
	if token != "" {
		if err := h.svc.SignOut(r.Context(), token); err != nil {
			internalError(w, r, "Failed to sign out", err)
			return
		}
	}
	h.clearCookie(w)
	response.NoContent(w)
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	token := middleware.TokenFromRequest(r, h.cookie.Name)
	if token == "" {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Session token is required", requestID)
		return
	}

	sess, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidSession) {
			h.clearCookie(w)
			response.Err(w, http.StatusUnauthorized, "INVALID_SESSION", "Invalid or expired session", requestID)
			return
		}
		internalError(w, r, "Failed to refresh session", err)
		return
	}

	h.setCookie(w, sess)
	response.Success(w, http.StatusOK, sessionResponse{Session: sess, Principal: h.profile(r.Context(), sess.UserID)}, requestID)
}

// Session handles GET /api/auth/session behind RequireSession.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, middleware.GetSession(r.Context()), middleware.GetRequestID(r.Context()))
}

// Profile handles GET /api/auth/profile behind RequireSession. Inactive
// profiles are returned as they are so the caller can terminate.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	p, err := h.svc.GetProfile(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			notFound(w, r, "Profile")
			return
		}
		internalError(w, r, "Failed to load profile", err, "userId", sess.UserID)
		return
	}

	response.Success(w, http.StatusOK, p, middleware.GetRequestID(r.Context()))
}

// Page handles the auth-only pages (/login, /signup). Signed-in callers
// never reach it; Gate sends them to their dashboard.
func (h *AuthHandler) Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, http.StatusOK, map[string]string{"page": name}, middleware.GetRequestID(r.Context()))
	}
}

func (h *AuthHandler) profile(ctx context.Context, userID uuid.UUID) *auth.Principal {
	p, err := h.svc.GetProfile(ctx, userID)
	if err != nil {
		return nil
	}
	return p
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, sess *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    sess.AccessToken,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

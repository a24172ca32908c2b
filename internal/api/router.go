package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/livia-app/livia/internal/agent"
	"github.com/livia-app/livia/internal/api/handler"
	"github.com/livia-app/livia/internal/api/middleware"
	"github.com/livia-app/livia/internal/api/response"
	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/conversation"
	"github.com/livia-app/livia/internal/feedback"
	"github.com/livia-app/livia/internal/quickreply"
	"github.com/livia-app/livia/internal/route"
	"github.com/livia-app/livia/internal/tenant"
	"github.com/livia-app/livia/internal/workflow"
)

// AuthService is everything the router needs from the identity provider.
type AuthService interface {
	middleware.SessionVerifier
	middleware.ProfileLookup
	handler.Authenticator
	handler.UserService
}

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Table        *route.Table
	Auth         AuthService
	Cookie       handler.CookieConfig
	DBPinger     handler.Pinger
	RedisPinger  handler.Pinger
	Version      string
	Tenants      tenant.Repository
	Agents       agent.Repository
	Users        auth.UserRepository
	Conversation conversation.Repository
	Feedbacks    feedback.Repository
	QuickReplies quickreply.Repository
	Workflow     workflow.Caller
}

type crudHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	GetByID(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
}

// NewRouter creates and configures a Chi router with all middleware and routes.
// Every request passes the edge Gate before reaching a handler.
func NewRouter(deps RouterDeps) *chi.Mux {
	table := deps.Table
	if table == nil {
		table = route.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	r.Use(middleware.Gate(table, deps.Auth, deps.Auth, deps.Cookie.Name))

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.RedisPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, http.StatusOK, map[string]string{"service": "livia", "version": deps.Version}, middleware.GetRequestID(r.Context()))
	})

	authHandler := handler.NewAuthHandler(deps.Auth, deps.Cookie)
	r.Get("/login", authHandler.Page("login"))
	r.Get("/signup", authHandler.Page("signup"))
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/refresh", authHandler.Refresh)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(deps.Auth, deps.Cookie.Name))
			r.Get("/session", authHandler.Session)
			r.Get("/profile", authHandler.Profile)
		})
	})

	summary := handler.NewSummaryHandler(deps.Tenants, deps.Agents, deps.Users, deps.Conversation, deps.Feedbacks)
	agents := handler.NewAgentHandler(deps.Agents)
	conversations := handler.NewConversationHandler(deps.Conversation)
	feedbacks := handler.NewFeedbackHandler(deps.Feedbacks)
	quickReplies := handler.NewQuickReplyHandler(deps.QuickReplies)
	workflows := handler.NewWorkflowHandler(deps.Workflow, deps.Conversation)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireClass(table, route.Admin))
		r.Get("/", summary.Admin)
		mountCRUD(r, "/tenants", handler.NewTenantHandler(deps.Tenants))
		mountCRUD(r, "/agents", agents)
		mountCRUD(r, "/conversations", conversations)
		mountCRUD(r, "/feedbacks", feedbacks)
		mountCRUD(r, "/quick-replies", quickReplies)
		mountCRUD(r, "/users", handler.NewUserHandler(deps.Auth, deps.Users))
		r.Post("/workflow", workflows.Proxy)
	})

	r.Route("/dashboard", func(r chi.Router) {
		r.Use(middleware.RequireClass(table, route.Tenant))
		r.Get("/", summary.Dashboard)
		mountCRUD(r, "/agents", agents)
		mountCRUD(r, "/conversations", conversations)
		mountCRUD(r, "/feedbacks", feedbacks)
		mountCRUD(r, "/quick-replies", quickReplies, func(r chi.Router) {
			r.Post("/{id}/use", quickReplies.Use)
		})
		r.Post("/workflow", workflows.Proxy)
	})

	return r
}

func mountCRUD(r chi.Router, path string, h crudHandler, extra ...func(chi.Router)) {
	r.Route(path, func(r chi.Router) {
		for _, fn := range extra {
			fn(r)
		}
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.GetByID)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

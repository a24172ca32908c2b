package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livia-app/livia/internal/agent"
	"github.com/livia-app/livia/internal/api"
	"github.com/livia-app/livia/internal/api/handler"
	"github.com/livia-app/livia/internal/auth"
	"github.com/livia-app/livia/internal/config"
	"github.com/livia-app/livia/internal/conversation"
	"github.com/livia-app/livia/internal/feedback"
	"github.com/livia-app/livia/internal/migrate"
	"github.com/livia-app/livia/internal/quickreply"
	"github.com/livia-app/livia/internal/route"
	"github.com/livia-app/livia/internal/tenant"
	"github.com/livia-app/livia/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	sessions, err := auth.NewRedisSessionStore(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	users := auth.NewRepository(pool)
	authService := auth.NewService(users, sessions, []byte(cfg.SessionSecret), cfg.SessionTTL, cfg.BcryptCost)

	if cfg.SuperAdminEmail != "" && cfg.SuperAdminPassword != "" {
		if _, err := authService.BootstrapSuperAdmin(ctx, cfg.SuperAdminEmail, cfg.SuperAdminPassword); err != nil {
			slog.Error("failed to bootstrap super admin", "error", err)
			os.Exit(1)
		}
	}

	router := api.NewRouter(api.RouterDeps{
		Table:        route.Default(),
		Auth:         authService,
		Cookie:       handler.CookieConfig{Name: cfg.CookieName, Secure: cfg.CookieSecure},
		DBPinger:     pool,
		RedisPinger:  sessions,
		Version:      cfg.Version,
		Tenants:      tenant.NewRepository(pool),
		Agents:       agent.NewRepository(pool),
		Users:        users,
		Conversation: conversation.NewRepository(pool),
		Feedbacks:    feedback.NewRepository(pool),
		QuickReplies: quickreply.NewRepository(pool),
		Workflow:     workflowCaller(cfg),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting LIVIA server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// workflowCaller returns nil when no engine is configured so the proxy
// answers WORKFLOW_UNAVAILABLE.
func workflowCaller(cfg *config.Config) workflow.Caller {
	if cfg.N8NBaseURL == "" {
		slog.Warn("workflow engine not configured; workflow proxy disabled")
		return nil
	}
	return workflow.NewClient(cfg.N8NBaseURL, []byte(cfg.N8NJWTSecret), cfg.N8NTokenTTL)
}

package handler

import (
	"context"
	"net/http"

	"github.com/livia-app/livia/internal/api/middleware"
	"github.com/livia-app/livia/internal/api/response"
)

// Pinger checks connectivity to a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      Pinger
	redis   Pinger
	version string
}

// NewHealthHandler creates a new HealthHandler. Either pinger may be nil.
func NewHealthHandler(db, redis Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, version: version}
}

type dependencyStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status   string           `json:"status"`
	Version  string           `json:"version"`
	Database dependencyStatus `json:"database"`
	Redis    dependencyStatus `json:"redis"`
}

// ServeHTTP answers 200 when every dependency is reachable and 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	data := healthData{
		Status:   "healthy",
		Version:  h.version,
		Database: dependencyStatus{Connected: ping(r.Context(), h.db)},
		Redis:    dependencyStatus{Connected: ping(r.Context(), h.redis)},
	}

	status := http.StatusOK
	if !data.Database.Connected || !data.Redis.Connected {
		data.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	response.Success(w, status, data, requestID)
}

func ping(ctx context.Context, p Pinger) bool {
	return p != nil && p.Ping(ctx) == nil
}

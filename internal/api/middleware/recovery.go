package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/livia-app/livia/internal/api/response"
)

// Recovery turns a panicking handler into a 500 INTERNAL_ERROR envelope.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			requestID := GetRequestID(r.Context())
			slog.Error("panic recovered",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"requestId", requestID,
				"stack", string(debug.Stack()),
			)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", requestID)
		}()
		next.ServeHTTP(w, r)
	})
}

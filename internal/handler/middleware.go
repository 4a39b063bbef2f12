package handler

import (
	"net/http"

	"link-shortener/internal/logger"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags the request context with the caller's X-Request-Id, or a new
// uuid, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

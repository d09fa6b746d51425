// Package middleware provides HTTP middleware for the quorumgate API.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Strob0t/quorumgate/internal/logger"
)

const headerRequestID = "X-Request-ID"

// maxRequestIDLen bounds client-supplied request IDs so they cannot bloat logs.
const maxRequestIDLen = 128

// RequestID extracts X-Request-ID from the request or generates a UUID. The ID
// is stored in the context, where the logger picks it up, and echoed on the
// response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

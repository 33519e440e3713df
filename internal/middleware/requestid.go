package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/firmsync/tenantcore/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RequestID tags every request with an ID for log correlation. A caller's
// X-Request-ID is kept when present so IDs survive proxy hops; otherwise a
// UUID is minted. The ID rides the context and is echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)

		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

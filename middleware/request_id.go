package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/upb/cookie-auth-gateway/internal/observability"
	"github.com/upb/cookie-auth-gateway/utils"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID stores a request ID in the request context and echoes it in the
// response. A well-formed UUID supplied by the proxy is reused so gateway
// and proxy logs line up; anything else is replaced.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if utils.ValidateUUID(requestID) != nil {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := observability.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

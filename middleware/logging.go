package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/upb/cookie-auth-gateway/internal/observability"
)

// RequestLogger logs one line per request with status and duration.
// Cookie values are never logged.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	log := observability.NewLogger(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			fields := []observability.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}

			switch {
			case status >= http.StatusInternalServerError:
				log.Error(r.Context(), "request completed", fields...)
			case r.URL.Path == "/healthz" || r.URL.Path == "/readyz":
				log.Debug(r.Context(), "request completed", fields...)
			default:
				log.Info(r.Context(), "request completed", fields...)
			}
		})
	}
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/cookie-auth-gateway/app"
	"github.com/upb/cookie-auth-gateway/handlers"
	"github.com/upb/cookie-auth-gateway/internal/observability"
	"github.com/upb/cookie-auth-gateway/middleware"
	"github.com/upb/cookie-auth-gateway/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	if timeout := deps.Config.Server.RequestTimeout; timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	// CORS middleware, only when origins are configured. The proxy calls
	// check_auth server side; browsers never do.
	if origins := deps.Config.CORS.AllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders:   []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check endpoints
	health := handlers.NewHealthHandler(deps.Logger, deps.ReadinessChecks()...)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	// Auth subrequest endpoint
	checkAuth := handlers.NewCheckAuthHandler(
		deps.Exchange,
		handlers.CookieOptions{Secure: deps.Config.Cookies.Secure},
		observability.NewLogger(deps.Logger),
	)
	r.Route("/auth", func(r chi.Router) {
		r.Get("/check_auth", checkAuth.HandleCheckAuth)
		r.Head("/check_auth", checkAuth.HandleCheckAuth)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteMethodNotAllowed(w, "")
	})

	return r
}

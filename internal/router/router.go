package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	appLogger "github.com/FACorreiaa/go-users-api/app/logger"
	appMiddleware "github.com/FACorreiaa/go-users-api/app/middleware"
	_ "github.com/FACorreiaa/go-users-api/docs"
	"github.com/FACorreiaa/go-users-api/internal/api"
	"github.com/FACorreiaa/go-users-api/internal/api/auth"
	"github.com/FACorreiaa/go-users-api/internal/api/user"
)

// AnonymousRoutes are the only endpoints reachable without a bearer token.
var AnonymousRoutes = []auth.Route{
	{Method: http.MethodPost, Path: "/api/users/login"},
	{Method: http.MethodPost, Path: "/api/users"},
}

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler    *auth.HandlerImpl
	UserHandler    user.Handler
	Verifier       auth.TokenVerifier
	Logger         *slog.Logger
	AllowedOrigins []string
	Timeout        time.Duration
}

// Pipeline returns the request interceptors in the order they run. Each one
// may answer the request itself or hand it to the next; the auth gate is
// last so it sees every request before routing.
func Pipeline(cfg *Config) []func(http.Handler) http.Handler {
	pipeline := []func(http.Handler) http.Handler{
		middleware.RequestID,
		appMiddleware.Recover(cfg.Logger),
		middleware.RealIP,
		appLogger.StructuredLogger(cfg.Logger),
		middleware.StripSlashes,
	}
	if cfg.Timeout > 0 {
		pipeline = append(pipeline, appMiddleware.Timeout(cfg.Timeout))
	}
	return append(pipeline,
		middleware.Compress(5, "application/json"),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		auth.Authenticate(cfg.Logger, cfg.Verifier, AnonymousRoutes),
	)
}

// SetupRouter initializes and configures the main application router.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()
	for _, interceptor := range Pipeline(cfg) {
		r.Use(interceptor)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.ErrorResponse(w, r, http.StatusNotFound, "Resource not found", api.CodeNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.ErrorResponse(w, r, http.StatusMethodNotAllowed, "Method not allowed", "MethodNotAllowed")
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/login", cfg.AuthHandler.Login)

		r.Get("/", cfg.UserHandler.ListUsers)
		r.Post("/", cfg.UserHandler.CreateUser)
		r.Get("/me", cfg.UserHandler.GetCurrentUser)
		r.Get("/{id:[0-9]+}", cfg.UserHandler.GetUser)
		r.Put("/{id:[0-9]+}", cfg.UserHandler.UpdateUser)
		r.Delete("/{id:[0-9]+}", cfg.UserHandler.DeleteUser)
	})

	return r
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SetupOpsRouter serves metrics, health and API docs on the internal port.
// None of it sits behind the auth gate.
func SetupOpsRouter(logger *slog.Logger, db Pinger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(appMiddleware.Recover(logger))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "Health check failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusServiceUnavailable, "Database unavailable", "Unavailable")
			return
		}
		api.Respond(w, r, http.StatusOK, api.MessageSuccess, map[string]string{"database": "up"})
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	return r
}

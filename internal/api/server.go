package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/usecasehub/usecase-hub/internal/auth"
	"github.com/usecasehub/usecase-hub/internal/catalog"
	"github.com/usecasehub/usecase-hub/internal/config"
	"github.com/usecasehub/usecase-hub/internal/models"
	"github.com/usecasehub/usecase-hub/internal/storage"
	"github.com/usecasehub/usecase-hub/internal/telemetry"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	catalog        *catalog.Service
	identity       *auth.Service
	telemetry      *telemetry.Dispatcher
	repo           storage.Repository
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	cat *catalog.Service,
	identity *auth.Service,
	dispatcher *telemetry.Dispatcher,
	repo storage.Repository,
) *Server {
	s := &Server{
		config:         cfg,
		catalog:        cat,
		identity:       identity,
		telemetry:      dispatcher,
		repo:           repo,
		authMiddleware: NewAuthMiddleware(identity),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		// Authentication
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignUp)
			r.Post("/signin", s.handleSignIn)
			r.Post("/signout", s.handleSignOut)
			r.With(s.authMiddleware.Authenticate).Get("/session", s.handleSession)

			r.Get("/oauth/{provider}", s.handleOAuthBegin)
			r.Get("/oauth/{provider}/callback", s.handleOAuthCallback)
		})

		// Public catalog, with best-effort user attribution
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware.Identify)

			r.Get("/use-cases", s.handleListUseCases)
			r.Get("/use-cases/featured", s.handleFeaturedUseCases)
			r.Get("/use-cases/{id}", s.handleGetUseCase)
			r.Get("/categories", s.handleListCategories)
			r.Get("/mcp-servers", s.handleListMCPServers)
			r.Get("/mcp-servers/{id}", s.handleGetMCPServer)
			r.Post("/mcp-servers/config", s.handleGenerateMCPConfig)
		})

		// Per-user records
		r.Route("/me", func(r chi.Router) {
			r.Use(s.authMiddleware.Authenticate)

			r.Get("/", s.handleGetProfile)
			r.Patch("/", s.handleUpdateProfile)

			r.Get("/bookmarks", s.handleListBookmarks)
			r.Post("/bookmarks", s.handleAddBookmark)
			r.Delete("/bookmarks/{id}", s.handleRemoveBookmark)

			r.Get("/progress", s.handleListProgress)
			r.Post("/progress", s.handleMarkStep)
			r.Delete("/progress/{stepID}", s.handleUnmarkStep)
		})

		// Admin surface
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authMiddleware.Authenticate)
			r.Use(s.authMiddleware.RequireAdmin)

			r.Get("/stats", s.handleAdminStats)

			r.Route("/use-cases", func(r chi.Router) {
				r.Post("/", s.handleAdminCreateUseCase)
				r.Put("/{id}", s.handleAdminUpdateUseCase)
				r.Delete("/{id}", s.handleAdminDeleteUseCase)
				r.Post("/{id}/feature", s.handleAdminSetFeatured)
			})

			r.Get("/analytics/summary", s.handleAdminEventSummary)
			r.Get("/analytics/stream", s.handleAnalyticsStream)
		})
	})

	s.router = r
}

// track dispatches a telemetry event without blocking the request
func (s *Server) track(ev models.Event) {
	if s.telemetry != nil {
		s.telemetry.Dispatch(ev)
	}
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

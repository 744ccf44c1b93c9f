package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mbsoft/ohmy-tracks/internal/config"
	"github.com/mbsoft/ohmy-tracks/internal/metrics"
	"github.com/mbsoft/ohmy-tracks/internal/websocket"
	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	wsServer   *websocket.Server
	metrics    *metrics.Collector
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(handler *Handler, cfg *config.Config, wsServer *websocket.Server, collector *metrics.Collector, log *logger.Logger) *Router {
	return &Router{
		handler:    handler,
		middleware: NewMiddleware(cfg.Auth.JWTSecret, log),
		wsServer:   wsServer,
		metrics:    collector,
		config:     cfg,
		logger:     log.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Public routes
		router.Post("/login", r.handler.Login)
		router.Get("/health", r.handler.GetHealth)

		// Authenticated routes
		router.Group(func(router chi.Router) {
			router.Use(r.middleware.RequireAuth)

			// Upload routes
			router.Post("/uploads", r.handler.UploadReport)
			router.Get("/uploads", r.handler.GetUploads)
			router.Get("/uploads/{id}", r.handler.GetUpload)
			router.Delete("/uploads/{id}", r.handler.DeleteUpload)
			router.Get("/uploads/{id}/export", r.handler.ExportCSV)

			// Optimization routes
			router.Post("/uploads/{id}/optimize/{routeId}", r.handler.OptimizeRoute)
			router.Post("/uploads/{id}/optimize-all", r.handler.OptimizeAll)
			router.Post("/optimize-custom", r.handler.OptimizeCustom)

			// Geocode cache
			router.Delete("/geocode-cache", r.handler.ClearGeocodeCache)

			// WebSocket route
			router.Get("/ws", r.wsServer.HandleWS)

			// Configuration
			router.Get("/config", r.handler.GetConfig)
		})
	})

	// Metrics scrape endpoint
	router.Handle("/metrics", r.metrics.Handler())

	// Serve static files from the configured directory
	staticHandler := NewStaticFileHandler(r.config.Server.StaticFilesDir, r.logger)
	router.Handle("/*", staticHandler)

	return router
}

// Package api serves runsheet conversion over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nishad/runsheet/internal/extract"
	"github.com/nishad/runsheet/internal/profile"
	"github.com/nishad/runsheet/internal/schema"
	"github.com/nishad/runsheet/internal/writer"
)

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	server    *http.Server
	svc       Services
	logger    *zap.Logger
	metrics   *Metrics
	runs      *runStore
	maxUpload int64
}

// Config holds server configuration
type Config struct {
	Host          string
	Port          int
	MaxUploadMB   int
	EnableCORS    bool
	EnableMetrics bool
}

// FileService looks up remote data files of an accession.
type FileService interface {
	extract.URLResolver
	FindMatchingFilenames(ctx context.Context, accession, pattern string) ([]string, error)
	AccessionMapping(ctx context.Context, accession string) (string, []string, error)
}

// Services are the collaborators the handlers call into. Files may be nil,
// which disables remote lookups and URL mapping.
type Services struct {
	Profiles profile.Provider
	Schemas  schema.Provider
	Files    FileService
	Sink     writer.Sink
	Logger   *zap.Logger
	Registry *prometheus.Registry
}

// NewServer creates a new API server instance
func NewServer(cfg *Config, svc Services) *Server {
	if svc.Profiles == nil {
		svc.Profiles = profile.Packaged()
	}
	if svc.Schemas == nil {
		svc.Schemas = schema.NewRegistry()
	}
	if svc.Logger == nil {
		svc.Logger = zap.NewNop()
	}
	maxUpload := int64(cfg.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 64 << 20
	}

	s := &Server{
		router:    mux.NewRouter(),
		svc:       svc,
		logger:    svc.Logger.Named("api"),
		metrics:   NewMetrics(svc.Registry),
		runs:      newRunStore(256),
		maxUpload: maxUpload,
	}

	s.setupRoutes(cfg.EnableMetrics)

	if cfg.EnableCORS {
		s.router.Use(corsMiddleware)
	}
	s.router.Use(s.loggingMiddleware)
	s.router.Use(jsonMiddleware)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes configures all API routes
func (s *Server) setupRoutes(enableMetrics bool) {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Conversion
	api.HandleFunc("/runsheets", s.handleConvert).Methods("POST")
	api.HandleFunc("/runsheets/{id}", s.handleGetRun).Methods("GET")

	// Profiles
	api.HandleFunc("/profiles", s.handleListProfiles).Methods("GET")

	// Remote files
	api.HandleFunc("/accessions/{accession}", s.handleAccession).Methods("GET")
	api.HandleFunc("/accessions/{accession}/files", s.handleFiles).Methods("GET")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	if enableMetrics {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	s.router.HandleFunc("/", s.handleRoot).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// Middleware functions

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Duration("duration", time.Since(start)))
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Helper functions

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"status":  status,
	})
}

// handleRoot returns API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "runsheet API",
		"version":     "1.0.0",
		"description": "ISA-Tab to runsheet conversion",
		"endpoints": map[string]string{
			"runsheets":  "/api/v1/runsheets",
			"profiles":   "/api/v1/profiles",
			"accessions": "/api/v1/accessions/{accession}",
			"health":     "/api/v1/health",
		},
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleHealth returns health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"profiles":  len(s.svc.Profiles.Names()),
		"remote":    s.svc.Files != nil,
		"sink":      s.svc.Sink != nil,
	}
	s.writeJSON(w, http.StatusOK, health)
}

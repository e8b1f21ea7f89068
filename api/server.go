// Package api - Thin HTTP layer over the estimation engine
// The API is ONLY responsible for: input decoding, engine orchestration, output serialization.
// The API NEVER performs cost logic.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"fibre-cost/adapters/storage"
	"fibre-cost/api/envelope"
	"fibre-cost/core/catalog"
	"fibre-cost/core/engine"
	"fibre-cost/core/history"
	"fibre-cost/core/input"
	ferrors "fibre-cost/internal/errors"
	"fibre-cost/internal/logging"
	"fibre-cost/internal/metrics"
)

const gracefulShutdownTimeout = 10 * time.Second

// DefaultMaxBodyBytes bounds request bodies when no limit is configured
const DefaultMaxBodyBytes int64 = 1 << 20

// CatalogStore loads and replaces the active cost catalog
type CatalogStore interface {
	catalog.Store
	Save(ctx context.Context, c *catalog.Catalog) (string, error)
}

// Options are the collaborators of the server.
// Engine is required; a nil History, Audit or Catalogs disables its routes.
type Options struct {
	Engine   *engine.Engine
	History  history.Store
	Audit    storage.Store
	Catalogs CatalogStore

	Version        string
	AllowedOrigins []string
	MaxBodyBytes   int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	Logger *zap.Logger
}

// Server is the API server
type Server struct {
	engine   *engine.Engine
	history  history.Store
	audit    storage.Store
	catalogs CatalogStore

	version      string
	maxBodyBytes int64
	readTimeout  time.Duration
	writeTimeout time.Duration

	router    chi.Router
	validator *input.Validator
	auditLog  envelope.AuditLogger
	log       *zap.Logger
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logging.Named("api")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		engine:       opts.Engine,
		history:      opts.History,
		audit:        opts.Audit,
		catalogs:     opts.Catalogs,
		version:      opts.Version,
		maxBodyBytes: opts.MaxBodyBytes,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		validator:    input.NewValidator(),
		auditLog:     envelope.NewZapAuditLogger(log.Named("audit")),
		log:          log,
	}

	router := chi.NewRouter()
	router.Use(
		metrics.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "PUT", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			MaxAge:         300,
		}),
		middleware.RequestID,
		middleware.Recoverer,
	)
	s.router = router

	s.registerRoutes()
	return s
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	s.router.Route("/api/v1", func(r chi.Router) {
		// Core endpoints
		r.Post("/estimate", s.handleEstimate)
		r.Post("/scenarios", s.handleScenarios)

		// Records
		r.Get("/history", s.handleHistory)
		r.Get("/audit", s.handleAuditList)
		r.Get("/audit/analytics", s.handleAuditAnalytics)
		r.Get("/audit/{id}", s.handleAuditGet)
		r.Patch("/audit/{id}/status", s.handleAuditStatus)

		// Catalog management
		r.Get("/catalog", s.handleCatalogGet)
		r.Put("/catalog", s.handleCatalogPut)
	})

	// Supporting endpoints
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/version", s.handleVersion)
	s.router.Handle("/metrics", metrics.Handler())
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, data interface{}, status int) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := ErrorBody{Code: string(ferrors.TypeOf(err)), Message: err.Error()}

	var typed *ferrors.Error
	if errors.As(err, &typed) {
		body.Message = typed.Message
		if typed.Cause != nil {
			body.Message += ": " + typed.Cause.Error()
		}
		body.Context = typed.Context
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("http_request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	s.writeJSON(w, r, ErrorResponse{Error: body}, status)
}

func (s *Server) writeErrorCode(w http.ResponseWriter, r *http.Request, code, message string, status int) {
	s.writeJSON(w, r, ErrorResponse{Error: ErrorBody{Code: code, Message: message}}, status)
}

// statusFor maps error types to HTTP status codes
func statusFor(err error) int {
	switch ferrors.TypeOf(err) {
	case ferrors.TypeInput:
		return http.StatusBadRequest
	case ferrors.TypeNotFound:
		return http.StatusNotFound
	case ferrors.TypeCatalog:
		return http.StatusServiceUnavailable
	case ferrors.TypeOracle:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on listener until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutdown signal received", zap.Error(ctx.Err()))
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
	}()

	s.log.Info("listening", zap.String("address", listener.Addr().String()))
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return ferrors.Wrap(ferrors.TypeConfig, "listen on "+addr, err)
	}
	return s.Run(ctx, listener)
}

// Package httpapi provides the HTTP surface for the backtesting service:
// job submission, polling, cancellation, and an optional synchronous
// profiling endpoint, fronted by chi the way the teacher's server package
// is.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/orchestrator"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/scheduler"
)

// Config holds server configuration.
type Config struct {
	Log            zerolog.Logger
	Host           string
	Port           int
	MaxRequestTime time.Duration
	Scheduler      *scheduler.Scheduler
	Orchestrator   *orchestrator.Orchestrator
	// JWKSURL, when set, requires every /api/v1 request to carry a bearer
	// token whose kid matches a key published at this endpoint. Empty
	// disables auth entirely, per spec.md §6.
	JWKSURL string
}

// Server is the HTTP front end for the backtest pipeline.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	scheduler      *scheduler.Scheduler
	orchestrator   *orchestrator.Orchestrator
	maxRequestTime time.Duration
	jwksURL        string
	jwks           *jwksCache
	httpClient     *http.Client
}

// New creates a new HTTP server wired to scheduler and orchestrator.
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		scheduler:      cfg.Scheduler,
		orchestrator:   cfg.Orchestrator,
		maxRequestTime: cfg.MaxRequestTime,
		jwksURL:        cfg.JWKSURL,
		jwks:           newJWKSCache(10 * time.Minute),
		httpClient:     &http.Client{Timeout: 10 * time.Second},
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.MaxRequestTime + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/backtest", func(r chi.Router) {
			r.Post("/", s.handleSubmit)
			r.Get("/{jobID}", s.handlePoll)
			r.Delete("/{jobID}", s.handleCancel)
		})

		r.With(s.requestTimeoutMiddleware).Post("/backtest-sync", s.handleSyncRun)
	})
}

// requestTimeoutMiddleware caps the synchronous run endpoint's total wall
// time at MaxRequestTime and returns 504, unlike chi's stock
// middleware.Timeout (which answers 503): the design document specifies
// 504 for a request-timeout so clients can distinguish "we gave up
// waiting" from "the service is unavailable".
func (s *Server) requestTimeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.maxRequestTime)
		defer cancel()

		done := make(chan struct{})
		go func() {
			next.ServeHTTP(w, r.WithContext(ctx))
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			s.writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "request exceeded max execution time"})
		}
	})
}

// loggingMiddleware logs each request's method, path, status, and latency,
// matching the teacher's per-request structured-log line.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.server.Addr).Msg("server starting")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// errorStatus maps a pipeline error to the HTTP status the design document
// requires: a structural ValidationError (request-shape boundary
// violations: date ordering, payload size, non-positive capital) -> 422
// with analysis_errors, any other ValidationError -> 400 with
// analysis_errors, ExecutionError -> 400 with execution_errors, anything
// else -> 500.
func errorStatus(err error) (int, string) {
	switch e := err.(type) {
	case *domain.ValidationError:
		if e.Structural {
			return http.StatusUnprocessableEntity, "analysis_errors"
		}
		return http.StatusBadRequest, "analysis_errors"
	case *domain.ExecutionError:
		return http.StatusBadRequest, "execution_errors"
	default:
		return http.StatusInternalServerError, ""
	}
}

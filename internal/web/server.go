// Package web exposes the audit pipeline over HTTP: a single-file import
// preview, synchronous and asynchronous audit runs with SSE progress, and
// retrieval of finished reports from an in-memory store.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/JonMunkholm/nexusaudit/internal/config"
	"github.com/JonMunkholm/nexusaudit/internal/core"
	"github.com/JonMunkholm/nexusaudit/internal/importer"
	mw "github.com/JonMunkholm/nexusaudit/internal/web/middleware"
)

// Server is the HTTP server for the audit service.
type Server struct {
	cfg      *config.Config
	pipeline *importer.Pipeline
	runs     *runRegistry
	reports  *cache.Cache
	limiter  *core.RunLimiter
	router   *chi.Mux
	server   *http.Server
}

// NewServer wires routes around pipeline.
func NewServer(cfg *config.Config, pipeline *importer.Pipeline) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		runs:     newRunRegistry(),
		reports:  cache.New(cfg.Cache.ReportTTL, cfg.Cache.CleanupInterval),
		limiter:  core.NewRunLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		if s.cfg.Rate.Enabled {
			r.Use(mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute).Handler(rateLimited))
		}

		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(mw.NewRateLimiter(s.cfg.Rate.UploadLimit).Handler(rateLimited))
			}
			r.Post("/runs", s.handleStartRun)
			r.Group(func(r chi.Router) {
				if s.cfg.Server.RequestTimeout > 0 {
					r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
				}
				r.Post("/upload", s.handleUpload)
				r.Post("/audit", s.handleAudit)
			})
		})

		r.Get("/runs/{runID}/progress", s.handleRunProgress)
		r.Get("/runs/{runID}", s.handleRunResult)
		r.Get("/reports/{reportID}", s.handleReport)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	c := s.cfg.Server
	s.server = &http.Server{
		Addr:         c.Addr(),
		Handler:      s.router,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		IdleTimeout:  c.IdleTimeout,
	}
	slog.Info("server listening", "addr", c.Addr())
	return s.server.ListenAndServe()
}

// Shutdown waits for in-flight runs, then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if st := s.limiter.Status(); st.Active > 0 {
		slog.Info("waiting for audit runs to finish", "active", st.Active, "runs", st.Runs)
		if err := s.limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("audit runs did not finish in time", "error", err)
		}
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, fmt.Errorf("rate limit exceeded for %s", mw.ClientIP(r)), http.StatusTooManyRequests)
}

// runTimeout bounds one audit run.
func (s *Server) runTimeout() time.Duration {
	if s.cfg.Upload.Timeout > 0 {
		return s.cfg.Upload.Timeout
	}
	return 10 * time.Minute
}

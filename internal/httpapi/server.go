// Package httpapi exposes the engine operations as a JSON API for operators
// and dashboards.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"VideoScanner/internal/config"
	"VideoScanner/internal/domain"
	"VideoScanner/pkg/logger"
)

// Service is the subset of the engine the API calls.
type Service interface {
	TryRunCycle(ctx context.Context) (domain.CycleSummary, error)
	ApproveAndPublish(ctx context.Context, id string) domain.ActionResult
	MarkSpam(ctx context.Context, id string) domain.ActionResult
	RegisterSourceEntry(ctx context.Context, entry domain.SourceEntry) domain.ActionResult
	Sources() []domain.SourceEntry
	GetPending(ctx context.Context, limit int) ([]domain.ContentItem, error)
	GetRecent(ctx context.Context, limit, maxAgeDays int) ([]domain.ContentItem, error)
	GetQuotaStatus(ctx context.Context) (domain.QuotaStatus, error)
	Dashboard(ctx context.Context) (domain.Dashboard, error)
}

// Trigger queues an out-of-band cycle on the periodic driver.
type Trigger interface {
	Trigger() bool
}

const defaultRequestTimeout = 60 * time.Second

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http    *http.Server
	log     *slog.Logger
	svc     Service
	trigger Trigger
	started time.Time
}

// New builds the HTTP server (router, middlewares, route registration).
func New(cfg config.HTTPConfig, svc Service, trigger Trigger, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		log:     log.With("component", "http"),
		svc:     svc,
		trigger: trigger,
		started: time.Now(),
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(timeout),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ErrorLog:          logger.New(log, "http"),
	}
	return s
}

// Handler returns the router; tests drive it without a listener.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) routes(timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(s.log))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// A synchronous cycle can outlive the request timeout.
		r.Post("/cycles", s.runCycle)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			r.Post("/check", s.check)
			r.Post("/items/{id}/approve", s.approve)
			r.Post("/items/{id}/spam", s.markSpam)
			r.Get("/items/pending", s.pending)
			r.Get("/items/recent", s.recent)
			r.Get("/sources", s.listSources)
			r.Post("/sources", s.registerSource)
			r.Get("/quota", s.quota)
			r.Get("/stats/today", s.today)
		})
	})
	return r
}

// Start runs the HTTP server (blocks until error or shutdown).
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("HTTP server shutting down")
	return s.http.Shutdown(ctx)
}

// accessLog writes one record per request.
func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote_ip", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

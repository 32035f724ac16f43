package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/KaramelBytes/adpulse-cli/internal/analysis"
	"github.com/KaramelBytes/adpulse-cli/internal/source"
)

// Config holds listener and analysis settings for the HTTP API.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	Rules           analysis.RuleSettings
}

// Server exposes the analyzer over HTTP.
type Server struct {
	cfg     Config
	logger  *zerolog.Logger
	router  *chi.Mux
	metrics *Metrics
	server  *http.Server
}

// New wires routes and middleware. A nil registry gets a fresh one so tests
// and multiple servers do not collide on the global default.
func New(logger zerolog.Logger, cfg Config, reg *prometheus.Registry) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = source.DefaultMaxBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{cfg: cfg, logger: &logger, metrics: NewMetrics(reg)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ready")) })
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/parse", s.handleParse)
	})

	s.router = r
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then drains in-flight requests within
// the shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("starting server")
		errc <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("shutdown initiated")
		sctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(sctx); err != nil {
			s.logger.Error().Err(err).Msg("graceful shutdown failed")
			return s.server.Close()
		}
	}
	return nil
}

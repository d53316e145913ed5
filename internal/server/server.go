// Package server exposes compile, solve, lint and history over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapopt/internal/state"
	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/leapstack-labs/leapopt/pkg/lint"
	_ "github.com/leapstack-labs/leapopt/pkg/lint/rules" // register lint rules
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = "127.0.0.1:8420"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// Config holds server configuration.
type Config struct {
	Addr string
	// Compiler is the template for every compile request.
	Compiler compiler.Options
	// Solve holds defaults that request options override.
	Solve compiler.SolveOptions
	// Lint configures the linter (optional)
	Lint *lint.Config
	// Store enables the history endpoints and records requests (optional)
	Store  state.Store
	Logger *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	addr     string
	compile  compiler.Options
	solve    compiler.SolveOptions
	analyzer *lint.Analyzer
	store    state.Store
	logger   *slog.Logger
}

// New creates a server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	lintCfg := cfg.Lint
	if lintCfg == nil {
		lintCfg = lint.NewConfig()
	}
	return &Server{
		addr:     addr,
		compile:  cfg.Compiler,
		solve:    cfg.Solve,
		analyzer: lint.NewAnalyzer(lintCfg),
		store:    cfg.Store,
		logger:   logger,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/compile", s.handleCompile)
		r.Post("/solve", s.handleSolve)
		r.Post("/lint", s.handleLint)
		r.Get("/history", s.handleHistoryList)
		r.Get("/history/{id}", s.handleHistoryGet)
	})
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting API server", slog.String("addr", "http://"+s.addr))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Duration("duration", time.Since(start)))
	})
}

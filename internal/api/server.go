// Package api serves voting power over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"vsr-power-lab/internal/authority"
	"vsr-power-lab/internal/observability"
	"vsr-power-lab/internal/orchestrator"
	"vsr-power-lab/internal/reporting"
	"vsr-power-lab/internal/storage"
)

// Recalculator runs computations and reports their state.
type Recalculator interface {
	Run(ctx context.Context, trigger string) (*orchestrator.RunResult, error)
	Status() orchestrator.Status
}

// Config holds the server dependencies.
type Config struct {
	Addr      string
	Registrar string

	Recalculator  Recalculator
	SnapshotStore storage.SnapshotStore
	MemberStore   storage.MemberPowerStore
	// HistoryStore is optional; without it the history route returns 404.
	HistoryStore storage.PowerHistoryStore
	Aliases      *authority.Table

	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string

	Clock  func() time.Time
	Logger *slog.Logger
}

// Validate checks required fields and fills defaults.
func (cfg *Config) Validate() error {
	if cfg.Recalculator == nil {
		return errors.New("recalculator is required")
	}
	if cfg.SnapshotStore == nil || cfg.MemberStore == nil {
		return errors.New("snapshot and member stores are required")
	}
	if cfg.Registrar == "" {
		return errors.New("registrar is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}

// Server is the HTTP API server.
type Server struct {
	cfg     Config
	log     *slog.Logger
	router  *chi.Mux
	limiter *RateLimiter
	gen     *reporting.Generator
	srv     *http.Server
}

// NewServer creates a server and configures its routes.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		log:    cfg.Logger,
		router: chi.NewRouter(),
		gen:    reporting.NewGenerator(cfg.SnapshotStore, cfg.MemberStore).WithClock(cfg.Clock),
	}
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	s.setupRoutes()

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(metricsMiddleware)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/status", s.handleStatus)
	s.router.Method(http.MethodGet, "/metrics", observability.Handler())

	s.router.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(RateLimitMiddleware(s.limiter))
		}
		r.Get("/power", s.handleLeaderboard)
		r.Get("/power/{wallet}", s.handleMemberPower)
		r.Get("/power/{wallet}/history", s.handleMemberHistory)
		r.Get("/snapshots", s.handleSnapshots)
		r.Post("/recalculate", s.handleRecalculate)
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api: listening", "addr", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.limiter != nil {
		s.limiter.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

// metricsMiddleware counts requests by route pattern and status class.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.RecordHTTPRequest(route, status)
	})
}

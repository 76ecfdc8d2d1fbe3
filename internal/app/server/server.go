package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"francoggm/travelpay/internal/app/server/handlers"
	"francoggm/travelpay/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	cfg      *config.Config
	router   *chi.Mux
	handlers *handlers.Handlers
	limiter  *ipLimiter
	logger   *slog.Logger
}

func NewServer(cfg *config.Config, h *handlers.Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	srv := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		handlers: h,
		limiter:  newIPLimiter(cfg.Server.RateRPS, cfg.Server.RateBurst),
		logger:   logger,
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.logRequests)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.limiter.middleware)

	s.router.Get("/healthz", s.handlers.Health)

	s.router.Route("/session", func(r chi.Router) {
		r.Post("/", s.handlers.SetSession)
		r.Get("/", s.handlers.GetSession)
		r.Delete("/", s.handlers.ClearSession)
	})

	s.router.Route("/checkouts", func(r chi.Router) {
		r.Post("/", s.handlers.StartCheckout)
		r.Get("/{id}", s.handlers.GetCheckout)
		r.Post("/{id}/card", s.handlers.SubmitCard)
		r.Get("/{id}/return", s.handlers.ProviderReturn)
		r.Get("/{id}/cancel", s.handlers.CancelCheckout)
		r.Post("/{id}/cancel", s.handlers.CancelCheckout)
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.limiter.prune(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/byteserve/internal/logger"
	"github.com/marmos91/byteserve/internal/telemetry"
	"github.com/marmos91/byteserve/pkg/config"
)

// Mounter attaches a wire surface's routes onto r. Each of C11 (S3),
// C12 (file-request), and the public object API implements this so
// Server stays agnostic of their internals.
type Mounter interface {
	Mount(r chi.Router)
}

// Server is the single HTTP listener shared by every wire surface,
// grounded on the teacher's pkg/controlplane/api.Server (same
// Start/Stop/graceful-shutdown shape via http.Server.Shutdown).
type Server struct {
	httpServer   *http.Server
	shutdownOnce sync.Once
}

// NewServer builds the shared chi router (health check, request
// logging, panic recovery) and mounts every given surface onto it.
func NewServer(cfg config.ServerConfig, surfaces ...Mounter) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, s := range surfaces {
		s.Mount(r)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start listens until ctx is cancelled, then gracefully shuts down.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	}
}

// Stop gracefully shuts the server down; safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if shutErr := s.httpServer.Shutdown(ctx); shutErr != nil {
			err = fmt.Errorf("http server shutdown: %w", shutErr)
			return
		}
		logger.Info("http server stopped gracefully")
	})
	return err
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := telemetry.StartSpan(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("request completed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}

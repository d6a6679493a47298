package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/interop/internal/auth"
	"github.com/vbonduro/interop/internal/logging"
	"github.com/vbonduro/interop/internal/metrics"
	"github.com/vbonduro/interop/internal/service"
)

type Server struct {
	service  *service.TargetService
	verifier *auth.Verifier
	mux      *http.ServeMux
	logger   *slog.Logger
}

func NewServer(svc *service.TargetService, verifier *auth.Verifier, logger *slog.Logger) *Server {
	s := &Server{
		service:  svc,
		verifier: verifier,
		mux:      http.NewServeMux(),
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.Handle("GET /metrics", metrics.Handler())

	s.api("GET /api/targets", s.handleListTargets)
	s.api("POST /api/targets", s.handleCreateTarget)
	s.api("GET /api/targets/{id}", s.handleGetTarget)
	s.api("PUT /api/targets/{id}", s.handleUpdateTarget)
	s.api("DELETE /api/targets/{id}", s.handleDeleteTarget)
	s.api("GET /api/targets/{id}/image", s.handleGetImage)
	s.api("POST /api/targets/{id}/image", s.handlePutImage)
	s.api("PUT /api/targets/{id}/image", s.handlePutImage)
	s.api("DELETE /api/targets/{id}/image", s.handleDeleteImage)
	s.api("POST /api/targets/{id}/image/classify", s.handleClassifyImage)
}

// api registers an endpoint that requires a verified user identity.
func (s *Server) api(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.verifier.Middleware(h))
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// requestID tags each request with an id, taken from X-Request-ID when the
// client sends one, and stores a logger carrying it in the request context.
func requestID(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := logging.WithContext(r.Context(), logger.With("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(fallback *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.FromContext(r.Context(), fallback).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID(s.logger,
		requestLogger(s.logger,
			metrics.Middleware(
				securityHeaders(s.mux)))).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

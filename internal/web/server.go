package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/vbonduro/domeok/internal/auth"
	"github.com/vbonduro/domeok/internal/service"
)

type Server struct {
	assistant *service.AssistantService
	pantry    *service.PantryService
	verifier  *auth.Verifier
	mux       *http.ServeMux
	logger    *slog.Logger
}

func NewServer(assistant *service.AssistantService, pantry *service.PantryService, verifier *auth.Verifier, logger *slog.Logger) *Server {
	s := &Server{
		assistant: assistant,
		pantry:    pantry,
		verifier:  verifier,
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /assistant/recommendations", s.requireUser(s.handleRecommend))
	s.mux.HandleFunc("POST /assistant/detail", s.requireUser(s.handleDetail))
	s.mux.HandleFunc("POST /assistant/search", s.requireUser(s.handleSearch))
	s.mux.HandleFunc("POST /assistant/quick", s.requireUser(s.handleQuick))
	s.mux.HandleFunc("POST /assistant/receipt", s.requireUser(s.handleScanReceipt))
	s.mux.HandleFunc("GET /assistant/quota", s.requireUser(s.handleQuota))

	s.mux.HandleFunc("GET /ingredients", s.requireUser(s.handleListIngredients))
	s.mux.HandleFunc("POST /ingredients", s.requireUser(s.handleAddIngredients))
	s.mux.HandleFunc("DELETE /ingredients/{id}", s.requireUser(s.handleDeleteIngredient))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
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

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to shutdownGrace.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Receipt scans chain a 30s OCR call and a 50s completion call.
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

const shutdownGrace = 15 * time.Second

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vbonduro/listingwizard/internal/schema"
)

type Server struct {
	schema        *schema.Schema
	sessions      *Sessions
	maxPhotoBytes int64
	mux           *http.ServeMux
	logger        *slog.Logger
}

func NewServer(sc *schema.Schema, sessions *Sessions, maxPhotoBytes int64, logger *slog.Logger) *Server {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = defaultMaxPhotoBytes
	}
	s := &Server{
		schema:        sc,
		sessions:      sessions,
		maxPhotoBytes: maxPhotoBytes,
		mux:           http.NewServeMux(),
		logger:        logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		http.Redirect(w, r, "/draft", http.StatusSeeOther)
	})
	s.mux.HandleFunc("GET /schema", s.handleSchema)

	s.mux.HandleFunc("GET /draft", s.session(s.handleGetDraft))
	s.mux.HandleFunc("PUT /draft/fields/{field}", s.session(s.handleSetField))
	s.mux.HandleFunc("POST /draft/collections/{collection}", s.session(s.handleAppendEntry))
	s.mux.HandleFunc("PUT /draft/collections/{collection}/{index}/{field}", s.session(s.handleUpdateEntry))
	s.mux.HandleFunc("DELETE /draft/collections/{collection}/{index}", s.session(s.handleRemoveEntry))

	s.mux.HandleFunc("POST /draft/rooms", s.session(s.handleAddRoom))
	s.mux.HandleFunc("PUT /draft/rooms/{room}", s.session(s.handleRenameRoom))
	s.mux.HandleFunc("DELETE /draft/rooms/{room}", s.session(s.handleRemoveRoom))
	s.mux.HandleFunc("POST /draft/rooms/{room}/photos", s.session(s.handleUploadPhotos))
	s.mux.HandleFunc("GET /draft/rooms/{room}/photos/{photo}", s.session(s.handleGetPhoto))
	s.mux.HandleFunc("DELETE /draft/rooms/{room}/photos/{photo}", s.session(s.handleRemovePhoto))
	s.mux.HandleFunc("PUT /draft/cover", s.session(s.handleSetCover))
	s.mux.HandleFunc("GET /draft/cover", s.session(s.handleGetCover))
	s.mux.HandleFunc("DELETE /draft/cover", s.session(s.handleClearCover))

	s.mux.HandleFunc("POST /wizard/next", s.session(s.handleNext))
	s.mux.HandleFunc("POST /wizard/previous", s.session(s.handlePrevious))
	s.mux.HandleFunc("POST /wizard/confirm", s.session(s.handleConfirm))
	s.mux.HandleFunc("GET /wizard/recap", s.session(s.handleRecap))
	s.mux.HandleFunc("POST /wizard/submit", s.session(s.handleSubmit))
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")
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
// requests. Write timeouts are long enough for a submission carrying the
// full photo quota.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 180 * time.Second,
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.schema)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

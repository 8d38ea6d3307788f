// Package api exposes the HTTP control surface for the monitor service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ospwatch/webhard-monitor/internal/metrics"
	"github.com/ospwatch/webhard-monitor/internal/monitor"
)

const storeTimeout = 3 * time.Second

// RunController is the runner surface the API drives.
type RunController interface {
	Start(opts monitor.Options) (string, error)
	Stop() error
	Status() monitor.RunStatus
}

// Server wires HTTP handlers to the runner and the store.
type Server struct {
	router     chi.Router
	runner     RunController
	store      monitor.Store
	categories []string
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner RunController, store monitor.Store, categories []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner:     runner,
		store:      store,
		categories: categories,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/run", func(r chi.Router) {
			r.Post("/start", s.startRun)
			r.Post("/stop", s.stopRun)
			r.Get("/status", s.runStatus)
		})
		r.Get("/results", s.listResults)
		r.Get("/results/{fingerprint}", s.getResult)
		r.Get("/search", s.searchResults)
		r.Get("/categories", s.listCategories)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startRunRequest struct {
	Stealth   bool `json:"stealth"`
	PageCount int  `json:"page_count"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	if req.PageCount < 0 {
		writeError(w, http.StatusBadRequest, "page_count must be >= 0")
		return
	}

	runID, err := s.runner.Start(monitor.Options{Stealth: req.Stealth, PageCount: req.PageCount})
	if err != nil {
		if errors.Is(err, monitor.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "a run is already in progress")
			return
		}
		s.logger.Error("start run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) stopRun(w http.ResponseWriter, _ *http.Request) {
	if err := s.runner.Stop(); err != nil {
		if errors.Is(err, monitor.ErrNotRunning) {
			writeError(w, http.StatusConflict, "no run in progress")
			return
		}
		s.logger.Error("stop run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to stop run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) runStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	contents, err := s.store.ListAll(ctx)
	if err != nil {
		s.logger.Error("list results failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": contentsOrEmpty(contents)})
}

func (s *Server) searchResults(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	contents, err := s.store.SearchByKeyword(ctx, keyword)
	if err != nil {
		s.logger.Error("search failed", zap.String("keyword", keyword), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"keyword": keyword,
		"results": contentsOrEmpty(contents),
	})
}

// DetailReader is implemented by stores that can serve per-item evidence
// detail alongside the content row.
type DetailReader interface {
	DetailByFingerprint(ctx context.Context, fingerprint string) (*monitor.ContentDetail, error)
	FileList(ctx context.Context, fingerprint string) ([]monitor.FileEntry, error)
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	fingerprint := chi.URLParam(r, "fingerprint")
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	content, err := s.store.ContentByFingerprint(ctx, fingerprint)
	if err != nil {
		s.logger.Error("get result failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load result")
		return
	}
	if content == nil {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}

	payload := map[string]any{"content": content}
	if dr, ok := s.store.(DetailReader); ok {
		if detail, err := dr.DetailByFingerprint(ctx, fingerprint); err == nil && detail != nil {
			payload["detail"] = detail
		}
		if files, err := dr.FileList(ctx, fingerprint); err == nil {
			payload["files"] = files
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

type categorySummary struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// listCategories reports the configured category codes with the current
// run's per-category item counts.
func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	counts := s.runner.Status().Categories
	summaries := make([]categorySummary, 0, len(s.categories))
	for _, code := range s.categories {
		summaries = append(summaries, categorySummary{Code: code, Count: counts[code]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": summaries})
}

func contentsOrEmpty(contents []monitor.Content) []monitor.Content {
	if contents == nil {
		return []monitor.Content{}
	}
	return contents
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.status, time.Since(start))
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

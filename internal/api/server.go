package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/dispatcher"
	"github.com/campusdata/admissions-crawler/internal/jobs"
	"github.com/campusdata/admissions-crawler/internal/metrics"
	"github.com/campusdata/admissions-crawler/internal/queue"
)

const defaultRequestTimeout = 60 * time.Second

// TargetLoader supplies the configured university list when a crawl request
// omits its own targets.
type TargetLoader func() ([]admissions.UniversityTarget, error)

// Config controls HTTP server behavior.
type Config struct {
	// RequestTimeout caps each request (default 60s).
	RequestTimeout time.Duration
	// APIKey guards the job routes when set. Health and metrics stay open.
	APIKey string
}

// Server wires HTTP handlers to the dispatcher and job store.
type Server struct {
	router      chi.Router
	store       jobs.Store
	dispatcher  *dispatcher.Dispatcher
	loadTargets TargetLoader
	logger      *zap.Logger
	cfg         Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	store jobs.Store,
	d *dispatcher.Dispatcher,
	loadTargets TargetLoader,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		store:       store,
		dispatcher:  d,
		loadTargets: loadTargets,
		logger:      logger,
		cfg:         cfg,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(apiKeyMiddleware(cfg.APIKey, logger))
		}
		r.Route("/crawl", func(r chi.Router) {
			r.Post("/", s.submitCrawl)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJobStatus)
				r.Get("/results", s.getJobResults)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

// crawlRequest is the optional POST /crawl body. Omitted targets fall back
// to the configured input file.
type crawlRequest struct {
	Targets           []admissions.UniversityTarget `json:"targets"`
	RunTimeoutSeconds int                           `json:"run_timeout_seconds"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.RunTimeoutSeconds < 0 {
		writeError(s.logger, w, http.StatusBadRequest, "run_timeout_seconds must not be negative")
		return
	}

	targets, err := s.resolveTargets(req.Targets)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	params := jobs.Parameters{Targets: targets, RunTimeoutSeconds: req.RunTimeoutSeconds}
	job, err := s.dispatcher.Submit(r.Context(), params)
	if err != nil {
		if errors.Is(err, queue.ErrFull) {
			writeError(s.logger, w, http.StatusServiceUnavailable, "job queue is full")
			return
		}
		s.logger.Error("job submit failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "failed to submit job")
		return
	}
	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

// resolveTargets validates request targets or falls back to the configured
// loader when the request named none.
func (s *Server) resolveTargets(requested []admissions.UniversityTarget) ([]admissions.UniversityTarget, error) {
	if len(requested) == 0 {
		if s.loadTargets == nil {
			return nil, errors.New("targets are required")
		}
		loaded, err := s.loadTargets()
		if err != nil {
			return nil, fmt.Errorf("load configured targets: %w", err)
		}
		if len(loaded) == 0 {
			return nil, errors.New("no valid targets configured")
		}
		return loaded, nil
	}

	valid := make([]admissions.UniversityTarget, 0, len(requested))
	for _, target := range requested {
		if strings.TrimSpace(target.Name) == "" || strings.TrimSpace(target.URL) == "" {
			continue
		}
		valid = append(valid, target)
	}
	if len(valid) == 0 {
		return nil, errors.New("no valid targets")
	}
	return valid, nil
}

// jobResponse is the job view returned by the API. Submission parameters
// stay internal.
type jobResponse struct {
	JobID       string                `json:"job_id"`
	Status      jobs.Status           `json:"status"`
	SubmittedAt time.Time             `json:"submitted_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	FinishedAt  *time.Time            `json:"finished_at,omitempty"`
	Counts      admissions.RunSummary `json:"counts"`
	Error       string                `json:"error,omitempty"`
}

func toJobResponse(job jobs.Job) jobResponse {
	return jobResponse{
		JobID:       job.ID,
		Status:      job.Status,
		SubmittedAt: job.SubmittedAt,
		StartedAt:   job.StartedAt,
		FinishedAt:  job.FinishedAt,
		Counts:      job.Counts,
		Error:       job.Error,
	}
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.store.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(s.logger, w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, toJobResponse(job))
}

func (s *Server) getJobResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.store.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(s.logger, w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load job")
		return
	}

	switch job.Status {
	case jobs.StatusPending, jobs.StatusRunning:
		writeError(s.logger, w, http.StatusConflict, fmt.Sprintf("job is %s", job.Status))
	case jobs.StatusFailed:
		writeError(s.logger, w, http.StatusInternalServerError, fmt.Sprintf("job failed: %s", job.Error))
	default:
		records, err := s.store.Results(r.Context(), jobID)
		if err != nil {
			s.logger.Error("load results failed", zap.String("job_id", jobID), zap.Error(err))
			writeError(s.logger, w, http.StatusInternalServerError, "failed to load results")
			return
		}
		writeJSON(s.logger, w, http.StatusOK, records)
	}
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

// requestID returns the id the middleware stored on the context.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("request_id", requestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", requestID(r.Context())),
						zap.Any("panic", rec))
					writeError(logger, w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(logger, w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
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

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON response failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}

// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Taichi-iskw/yt-digest/internal/digest"
	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/logger"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/pipeline"
	"github.com/Taichi-iskw/yt-digest/internal/repository/run"
	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

// Submitter accepts a video and returns once its transcript exists
type Submitter interface {
	Submit(ctx context.Context, source model.Source) (*pipeline.Submission, error)
}

// ProgressReporter reports run progress
type ProgressReporter interface {
	Status(ctx context.Context, runID string) (*model.Progress, error)
}

// Digester produces on-demand summaries and notes
type Digester interface {
	Summarize(ctx context.Context, runID string) (*digest.Result, error)
	Notes(ctx context.Context, runID string) (*digest.Result, error)
}

// Options configures the HTTP server
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxUploadMB  int64
}

// Server serves the pipeline's HTTP contract
type Server struct {
	store     *storage.Store
	runs      run.Repository
	submitter Submitter
	progress  ProgressReporter
	digester  Digester
	opts      Options
	log       *logger.Logger
}

// New creates a Server
func New(store *storage.Store, runs run.Repository, submitter Submitter, progress ProgressReporter, digester Digester, opts Options, log *logger.Logger) *Server {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 1024
	}
	return &Server{
		store:     store,
		runs:      runs,
		submitter: submitter,
		progress:  progress,
		digester:  digester,
		opts:      opts,
		log:       log.WithComponent("server"),
	}
}

// Handler returns the routed handler with request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("GET /progress", s.handleProgress)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /summarize", s.handleSummarize)
	mux.HandleFunc("POST /generate_notes", s.handleNotes)
	return s.withLogging(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.opts.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, errors.CodeInternal, "server terminated")
		}
		return nil
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLog := s.log.WithRequest(r)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			if p := recover(); p != nil {
				reqLog.WithField("panic", p).Error("handler panicked")
				writeJSON(rec, http.StatusInternalServerError, errorBody{Status: "error", Error: "internal server error"})
			}
			reqLog.WithField("status", rec.status).
				WithField("duration_ms", time.Since(start).Milliseconds()).
				Info("request handled")
		}()

		next.ServeHTTP(rec, r)
	})
}

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// writeError reports err with the status its code maps to
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.HTTPStatus(err), errorBody{Status: "error", Error: errors.MessageOf(err)})
}

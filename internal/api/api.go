// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api exposes the digest pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pdiddy/paper-digest/internal/jobs"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/store"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Pipeline is the run-trigger surface.
type Pipeline interface {
	RunDigest(ctx context.Context, opts ...pipeline.RunOption) (types.RunResult, error)
	AddPaper(ctx context.Context, idOrURL string) (*types.Paper, error)
	Resummarize(ctx context.Context, id string) (*types.Paper, error)
	RescoreByDate(ctx context.Context, day time.Time) (types.RescoreResult, error)
	SetUserScore(ctx context.Context, id string, score int) (*types.Paper, error)
	AuthorRanking(ctx context.Context, windowDays *int) ([]types.AuthorRank, error)
}

// Papers is the read side of the paper store plus profile curation.
type Papers interface {
	List(ctx context.Context, f store.Filter) ([]*types.Paper, error)
	Get(ctx context.Context, id string) (*types.Paper, error)
	PapersByAuthor(ctx context.Context, name string) ([]*types.Paper, error)
	UpsertAuthorProfile(ctx context.Context, p types.AuthorProfile) error
}

// JobLister reports in-flight jobs.
type JobLister interface {
	InFlight() []jobs.Job
}

// Server serves the HTTP API. Runs started through POST /run outlive the
// request that started them and stop when the base context passed to New
// is cancelled.
type Server struct {
	pipeline Pipeline
	papers   Papers
	jobs     JobLister
	logger   *slog.Logger
	base     context.Context
	runs     *runTracker
	router   chi.Router
}

// New builds the server and its routes.
func New(base context.Context, p Pipeline, papers Papers, jl JobLister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		pipeline: p,
		papers:   papers,
		jobs:     jl,
		logger:   logger,
		base:     base,
		runs:     newRunTracker(maxTrackedRuns),
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/jobs", s.handleJobs)

	r.Post("/run", s.handleRun)
	r.Get("/runs/{id}", s.handleRunStatus)
	r.Post("/rescore", s.handleRescore)

	r.Route("/papers", func(r chi.Router) {
		r.Get("/", s.handleListPapers)
		r.Post("/", s.handleAddPaper)
		r.Get("/{id}", s.handleGetPaper)
		r.Post("/{id}/resummarize", s.handleResummarize)
		r.Patch("/{id}/score", s.handleSetScore)
	})

	r.Route("/authors", func(r chi.Router) {
		r.Get("/", s.handleAuthors)
		r.Get("/{name}/papers", s.handleAuthorPapers)
		r.Put("/{name}", s.handlePutAuthor)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// statusOf maps a pipeline error to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidIdentifier), errors.Is(err, types.ErrInvalidScore):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrAlreadyInProgress):
		return http.StatusConflict
	case types.Retryable(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Retryable: types.Retryable(err)})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

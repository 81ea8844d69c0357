// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/store"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// maxWait caps the ?wait= duration of GET /runs/{id}.
const maxWait = 5 * time.Minute

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.InFlight())
}

type runRequest struct {
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
	Notify *bool  `json:"notify,omitempty"`
}

// POST /run starts a digest run in the background.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
	}

	id := uuid.NewString()
	opts := []pipeline.RunOption{pipeline.WithRunID(id)}
	if req.Start != "" || req.End != "" {
		start, err1 := time.Parse(types.DateLayout, req.Start)
		end, err2 := time.Parse(types.DateLayout, req.End)
		if err1 != nil || err2 != nil || end.Before(start) {
			badRequest(w, "start and end must be YYYY-MM-DD with start <= end")
			return
		}
		opts = append(opts, pipeline.WithDateRange(start, end))
	}
	if req.Notify != nil && !*req.Notify {
		opts = append(opts, pipeline.WithoutNotify())
	}

	st := s.runs.start(id)
	go func() {
		res, err := s.pipeline.RunDigest(s.base, opts...)
		if err != nil {
			s.logger.Warn("background run failed", "run", id, "err", err)
		}
		s.runs.finish(st, res)
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
}

// GET /runs/{id}[?wait=30s] returns a run's result, optionally blocking
// until it finishes.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := s.runs.get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown run"})
		return
	}
	if v := r.URL.Query().Get("wait"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			badRequest(w, "wait must be a duration such as 30s")
			return
		}
		timer := time.NewTimer(min(d, maxWait))
		defer timer.Stop()
		select {
		case <-st.done:
		case <-timer.C:
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, http.StatusOK, s.runs.result(st))
}

// POST /rescore?date=YYYY-MM-DD
func (s *Server) handleRescore(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse(types.DateLayout, r.URL.Query().Get("date"))
	if err != nil {
		badRequest(w, "date must be YYYY-MM-DD")
		return
	}
	res, err := s.pipeline.RescoreByDate(r.Context(), day)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /papers?date=&min_score=&author=&limit=
func (s *Server) handleListPapers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.Filter
	if v := q.Get("date"); v != "" {
		d, err := time.Parse(types.DateLayout, v)
		if err != nil {
			badRequest(w, "date must be YYYY-MM-DD")
			return
		}
		f.Date = &d
	}
	if v := q.Get("min_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "min_score must be an integer")
			return
		}
		f.MinScore = &n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	f.Author = q.Get("author")

	papers, err := s.papers.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilPapers(papers))
}

type addRequest struct {
	ID string `json:"id"`
}

type addResponse struct {
	Status string       `json:"status"`
	Paper  *types.Paper `json:"paper,omitempty"`
}

// POST /papers {"id": "..."}
func (s *Server) handleAddPaper(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		badRequest(w, "body must be {\"id\": \"<arXiv id or URL>\"}")
		return
	}
	p, err := s.pipeline.AddPaper(r.Context(), req.ID)
	switch {
	case errors.Is(err, types.ErrAlreadyExists):
		writeJSON(w, http.StatusOK, addResponse{Status: types.ErrAlreadyExists.Error(), Paper: p})
	case err != nil:
		s.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusCreated, addResponse{Status: "added", Paper: p})
	}
}

func (s *Server) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	p, err := s.papers.Get(r.Context(), paperID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleResummarize(w http.ResponseWriter, r *http.Request) {
	p, err := s.pipeline.Resummarize(r.Context(), paperID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type scoreRequest struct {
	Score *int `json:"score"`
}

func (s *Server) handleSetScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Score == nil {
		badRequest(w, "body must be {\"score\": 0..100}")
		return
	}
	p, err := s.pipeline.SetUserScore(r.Context(), paperID(r), *req.Score)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /authors[?days=N]
func (s *Server) handleAuthors(w http.ResponseWriter, r *http.Request) {
	var window *int
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "days must be a non-negative integer")
			return
		}
		window = &n
	}
	ranks, err := s.pipeline.AuthorRanking(r.Context(), window)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ranks == nil {
		ranks = []types.AuthorRank{}
	}
	writeJSON(w, http.StatusOK, ranks)
}

func (s *Server) handleAuthorPapers(w http.ResponseWriter, r *http.Request) {
	papers, err := s.papers.PapersByAuthor(r.Context(), pathParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilPapers(papers))
}

// PUT /authors/{name} replaces the curated profile.
func (s *Server) handlePutAuthor(w http.ResponseWriter, r *http.Request) {
	var prof types.AuthorProfile
	if err := json.NewDecoder(r.Body).Decode(&prof); err != nil {
		badRequest(w, "invalid profile")
		return
	}
	prof.Name = pathParam(r, "name")
	if err := s.papers.UpsertAuthorProfile(r.Context(), prof); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

// paperID returns the {id} path parameter. Old-style ids contain a slash
// and arrive escaped as %2F.
func paperID(r *http.Request) string {
	return pathParam(r, "id")
}

func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func nonNilPapers(p []*types.Paper) []*types.Paper {
	if p == nil {
		return []*types.Paper{}
	}
	return p
}

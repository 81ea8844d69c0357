// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/jobs"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/store"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// --- fakes ---

type fakePipeline struct {
	mu        sync.Mutex
	release   chan struct{}
	runOpts   int
	addErr    error
	resumErr  error
	scoreErr  error
	rescoreOn time.Time
	window    *int
}

func (f *fakePipeline) RunDigest(ctx context.Context, opts ...pipeline.RunOption) (types.RunResult, error) {
	f.mu.Lock()
	f.runOpts = len(opts)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return types.RunResult{ID: "ignored", Status: types.RunCompleted, Fetched: 3, New: 2}, nil
}

func (f *fakePipeline) AddPaper(ctx context.Context, idOrURL string) (*types.Paper, error) {
	if f.addErr != nil {
		return &types.Paper{ID: "2402.00001"}, f.addErr
	}
	return &types.Paper{ID: "2402.00001", Title: "Added"}, nil
}

func (f *fakePipeline) Resummarize(ctx context.Context, id string) (*types.Paper, error) {
	if f.resumErr != nil {
		return nil, f.resumErr
	}
	summary := "new summary"
	return &types.Paper{ID: id, Summary: &summary}, nil
}

func (f *fakePipeline) RescoreByDate(ctx context.Context, day time.Time) (types.RescoreResult, error) {
	f.rescoreOn = day
	return types.RescoreResult{Date: day.Format(types.DateLayout), Rescored: 2}, nil
}

func (f *fakePipeline) SetUserScore(ctx context.Context, id string, score int) (*types.Paper, error) {
	if f.scoreErr != nil {
		return nil, f.scoreErr
	}
	return &types.Paper{ID: id, UserScore: &score, Score: &score}, nil
}

func (f *fakePipeline) AuthorRanking(ctx context.Context, windowDays *int) ([]types.AuthorRank, error) {
	f.window = windowDays
	return []types.AuthorRank{{Name: "Ada Lovelace", PaperCount: 2}}, nil
}

type fakePapers struct {
	filter   store.Filter
	profiles []types.AuthorProfile
	author   string
}

func (f *fakePapers) List(ctx context.Context, flt store.Filter) ([]*types.Paper, error) {
	f.filter = flt
	return nil, nil
}

func (f *fakePapers) Get(ctx context.Context, id string) (*types.Paper, error) {
	if id == "hep-th/9901001" || id == "2402.00001" {
		return &types.Paper{ID: id}, nil
	}
	return nil, fmt.Errorf("paper %s: %w", id, types.ErrNotFound)
}

func (f *fakePapers) PapersByAuthor(ctx context.Context, name string) ([]*types.Paper, error) {
	f.author = name
	return []*types.Paper{{ID: "2402.00001"}}, nil
}

func (f *fakePapers) UpsertAuthorProfile(ctx context.Context, p types.AuthorProfile) error {
	f.profiles = append(f.profiles, p)
	return nil
}

type fakeJobs []jobs.Job

func (f fakeJobs) InFlight() []jobs.Job { return f }

func newTestServer(p *fakePipeline, papers *fakePapers) *Server {
	return New(context.Background(), p, papers, fakeJobs{{PaperID: "2402.00009", Kind: jobs.KindRescore}}, nil)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// --- tests ---

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", types.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", types.ErrAlreadyInProgress), http.StatusConflict},
		{fmt.Errorf("x: %w", types.ErrScoringFailed), http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", types.ErrSummarizationFailed), http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", types.ErrSourceUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", types.ErrInvalidScore), http.StatusBadRequest},
		{fmt.Errorf("x: %w", types.ErrInvalidIdentifier), http.StatusBadRequest},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}

func TestHealthAndJobs(t *testing.T) {
	s := newTestServer(&fakePipeline{}, &fakePapers{})

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))

	rec = do(t, s, http.MethodGet, "/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]jobs.Job](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, jobs.KindRescore, got[0].Kind)
}

func TestRunInBackgroundAndWait(t *testing.T) {
	p := &fakePipeline{release: make(chan struct{})}
	s := newTestServer(p, &fakePapers{})

	rec := do(t, s, http.MethodPost, "/run", `{"start":"2024-02-01","end":"2024-02-03","notify":false}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode[map[string]string](t, rec)["run_id"]
	require.NotEmpty(t, id)

	rec = do(t, s, http.MethodGet, "/runs/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.RunRunning, decode[types.RunResult](t, rec).Status)

	rec = do(t, s, http.MethodGet, "/runs/"+id+"?wait=10ms", "")
	assert.Equal(t, types.RunRunning, decode[types.RunResult](t, rec).Status)

	close(p.release)
	rec = do(t, s, http.MethodGet, "/runs/"+id+"?wait=5s", "")
	res := decode[types.RunResult](t, rec)
	assert.Equal(t, types.RunCompleted, res.Status)
	assert.Equal(t, 2, res.New)

	p.mu.Lock()
	assert.Equal(t, 3, p.runOpts, "run id, date range, and notify options")
	p.mu.Unlock()
}

func TestRunRejectsBadInput(t *testing.T) {
	s := newTestServer(&fakePipeline{}, &fakePapers{})
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/run", `{"start":"2024-02-05","end":"2024-02-01"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/run", `not json`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/runs/nope", "").Code)
}

func TestRunTrackerEvictsOldest(t *testing.T) {
	tr := newRunTracker(2)
	tr.start("a")
	tr.start("b")
	tr.start("c")
	_, ok := tr.get("a")
	assert.False(t, ok)
	_, ok = tr.get("c")
	assert.True(t, ok)
}

func TestAddPaper(t *testing.T) {
	p := &fakePipeline{}
	s := newTestServer(p, &fakePapers{})

	rec := do(t, s, http.MethodPost, "/papers", `{"id":"2402.00001"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Added", decode[addResponse](t, rec).Paper.Title)

	p.addErr = fmt.Errorf("paper 2402.00001: %w", types.ErrAlreadyExists)
	rec = do(t, s, http.MethodPost, "/papers", `{"id":"2402.00001"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already tracked", decode[addResponse](t, rec).Status)

	p.addErr = fmt.Errorf("fetching: %w", types.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/papers", `{"id":"2402.99999"}`).Code)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/papers", `{}`).Code)
}

func TestResummarizeStatuses(t *testing.T) {
	p := &fakePipeline{}
	s := newTestServer(p, &fakePapers{})

	rec := do(t, s, http.MethodPost, "/papers/2402.00001/resummarize", "")
	require.Equal(t, http.StatusOK, rec.Code)

	p.resumErr = fmt.Errorf("resummarize 2402.00001: %w", types.ErrAlreadyInProgress)
	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/papers/2402.00001/resummarize", "").Code)

	p.resumErr = fmt.Errorf("x: %w: %w", types.ErrSummarizationFailed, context.DeadlineExceeded)
	rec = do(t, s, http.MethodPost, "/papers/2402.00001/resummarize", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, decode[errorBody](t, rec).Retryable)

	p.resumErr = fmt.Errorf("x: %w", types.ErrNotFound)
	rec = do(t, s, http.MethodPost, "/papers/2402.00001/resummarize", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode[errorBody](t, rec).Retryable)
}

func TestGetPaperOldStyleID(t *testing.T) {
	s := newTestServer(&fakePipeline{}, &fakePapers{})

	rec := do(t, s, http.MethodGet, "/papers/hep-th%2F9901001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hep-th/9901001", decode[types.Paper](t, rec).ID)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/papers/2402.99999", "").Code)
}

func TestListPapersFilters(t *testing.T) {
	papers := &fakePapers{}
	s := newTestServer(&fakePipeline{}, papers)

	rec := do(t, s, http.MethodGet, "/papers?date=2024-02-03&min_score=85&author=Ada+Lovelace&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
	require.NotNil(t, papers.filter.Date)
	assert.Equal(t, "2024-02-03", papers.filter.Date.Format(types.DateLayout))
	assert.Equal(t, 85, *papers.filter.MinScore)
	assert.Equal(t, "Ada Lovelace", papers.filter.Author)
	assert.Equal(t, 10, papers.filter.Limit)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/papers?date=yesterday", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/papers?min_score=high", "").Code)
}

func TestSetScore(t *testing.T) {
	p := &fakePipeline{}
	s := newTestServer(p, &fakePapers{})

	rec := do(t, s, http.MethodPatch, "/papers/2402.00001/score", `{"score":95}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 95, *decode[types.Paper](t, rec).UserScore)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPatch, "/papers/2402.00001/score", `{}`).Code)

	p.scoreErr = fmt.Errorf("score 101: %w", types.ErrInvalidScore)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPatch, "/papers/2402.00001/score", `{"score":101}`).Code)
}

func TestRescore(t *testing.T) {
	p := &fakePipeline{}
	s := newTestServer(p, &fakePapers{})

	rec := do(t, s, http.MethodPost, "/rescore?date=2024-02-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[types.RescoreResult](t, rec).Rescored)
	assert.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), p.rescoreOn)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/rescore", "").Code)
}

func TestAuthors(t *testing.T) {
	p := &fakePipeline{}
	papers := &fakePapers{}
	s := newTestServer(p, papers)

	rec := do(t, s, http.MethodGet, "/authors?days=30", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, p.window)
	assert.Equal(t, 30, *p.window)
	assert.Equal(t, "Ada Lovelace", decode[[]types.AuthorRank](t, rec)[0].Name)

	do(t, s, http.MethodGet, "/authors", "")
	assert.Nil(t, p.window)

	rec = do(t, s, http.MethodGet, "/authors/Ada%20Lovelace/papers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada Lovelace", papers.author)

	rec = do(t, s, http.MethodPut, "/authors/Ada%20Lovelace", `{"bio":"Analyst","is_important":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, papers.profiles, 1)
	assert.Equal(t, types.AuthorProfile{Name: "Ada Lovelace", Bio: "Analyst", IsImportant: true}, papers.profiles[0])
}

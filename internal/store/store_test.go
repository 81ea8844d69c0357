// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(s string) time.Time {
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newPaper(id, published string, authors ...string) *types.Paper {
	return types.NewPaper(types.RawPaper{
		ID:              id,
		Title:           "Title of " + id,
		Abstract:        "Abstract of " + id,
		Authors:         authors,
		PrimaryCategory: "cs.CV",
		Categories:      []string{"cs.CV", "cs.AI"},
		Published:       date(published),
		PDFURL:          "https://arxiv.org/pdf/" + id,
	})
}

func insert(t *testing.T, s *Store, p *types.Paper) {
	t.Helper()
	ok, err := s.InsertIfAbsent(context.Background(), p)
	require.NoError(t, err)
	require.True(t, ok, "paper %s not inserted", p.ID)
}

func ids(papers []*types.Paper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.ID
	}
	return out
}

// --- schema ---

func TestOpenAppliesMigrations(t *testing.T) {
	s := testStore(t)
	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	insert(t, s, newPaper("2402.00001", "2024-02-03", "Ada Lovelace"))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	p, err := s.Get(ctx, "2402.00001")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada Lovelace"}, p.Authors)
}

func TestAuthorIndexMigrationBackfills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	ctx := context.Background()

	// Build a version-2 database by hand, as an older release left it.
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE schema_version (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`)
	require.NoError(t, err)
	for _, m := range migrations[:2] {
		tx, err := db.Begin()
		require.NoError(t, err)
		require.NoError(t, m.apply(ctx, tx))
		_, err = tx.Exec(`INSERT INTO schema_version VALUES (?, ?)`, m.version, formatTime(time.Now()))
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
	}
	now := formatTime(time.Now())
	_, err = db.Exec(`INSERT INTO papers (id, title, authors, published, created_at, updated_at)
		VALUES ('2402.00001', 'Legacy', ?, '2024-02-03', ?, ?)`,
		`["Google Deepmind: John Smith", ":", "  O&#39;Regan  "]`, now, now)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()

	p, err := s.Get(ctx, "2402.00001")
	require.NoError(t, err)
	assert.Equal(t, []string{"Google Deepmind John Smith", "O'Regan"}, p.Authors)

	counts, err := s.ListAuthors(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Google Deepmind John Smith": 1, "O'Regan": 1}, counts)
}

// --- papers ---

func TestInsertIfAbsent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := newPaper("2402.00001", "2024-02-03", "Ada Lovelace", "Alan Turing")
	ok, err := s.InsertIfAbsent(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	dup := newPaper("2402.00001", "2024-02-04", "Someone Else")
	dup.Title = "Different"
	ok, err = s.InsertIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Get(ctx, "2402.00001")
	require.NoError(t, err)
	assert.Equal(t, "Title of 2402.00001", got.Title)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, got.Authors)
	assert.Equal(t, []string{"cs.CV", "cs.AI"}, got.Categories)
	assert.Equal(t, "2024-02-03", got.Published.Format(types.DateLayout))
	assert.Nil(t, got.Score)
	assert.Nil(t, got.ScoreReason)
	assert.Nil(t, got.Summary)
	assert.False(t, got.CreatedAt.IsZero())

	counts, err := s.ListAuthors(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Ada Lovelace": 1, "Alan Turing": 1}, counts)
}

func TestInsertSanitizesText(t *testing.T) {
	s := testStore(t)
	p := newPaper("2402.00001", "2024-02-03")
	p.Abstract = "bad\x00byte \xff here"
	insert(t, s, p)

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "badbyte  here", got.Abstract)
}

func TestGetNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "2402.99999")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpdateScore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	insert(t, s, newPaper("2402.00001", "2024-02-03"))

	details := &types.ScoreDetails{Relevance: 5, Novelty: 4, Clarity: 3, RiskFlags: []string{"small eval"}}
	require.NoError(t, s.UpdateScore(ctx, "2402.00001", 88, "matches video interests", details))

	got, err := s.Get(ctx, "2402.00001")
	require.NoError(t, err)
	require.NotNil(t, got.Score)
	require.NotNil(t, got.ScoreReason)
	assert.Equal(t, 88, *got.Score)
	assert.Equal(t, "matches video interests", *got.ScoreReason)
	assert.Equal(t, details, got.ScoreDetails)

	assert.ErrorIs(t, s.UpdateScore(ctx, "missing", 1, "x", nil), types.ErrNotFound)
}

func TestUpdateSummaryAndAffiliations(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	insert(t, s, newPaper("2402.00001", "2024-02-03"))

	require.NoError(t, s.UpdateSummary(ctx, "2402.00001", "## TL;DR\nGood paper."))
	require.NoError(t, s.UpdateAffiliations(ctx, "2402.00001", types.Affiliations{
		Main: "Google DeepMind",
		All:  []string{"Google DeepMind", "University of Oxford"},
	}))

	got, err := s.Get(ctx, "2402.00001")
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "## TL;DR\nGood paper.", *got.Summary)
	require.NotNil(t, got.MainAffiliation)
	assert.Equal(t, "Google DeepMind", *got.MainAffiliation)
	assert.Equal(t, []string{"Google DeepMind", "University of Oxford"}, got.Affiliations)

	require.NoError(t, s.UpdateAffiliations(ctx, "2402.00001", types.Affiliations{}))
	got, err = s.Get(ctx, "2402.00001")
	require.NoError(t, err)
	assert.Nil(t, got.MainAffiliation)
}

func TestSetUserScore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	insert(t, s, newPaper("2402.00001", "2024-02-03"))

	require.NoError(t, s.SetUserScore(ctx, "2402.00001", 99))
	got, err := s.Get(ctx, "2402.00001")
	require.NoError(t, err)
	require.NotNil(t, got.UserScore)
	assert.Equal(t, 99, *got.UserScore)
	assert.Equal(t, 99, *got.Score)
	require.NotNil(t, got.ScoreReason, "score and reason are set together")

	assert.ErrorIs(t, s.SetUserScore(ctx, "2402.00001", 101), types.ErrInvalidScore)
	assert.ErrorIs(t, s.SetUserScore(ctx, "2402.00001", -1), types.ErrInvalidScore)
	assert.ErrorIs(t, s.SetUserScore(ctx, "missing", 50), types.ErrNotFound)
}

func TestExistingIDsChunks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	insert(t, s, newPaper("2402.00001", "2024-02-03"))
	insert(t, s, newPaper("2402.00700", "2024-02-03"))

	var candidates []string
	for i := 0; i < 1200; i++ {
		candidates = append(candidates, fmt.Sprintf("2402.%05d", i))
	}
	got, err := s.ExistingIDs(ctx, candidates)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"2402.00001": {}, "2402.00700": {}}, got)

	got, err = s.ExistingIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListByDate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	insert(t, s, newPaper("2402.00001", "2024-02-03"))
	insert(t, s, newPaper("2402.00002", "2024-02-03"))
	insert(t, s, newPaper("2402.00003", "2024-02-04"))
	require.NoError(t, s.UpdateScore(ctx, "2402.00002", 90, "r", nil))
	require.NoError(t, s.UpdateScore(ctx, "2402.00001", 40, "r", nil))

	papers, err := s.ListByDate(ctx, date("2024-02-03"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2402.00002", "2402.00001"}, ids(papers))
}

func TestListFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	insert(t, s, newPaper("2402.00001", "2024-02-01", "Ada Lovelace"))
	insert(t, s, newPaper("2402.00002", "2024-02-02", "Alan Turing"))
	insert(t, s, newPaper("2402.00003", "2024-02-03", "Ada Lovelace", "Alan Turing"))
	require.NoError(t, s.UpdateScore(ctx, "2402.00001", 95, "r", nil))
	require.NoError(t, s.UpdateScore(ctx, "2402.00002", 50, "r", nil))
	require.NoError(t, s.SetUserScore(ctx, "2402.00003", 86))

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2402.00003", "2402.00002", "2402.00001"}, ids(all))

	minScore := 85
	high, err := s.List(ctx, Filter{MinScore: &minScore})
	require.NoError(t, err)
	assert.Equal(t, []string{"2402.00003", "2402.00001"}, ids(high))

	byAda, err := s.PapersByAuthor(ctx, "Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, []string{"2402.00003", "2402.00001"}, ids(byAda))

	since := date("2024-02-02")
	recent, err := s.List(ctx, Filter{Since: &since, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"2402.00003"}, ids(recent))
}

func TestPendingDigestAndMarkNotified(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	insert(t, s, newPaper("2402.00001", "2024-02-03"))
	insert(t, s, newPaper("2402.00002", "2024-02-03"))
	insert(t, s, newPaper("2402.00003", "2024-02-03"))
	require.NoError(t, s.UpdateScore(ctx, "2402.00001", 90, "r", nil))
	require.NoError(t, s.UpdateSummary(ctx, "2402.00001", "summary"))
	require.NoError(t, s.UpdateScore(ctx, "2402.00002", 40, "r", nil))
	require.NoError(t, s.UpdateSummary(ctx, "2402.00002", "summary"))
	require.NoError(t, s.UpdateScore(ctx, "2402.00003", 95, "r", nil))

	pending, err := s.PendingDigest(ctx, 85)
	require.NoError(t, err)
	assert.Equal(t, []string{"2402.00001"}, ids(pending))

	at := time.Date(2024, 2, 4, 6, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkNotified(ctx, []string{"2402.00001"}, at))

	pending, err = s.PendingDigest(ctx, 85)
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, err := s.Get(ctx, "2402.00001")
	require.NoError(t, err)
	require.NotNil(t, got.NotifiedAt)
	assert.True(t, at.Equal(*got.NotifiedAt))
}

// --- authors ---

func TestListAuthorsWindow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	insert(t, s, newPaper("2401.00001", "2024-01-10", "Ada Lovelace"))
	insert(t, s, newPaper("2402.00001", "2024-02-02", "Ada Lovelace", "Alan Turing"))
	insert(t, s, newPaper("2402.00002", "2024-02-03", "Ada Lovelace"))

	all, err := s.ListAuthors(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Ada Lovelace": 3, "Alan Turing": 1}, all)

	since := date("2024-02-01")
	recent, err := s.ListAuthors(ctx, &since)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Ada Lovelace": 2, "Alan Turing": 1}, recent)
}

func TestAuthorProfilesSurvivePaperDeletion(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	insert(t, s, newPaper("2402.00001", "2024-02-03", "Ada Lovelace"))
	require.NoError(t, s.UpsertAuthorProfile(ctx, types.AuthorProfile{
		Name: "Ada Lovelace", Bio: "Analyst", IsImportant: true,
	}))

	require.NoError(t, s.DeletePaper(ctx, "2402.00001"))
	assert.ErrorIs(t, s.DeletePaper(ctx, "2402.00001"), types.ErrNotFound)

	counts, err := s.ListAuthors(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, counts)

	profiles, err := s.AuthorProfiles(ctx, []string{"Ada Lovelace", "Nobody"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.True(t, profiles["Ada Lovelace"].IsImportant)
	assert.Equal(t, "Analyst", profiles["Ada Lovelace"].Bio)
}

func TestUpsertAuthorProfileReplaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertAuthorProfile(ctx, types.AuthorProfile{Name: "Ada Lovelace", IsImportant: true}))
	require.NoError(t, s.UpsertAuthorProfile(ctx, types.AuthorProfile{Name: "Ada Lovelace", Website: "https://example.org"}))

	profiles, err := s.AuthorProfiles(ctx, nil)
	require.NoError(t, err)
	assert.False(t, profiles["Ada Lovelace"].IsImportant)
	assert.Equal(t, "https://example.org", profiles["Ada Lovelace"].Website)

	assert.Error(t, s.UpsertAuthorProfile(ctx, types.AuthorProfile{Name: "  "}))
}

// --- export ---

func TestExport(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	insert(t, s, newPaper("2402.00001", "2024-02-03", "Ada Lovelace"))
	insert(t, s, newPaper("2402.00002", "2024-02-04", "Alan Turing"))
	require.NoError(t, s.UpsertAuthorProfile(ctx, types.AuthorProfile{Name: "Ada Lovelace", IsImportant: true}))

	var buf bytes.Buffer
	n, err := s.Export(ctx, &buf, Filter{}, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var entries []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "2402.00002", entries[0]["id"])
	assert.NotContains(t, entries[0], "author_profiles")
	assert.Contains(t, entries[1], "author_profiles")

	buf.Reset()
	_, err = s.Export(ctx, &buf, Filter{}, FormatJSON)
	require.NoError(t, err)
	var jsonEntries []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &jsonEntries))
	assert.Equal(t, "Title of 2402.00001", jsonEntries[1]["title"])

	_, err = s.Export(ctx, &buf, Filter{}, "xml")
	assert.Error(t, err)
}

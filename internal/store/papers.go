// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// existsChunk bounds the number of parameters in one IN clause.
const existsChunk = 500

const paperColumns = `id, title, abstract, authors, primary_category, categories,
	published, pdf_url, main_affiliation, affiliations, score, score_reason,
	score_details, user_score, summary, notified_at, created_at, updated_at`

// effectiveScore is the SQL expression for the user score when set, else
// the AI score.
const effectiveScore = `COALESCE(user_score, score)`

// InsertIfAbsent stores p unless a paper with the same ID exists. It
// reports whether the row was inserted. Text fields are sanitized and
// timestamps filled in.
func (s *Store) InsertIfAbsent(ctx context.Context, p *types.Paper) (bool, error) {
	if p.ID == "" {
		return false, fmt.Errorf("paper has no id: %w", types.ErrInvalidIdentifier)
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var details, affiliations any
	if p.ScoreDetails != nil {
		details = mustJSON(p.ScoreDetails)
	}
	if p.Affiliations != nil {
		affiliations = mustJSON(p.Affiliations)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO papers (`+paperColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		p.ID, types.Sanitize(p.Title), types.Sanitize(p.Abstract),
		mustJSON(nonNil(p.Authors)), p.PrimaryCategory, mustJSON(nonNil(p.Categories)),
		p.Published.Format(types.DateLayout), p.PDFURL,
		p.MainAffiliation, affiliations, p.Score, p.ScoreReason, details,
		p.UserScore, sanitizePtr(p.Summary), timePtr(p.NotifiedAt),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("inserting paper %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting paper %s: %w", p.ID, err)
	}
	if n == 0 {
		return false, nil
	}

	if err := insertAuthors(ctx, tx, p.ID, p.Authors); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing paper %s: %w", p.ID, err)
	}
	return true, nil
}

// Get returns the paper with the given ID or types.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*types.Paper, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = ?`, id)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("paper %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading paper %s: %w", id, err)
	}
	return p, nil
}

// UpdateScore writes the score, its reason, and optional details together.
func (s *Store) UpdateScore(ctx context.Context, id string, score int, reason string, details *types.ScoreDetails) error {
	var d any
	if details != nil {
		d = mustJSON(details)
	}
	return s.update(ctx, id,
		`UPDATE papers SET score = ?, score_reason = ?, score_details = ?, updated_at = ? WHERE id = ?`,
		score, types.Sanitize(reason), d, formatTime(time.Now()), id)
}

// UpdateSummary replaces the personalized summary.
func (s *Store) UpdateSummary(ctx context.Context, id, summary string) error {
	return s.update(ctx, id,
		`UPDATE papers SET summary = ?, updated_at = ? WHERE id = ?`,
		types.Sanitize(summary), formatTime(time.Now()), id)
}

// UpdateAffiliations records the extracted institutions. An empty main
// affiliation is stored as NULL.
func (s *Store) UpdateAffiliations(ctx context.Context, id string, a types.Affiliations) error {
	var main any
	if m := strings.TrimSpace(a.Main); m != "" {
		main = types.Sanitize(m)
	}
	return s.update(ctx, id,
		`UPDATE papers SET main_affiliation = ?, affiliations = ?, updated_at = ? WHERE id = ?`,
		main, mustJSON(nonNil(a.All)), formatTime(time.Now()), id)
}

// SetUserScore records a user override. The score column mirrors it; an
// existing AI reason is kept, otherwise the reason notes the override.
func (s *Store) SetUserScore(ctx context.Context, id string, score int) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("score %d: %w", score, types.ErrInvalidScore)
	}
	return s.update(ctx, id,
		`UPDATE papers SET user_score = ?, score = ?, score_reason = COALESCE(score_reason, ?), updated_at = ? WHERE id = ?`,
		score, score, "Score set by user.", formatTime(time.Now()), id)
}

// MarkNotified stamps the given papers as delivered.
func (s *Store) MarkNotified(ctx context.Context, ids []string, at time.Time) error {
	for chunk := range chunks(ids, existsChunk) {
		args := make([]any, 0, len(chunk)+1)
		args = append(args, formatTime(at))
		for _, id := range chunk {
			args = append(args, id)
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE papers SET notified_at = ? WHERE id IN (`+placeholders(len(chunk))+`)`,
			args...,
		); err != nil {
			return fmt.Errorf("marking papers notified: %w", err)
		}
	}
	return nil
}

// DeletePaper removes a paper and its author rows. Curated profiles stay.
func (s *Store) DeletePaper(ctx context.Context, id string) error {
	return s.update(ctx, id, `DELETE FROM papers WHERE id = ?`, id)
}

// update runs a single-row statement and maps zero affected rows to
// types.ErrNotFound.
func (s *Store) update(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating paper %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating paper %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("paper %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// ExistingIDs returns the subset of ids already stored. Lookups are
// batched into IN queries of at most 500 parameters.
func (s *Store) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(ids))
	for chunk := range chunks(ids, existsChunk) {
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT id FROM papers WHERE id IN (`+placeholders(len(chunk))+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("checking existing ids: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning id: %w", err)
			}
			found[id] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return found, nil
}

// Filter selects papers for List. Zero values mean no constraint.
type Filter struct {
	Date     *time.Time
	Since    *time.Time
	MinScore *int
	Author   string
	Limit    int
}

// List returns papers matching f, newest first and by descending score
// within a date.
func (s *Store) List(ctx context.Context, f Filter) ([]*types.Paper, error) {
	var (
		where []string
		args  []any
	)
	if f.Date != nil {
		where = append(where, `published = ?`)
		args = append(args, f.Date.Format(types.DateLayout))
	}
	if f.Since != nil {
		where = append(where, `published >= ?`)
		args = append(args, f.Since.Format(types.DateLayout))
	}
	if f.MinScore != nil {
		where = append(where, effectiveScore+` >= ?`)
		args = append(args, *f.MinScore)
	}
	if f.Author != "" {
		where = append(where, `id IN (SELECT paper_id FROM paper_authors WHERE name = ?)`)
		args = append(args, f.Author)
	}

	q := `SELECT ` + paperColumns + ` FROM papers`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY published DESC, COALESCE(user_score, score, -1) DESC, id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return s.query(ctx, q, args...)
}

// ListByDate returns every paper published on the UTC calendar date of day.
func (s *Store) ListByDate(ctx context.Context, day time.Time) ([]*types.Paper, error) {
	d := types.DateOf(day)
	return s.List(ctx, Filter{Date: &d})
}

// PapersByAuthor returns the papers listing name as an author.
func (s *Store) PapersByAuthor(ctx context.Context, name string) ([]*types.Paper, error) {
	return s.List(ctx, Filter{Author: name})
}

// PendingDigest returns summarized papers not yet notified whose
// effective score is at least minScore.
func (s *Store) PendingDigest(ctx context.Context, minScore int) ([]*types.Paper, error) {
	return s.query(ctx,
		`SELECT `+paperColumns+` FROM papers
		 WHERE summary IS NOT NULL AND notified_at IS NULL AND `+effectiveScore+` >= ?
		 ORDER BY published DESC, `+effectiveScore+` DESC, id`,
		minScore)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]*types.Paper, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var out []*types.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(sc scanner) (*types.Paper, error) {
	var (
		p                                    types.Paper
		authors, categories, published       string
		mainAff, affs, reason, details, summ sql.NullString
		notified                             sql.NullString
		score, userScore                     sql.NullInt64
		created, updated                     string
	)
	if err := sc.Scan(&p.ID, &p.Title, &p.Abstract, &authors, &p.PrimaryCategory, &categories,
		&published, &p.PDFURL, &mainAff, &affs, &score, &reason,
		&details, &userScore, &summ, &notified, &created, &updated); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(authors), &p.Authors); err != nil {
		return nil, fmt.Errorf("decoding authors of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(categories), &p.Categories); err != nil {
		return nil, fmt.Errorf("decoding categories of %s: %w", p.ID, err)
	}
	p.Published, _ = time.Parse(types.DateLayout, published)
	if mainAff.Valid {
		p.MainAffiliation = &mainAff.String
	}
	if affs.Valid {
		if err := json.Unmarshal([]byte(affs.String), &p.Affiliations); err != nil {
			return nil, fmt.Errorf("decoding affiliations of %s: %w", p.ID, err)
		}
	}
	if score.Valid {
		v := int(score.Int64)
		p.Score = &v
	}
	if reason.Valid {
		p.ScoreReason = &reason.String
	}
	if details.Valid {
		var d types.ScoreDetails
		if err := json.Unmarshal([]byte(details.String), &d); err != nil {
			return nil, fmt.Errorf("decoding score details of %s: %w", p.ID, err)
		}
		p.ScoreDetails = &d
	}
	if userScore.Valid {
		v := int(userScore.Int64)
		p.UserScore = &v
	}
	if summ.Valid {
		p.Summary = &summ.String
	}
	if notified.Valid {
		t := parseTime(notified.String)
		p.NotifiedAt = &t
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

func chunks(ids []string, size int) func(func([]string) bool) {
	return func(yield func([]string) bool) {
		for len(ids) > 0 {
			n := min(size, len(ids))
			if !yield(ids[:n]) {
				return
			}
			ids = ids[n:]
		}
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func sanitizePtr(s *string) any {
	if s == nil {
		return nil
	}
	return types.Sanitize(*s)
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

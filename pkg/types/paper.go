// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the data model shared by the digest pipeline stages.
package types

import (
	"html"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for publication dates in
// queries, the API, and digest grouping.
const DateLayout = "2006-01-02"

// RawPaper is a paper record as returned by the source catalog, before it
// is stored. Authors and categories are already split into sequences.
type RawPaper struct {
	ID              string    `json:"id" yaml:"id"`
	Title           string    `json:"title" yaml:"title"`
	Abstract        string    `json:"abstract" yaml:"abstract"`
	Authors         []string  `json:"authors" yaml:"authors"`
	PrimaryCategory string    `json:"primary_category" yaml:"primary_category"`
	Categories      []string  `json:"categories" yaml:"categories"`
	Published       time.Time `json:"published" yaml:"published"`
	PDFURL          string    `json:"pdf_url" yaml:"pdf_url"`
}

// ScoreDetails holds the secondary ratings returned alongside a relevance
// score. Ratings are on a 0-5 scale.
type ScoreDetails struct {
	Relevance int      `json:"relevance" yaml:"relevance"`
	Novelty   int      `json:"novelty" yaml:"novelty"`
	Clarity   int      `json:"clarity" yaml:"clarity"`
	RiskFlags []string `json:"risk_flags,omitempty" yaml:"risk_flags,omitempty"`
}

// ScoreResult is the Scorer's output for one paper.
type ScoreResult struct {
	Score   int          `json:"score" yaml:"score"`
	Reason  string       `json:"reason" yaml:"reason"`
	Details ScoreDetails `json:"details" yaml:"details"`
}

// Affiliations is the best-effort institution data extracted from a
// paper's full text.
type Affiliations struct {
	Main string   `json:"main_affiliation" yaml:"main_affiliation"`
	All  []string `json:"affiliations" yaml:"affiliations"`
}

// Paper is a tracked paper with its pipeline state.
type Paper struct {
	// ID is the arXiv identifier without version suffix (e.g. "2401.01234").
	ID string `json:"id" yaml:"id"`

	Title    string   `json:"title" yaml:"title"`
	Abstract string   `json:"abstract" yaml:"abstract"`
	Authors  []string `json:"authors" yaml:"authors"`

	PrimaryCategory string   `json:"primary_category" yaml:"primary_category"`
	Categories      []string `json:"categories" yaml:"categories"`

	// Published is the submission date in UTC, truncated to the day.
	Published time.Time `json:"published" yaml:"published"`
	PDFURL    string    `json:"pdf_url" yaml:"pdf_url"`

	MainAffiliation *string  `json:"main_affiliation,omitempty" yaml:"main_affiliation,omitempty"`
	Affiliations    []string `json:"affiliations,omitempty" yaml:"affiliations,omitempty"`

	// Score and ScoreReason are written together.
	Score        *int          `json:"score,omitempty" yaml:"score,omitempty"`
	ScoreReason  *string       `json:"score_reason,omitempty" yaml:"score_reason,omitempty"`
	ScoreDetails *ScoreDetails `json:"score_details,omitempty" yaml:"score_details,omitempty"`

	// UserScore overrides AI scoring when set.
	UserScore *int `json:"user_score,omitempty" yaml:"user_score,omitempty"`

	Summary    *string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	NotifiedAt *time.Time `json:"notified_at,omitempty" yaml:"notified_at,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// EffectiveScore returns the user score if set, else the AI score.
func (p *Paper) EffectiveScore() (int, bool) {
	if p.UserScore != nil {
		return *p.UserScore, true
	}
	if p.Score != nil {
		return *p.Score, true
	}
	return 0, false
}

// HasAuthor reports whether name appears in the author list.
func (p *Paper) HasAuthor(name string) bool {
	for _, a := range p.Authors {
		if a == name {
			return true
		}
	}
	return false
}

// NewPaper builds a Paper from a raw catalog record, normalizing
// every field once so later readers never re-parse.
func NewPaper(raw RawPaper) *Paper {
	cats := NormalizeCategories(raw.PrimaryCategory, raw.Categories)
	primary := raw.PrimaryCategory
	if primary == "" && len(cats) > 0 {
		primary = cats[0]
	}
	return &Paper{
		ID:              strings.TrimSpace(raw.ID),
		Title:           collapseSpace(Sanitize(raw.Title)),
		Abstract:        collapseSpace(Sanitize(raw.Abstract)),
		Authors:         NormalizeAuthors(raw.Authors),
		PrimaryCategory: primary,
		Categories:      cats,
		Published:       DateOf(raw.Published),
		PDFURL:          strings.TrimSpace(raw.PDFURL),
	}
}

// NormalizeAuthors cleans author names: HTML entities are unescaped,
// colons removed, whitespace collapsed. Empty results are dropped.
func NormalizeAuthors(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = html.UnescapeString(Sanitize(n))
		n = strings.ReplaceAll(n, ":", "")
		n = collapseSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

// NormalizeCategories returns categories with the primary first and
// duplicates removed.
func NormalizeCategories(primary string, cats []string) []string {
	seen := make(map[string]bool, len(cats)+1)
	var out []string
	add := func(c string) {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			return
		}
		seen[c] = true
		out = append(out, c)
	}
	add(primary)
	for _, c := range cats {
		add(c)
	}
	return out
}

// Sanitize strips NUL bytes and replaces invalid UTF-8 so text is safe
// to store.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.ToValidUTF8(s, "")
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

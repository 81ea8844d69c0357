// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score rates papers against the user's interest profile with a
// language model.
package score

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"text/template"

	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var scorePromptTmpl = template.Must(template.New("score").Parse(`You are a research paper screening assistant.

MY PROFILE/INTERESTS:
{{.Profile}}

PAPER TO EVALUATE:
Title: {{.Title}}
Abstract: {{.Abstract}}
Categories: {{.Categories}}

TASK:
Evaluate this paper based on my interests.
Return a JSON object with:
- score (integer 0-100): overall suitability. Below 50 means irrelevant.
- relevance (integer 0-5): direct relevance to my profile.
- novelty (integer 0-5)
- clarity (integer 0-5)
- risk_flags (list of strings, e.g. "no code", "incremental")
- one_line_reason (string)
`))

// scoreResponse mirrors the JSON the model is asked for. Numeric fields
// are decoded loosely because models return strings and fractions.
type scoreResponse struct {
	Score     any    `json:"score"`
	Relevance any    `json:"relevance"`
	Novelty   any    `json:"novelty"`
	Clarity   any    `json:"clarity"`
	RiskFlags any    `json:"risk_flags"`
	Reason    string `json:"one_line_reason"`
}

// Scorer calls the backend to score one paper at a time. It never
// persists anything.
type Scorer struct {
	backend llm.Backend
	policy  llm.RetryPolicy
	logger  *slog.Logger
}

// New returns a Scorer. A nil logger uses slog.Default().
func New(backend llm.Backend, policy llm.RetryPolicy, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{backend: backend, policy: policy, logger: logger}
}

// Score returns the paper's relevance to profile. The score is always in
// [0,100]; out-of-range and non-numeric values are clamped and the
// clamping is noted in the reason. Backend failures and unparseable
// responses, after retry, wrap types.ErrScoringFailed.
func (s *Scorer) Score(ctx context.Context, p *types.Paper, profile string) (types.ScoreResult, error) {
	prompt, err := Prompt(p, profile)
	if err != nil {
		return types.ScoreResult{}, err
	}

	resp, err := llm.CallWithRetry(ctx, s.policy, func(ctx context.Context) (scoreResponse, error) {
		text, err := s.backend.Complete(ctx, prompt, llm.ShapeJSON)
		if err != nil {
			return scoreResponse{}, err
		}
		return llm.ParseJSON[scoreResponse](text)
	})
	if err != nil {
		return types.ScoreResult{}, fmt.Errorf("scoring %s: %w: %w", p.ID, types.ErrScoringFailed, err)
	}

	score, note := Clamp(resp.Score)
	reason := strings.TrimSpace(resp.Reason)
	if note != "" {
		s.logger.Warn("clamped model score", "paper", p.ID, "raw", resp.Score, "score", score)
		if reason == "" {
			reason = note
		} else {
			reason = fmt.Sprintf("%s (%s)", reason, note)
		}
	}

	return types.ScoreResult{
		Score:  score,
		Reason: reason,
		Details: types.ScoreDetails{
			Relevance: rating(resp.Relevance),
			Novelty:   rating(resp.Novelty),
			Clarity:   rating(resp.Clarity),
			RiskFlags: flags(resp.RiskFlags),
		},
	}, nil
}

// Prompt renders the scoring prompt for p.
func Prompt(p *types.Paper, profile string) (string, error) {
	return llm.Render(scorePromptTmpl, struct {
		Profile, Title, Abstract, Categories string
	}{
		Profile:    strings.TrimSpace(profile),
		Title:      p.Title,
		Abstract:   p.Abstract,
		Categories: strings.Join(p.Categories, ", "),
	})
}

// Clamp converts a decoded JSON value into a score in [0,100]. Numeric
// strings are parsed and fractions rounded. The note is empty unless the
// value had to be clamped or replaced.
func Clamp(v any) (int, string) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Sprintf("non-numeric score %v treated as 0", x)
		}
		r := math.Round(x)
		switch {
		case r < 0:
			return 0, fmt.Sprintf("score %v clamped to 0", x)
		case r > 100:
			return 100, fmt.Sprintf("score %v clamped to 100", x)
		}
		return int(r), ""
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(x), "%"), 64)
		if err != nil {
			return 0, fmt.Sprintf("non-numeric score %q treated as 0", x)
		}
		return Clamp(f)
	case nil:
		return 0, "missing score treated as 0"
	default:
		return 0, fmt.Sprintf("non-numeric score %v treated as 0", x)
	}
}

// rating converts a secondary rating to [0,5], defaulting to 0.
func rating(v any) int {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Max(0, math.Min(5, math.Round(f))))
}

// flags accepts a list of strings or a single comma-separated string.
func flags(v any) []string {
	var out []string
	switch x := v.(type) {
	case []any:
		for _, e := range x {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(x, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

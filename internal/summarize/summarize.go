// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize produces personalized markdown summaries of papers and
// extracts author affiliations from their full text.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// maxPromptText bounds the full text embedded in the summary prompt.
const maxPromptText = 60000

// maxAffiliationText bounds the text searched for affiliations; author
// blocks sit on the first page.
const maxAffiliationText = 4000

var summaryPromptTmpl = template.Must(template.New("summary").Parse(`You are a helpful research assistant.
Summarize the following paper for me.

MY PROFILE/INTERESTS:
{{.Profile}}

Target audience: a researcher in this field. Point out what matters for my interests.

Format requirement (Markdown):
## TL;DR
(One sentence)

## Contribution
- (Point 1)
- (Point 2)

## Methodology
(Concise explanation of the key technical approach)

## Experiments
(Key results and benchmarks)

## Limitations
(Any mentioned or apparent limitations)

PAPER:
Title: {{.Title}}
Authors: {{.Authors}}
Abstract: {{.Abstract}}
{{- if .FullText}}

FULL TEXT:
{{.FullText}}
{{- end}}
`))

var affiliationPromptTmpl = template.Must(template.New("affiliations").Parse(`Identify the institutions the authors of this paper belong to.

Title: {{.Title}}
Authors: {{.Authors}}

First page text:
{{.Text}}

Return a JSON object with:
- main_affiliation (string): the company or university most associated with the paper, "" if unknown
- affiliations (list of strings): every distinct institution, in order of appearance
`))

// Summarizer calls the backend for summaries and affiliation extraction.
type Summarizer struct {
	backend llm.Backend
	policy  llm.RetryPolicy
	logger  *slog.Logger
}

// New returns a Summarizer. A nil logger uses slog.Default().
func New(backend llm.Backend, policy llm.RetryPolicy, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{backend: backend, policy: policy, logger: logger}
}

// Summarize returns a markdown summary of p personalized for profile.
// fullText may be empty, in which case only the abstract is used. The
// paper does not need a score. Failures after retry wrap
// types.ErrSummarizationFailed.
func (s *Summarizer) Summarize(ctx context.Context, p *types.Paper, profile, fullText string) (string, error) {
	prompt, err := llm.Render(summaryPromptTmpl, struct {
		Profile, Title, Authors, Abstract, FullText string
	}{
		Profile:  strings.TrimSpace(profile),
		Title:    p.Title,
		Authors:  strings.Join(p.Authors, ", "),
		Abstract: p.Abstract,
		FullText: truncate(strings.TrimSpace(fullText), maxPromptText),
	})
	if err != nil {
		return "", err
	}

	summary, err := llm.CallWithRetry(ctx, s.policy, func(ctx context.Context) (string, error) {
		text, err := s.backend.Complete(ctx, prompt, llm.ShapeText)
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", fmt.Errorf("empty summary")
		}
		return text, nil
	})
	if err != nil {
		return "", fmt.Errorf("summarizing %s: %w: %w", p.ID, types.ErrSummarizationFailed, err)
	}
	return summary, nil
}

// ExtractAffiliations asks the backend for the institutions named on the
// first page of fullText. It is best-effort: callers log the error and
// carry on.
func (s *Summarizer) ExtractAffiliations(ctx context.Context, p *types.Paper, fullText string) (types.Affiliations, error) {
	fullText = strings.TrimSpace(fullText)
	if fullText == "" {
		return types.Affiliations{}, fmt.Errorf("no text for %s", p.ID)
	}

	prompt, err := llm.Render(affiliationPromptTmpl, struct {
		Title, Authors, Text string
	}{
		Title:   p.Title,
		Authors: strings.Join(p.Authors, ", "),
		Text:    truncate(fullText, maxAffiliationText),
	})
	if err != nil {
		return types.Affiliations{}, err
	}

	aff, err := llm.CallWithRetry(ctx, s.policy, func(ctx context.Context) (types.Affiliations, error) {
		text, err := s.backend.Complete(ctx, prompt, llm.ShapeJSON)
		if err != nil {
			return types.Affiliations{}, err
		}
		return llm.ParseJSON[types.Affiliations](text)
	})
	if err != nil {
		return types.Affiliations{}, fmt.Errorf("extracting affiliations of %s: %w", p.ID, err)
	}

	aff.Main = strings.TrimSpace(aff.Main)
	aff.All = dedupe(aff.All)
	if aff.Main == "" && len(aff.All) > 0 {
		aff.Main = aff.All[0]
	}
	return aff, nil
}

// TLDR returns the first sentence under the "TL;DR" heading of a summary,
// or the summary's first non-heading line, cut to n runes with an ellipsis.
func TLDR(summary string, n int) string {
	lines := strings.Split(summary, "\n")
	pick := ""
	for i, l := range lines {
		if strings.Contains(strings.ToUpper(l), "TL;DR") && strings.HasPrefix(strings.TrimSpace(l), "#") {
			for _, next := range lines[i+1:] {
				if t := strings.TrimSpace(next); t != "" {
					pick = t
					break
				}
			}
			break
		}
	}
	if pick == "" {
		for _, l := range lines {
			if t := strings.TrimSpace(l); t != "" && !strings.HasPrefix(t, "#") {
				pick = t
				break
			}
		}
	}
	return truncate(pick, n)
}

// truncate cuts s to at most n runes, ending with "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

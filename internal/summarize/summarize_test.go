// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/pkg/types"
)

func init() {
	llm.BackoffBase = time.Millisecond
}

type mockBackend struct {
	response string
	err      error
	calls    int
	prompts  []string
	shapes   []llm.Shape
}

func (m *mockBackend) Complete(ctx context.Context, prompt string, shape llm.Shape) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.shapes = append(m.shapes, shape)
	return m.response, m.err
}

func testPaper() *types.Paper {
	return &types.Paper{
		ID:       "2402.01234",
		Title:    "Video Segmentation at Scale",
		Abstract: "We segment videos.",
		Authors:  []string{"Ada Lovelace", "Alan Turing"},
	}
}

const sampleSummary = `## TL;DR
A scalable video segmenter that tracks objects across long clips.

## Contribution
- A memory bank.`

func TestSummarize(t *testing.T) {
	b := &mockBackend{response: "\n" + sampleSummary + "\n"}
	s := New(b, llm.RetryPolicy{MaxRetries: 1}, nil)

	got, err := s.Summarize(context.Background(), testPaper(), "I like video.", "")
	require.NoError(t, err)
	assert.Equal(t, sampleSummary, got)

	require.Len(t, b.prompts, 1)
	assert.Equal(t, llm.ShapeText, b.shapes[0])
	assert.Contains(t, b.prompts[0], "I like video.")
	assert.Contains(t, b.prompts[0], "Authors: Ada Lovelace, Alan Turing")
	assert.NotContains(t, b.prompts[0], "FULL TEXT:")
}

func TestSummarizeWithFullText(t *testing.T) {
	b := &mockBackend{response: sampleSummary}
	s := New(b, llm.RetryPolicy{}, nil)

	long := strings.Repeat("x", maxPromptText+100)
	_, err := s.Summarize(context.Background(), testPaper(), "profile", long)
	require.NoError(t, err)
	assert.Contains(t, b.prompts[0], "FULL TEXT:")
	assert.Less(t, len(b.prompts[0]), maxPromptText+2000)
}

func TestSummarizeFailure(t *testing.T) {
	tests := []struct {
		name string
		b    *mockBackend
	}{
		{"backend error", &mockBackend{err: errors.New("503")}},
		{"empty text", &mockBackend{response: "   "}},
		{"timeout", &mockBackend{err: context.DeadlineExceeded}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.b, llm.RetryPolicy{MaxRetries: 1}, nil)
			_, err := s.Summarize(context.Background(), testPaper(), "profile", "")
			assert.ErrorIs(t, err, types.ErrSummarizationFailed)
			assert.Equal(t, 2, tt.b.calls)
		})
	}
}

func TestExtractAffiliations(t *testing.T) {
	b := &mockBackend{response: "```json\n" +
		`{"main_affiliation": "", "affiliations": ["Google DeepMind", " University of Oxford ", "Google DeepMind", ""]}` +
		"\n```"}
	s := New(b, llm.RetryPolicy{}, nil)

	got, err := s.ExtractAffiliations(context.Background(), testPaper(), "Ada Lovelace (Google DeepMind)\n"+strings.Repeat("body ", 5000))
	require.NoError(t, err)
	assert.Equal(t, "Google DeepMind", got.Main)
	assert.Equal(t, []string{"Google DeepMind", "University of Oxford"}, got.All)
	assert.Equal(t, llm.ShapeJSON, b.shapes[0])
	assert.Less(t, len(b.prompts[0]), maxAffiliationText+1000)
}

func TestExtractAffiliationsNeedsText(t *testing.T) {
	b := &mockBackend{}
	s := New(b, llm.RetryPolicy{}, nil)
	_, err := s.ExtractAffiliations(context.Background(), testPaper(), "  ")
	assert.Error(t, err)
	assert.Zero(t, b.calls)
}

func TestTLDR(t *testing.T) {
	assert.Equal(t, "A scalable video segmenter that tracks objects across long clips.", TLDR(sampleSummary, 150))
	assert.Equal(t, "A scalable...", TLDR(sampleSummary, 13))
	assert.Equal(t, "Plain first line.", TLDR("# Title\n\nPlain first line.\nMore.", 150))
	assert.Equal(t, "", TLDR("", 150))
	assert.Equal(t, "Résumé", TLDR("## TL;DR\nRésumé", 150))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"context"
	"errors"
)

// Pipeline error kinds. Callers match them with errors.Is; producers wrap
// them with fmt.Errorf("...: %w", ...).
var (
	// ErrSourceUnavailable means the paper catalog could not be reached or
	// returned an unusable response. Retryable.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNotFound means an identifier does not resolve, in the catalog or
	// in the store.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists means the paper is already tracked. Callers should
	// surface it as an informational outcome.
	ErrAlreadyExists = errors.New("already tracked")

	// ErrScoringFailed means the language model could not score a paper
	// after retry.
	ErrScoringFailed = errors.New("scoring failed")

	// ErrSummarizationFailed means the language model could not summarize
	// a paper after retry.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrAlreadyInProgress means a scoring or summarization job for the
	// same paper is in flight. The request is rejected, not queued.
	ErrAlreadyInProgress = errors.New("job already in progress")

	// ErrInvalidIdentifier means the input holds no recognizable arXiv id.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrInvalidScore means a user score outside 0..100.
	ErrInvalidScore = errors.New("score must be between 0 and 100")
)

// Retryable reports whether the caller may retry the same request later
// and expect a different outcome.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrSourceUnavailable),
		errors.Is(err, ErrScoringFailed),
		errors.Is(err, ErrSummarizationFailed),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

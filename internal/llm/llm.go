// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm wraps the language-model APIs used for scoring and
// summarizing behind a single completion call.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Shape tells the backend what kind of response the caller expects.
type Shape int

const (
	// ShapeText asks for free-form text (markdown summaries).
	ShapeText Shape = iota
	// ShapeJSON asks for a single JSON object and nothing else.
	ShapeJSON
)

func (s Shape) String() string {
	if s == ShapeJSON {
		return "json"
	}
	return "text"
}

// Backend abstracts the Generative AI API so tests can supply a fake.
type Backend interface {
	Complete(ctx context.Context, prompt string, shape Shape) (string, error)
}

// jsonInstruction is the system instruction sent with ShapeJSON requests.
const jsonInstruction = "You are a precise assistant. Respond with a single valid JSON object and no other text."

// New returns the backend selected by cfg.Provider, wrapped in a limiter
// of cfg.MaxConcurrentCalls.
func New(cfg types.AIConfig, hc *http.Client) (Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", cfg.Provider)
	}

	var b Backend
	switch cfg.Provider {
	case types.ProviderAnthropic, "":
		var opts []option.RequestOption
		if hc != nil {
			opts = append(opts, option.WithHTTPClient(hc))
		}
		b = NewAnthropic(cfg, opts...)
	case types.ProviderOpenAI:
		b = &OpenAIBackend{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Client:  hc,
		}
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	return Limit(b, cfg.MaxConcurrentCalls), nil
}

// limited caps the number of in-flight calls to the wrapped backend.
type limited struct {
	next Backend
	sem  *semaphore.Weighted
}

// Limit returns a Backend that allows at most n concurrent Complete calls
// to b. n <= 0 returns b unchanged.
func Limit(b Backend, n int) Backend {
	if n <= 0 {
		return b
	}
	return &limited{next: b, sem: semaphore.NewWeighted(int64(n))}
}

func (l *limited) Complete(ctx context.Context, prompt string, shape Shape) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquiring model call slot: %w", err)
	}
	defer l.sem.Release(1)
	slog.Debug("model call", "shape", shape, "prompt_bytes", len(prompt))
	return l.next.Complete(ctx, prompt, shape)
}

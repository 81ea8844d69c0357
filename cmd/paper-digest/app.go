// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pdiddy/paper-digest/internal/jobs"
	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/notify"
	"github.com/pdiddy/paper-digest/internal/pdftext"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/score"
	"github.com/pdiddy/paper-digest/internal/source"
	"github.com/pdiddy/paper-digest/internal/store"
	"github.com/pdiddy/paper-digest/internal/summarize"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg    types.Config
	store  *store.Store
	jobs   *jobs.Registry
	orch   *pipeline.Orchestrator
	logger *slog.Logger
}

// openStore loads the config and opens the database only.
func openStore(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.Default()
	st, err := store.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, store: st, logger: logger}, nil
}

// openApp wires the full pipeline: store, arXiv client, language model,
// PDF extraction, and notifiers.
func openApp(ctx context.Context) (*app, error) {
	a, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	cfg := a.cfg

	aiClient := &http.Client{Timeout: cfg.AI.Timeout}
	backend, err := llm.New(cfg.AI, aiClient)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("language model: %w (set ai.api_key, PAPER_DIGEST_AI_API_KEY, or .secrets/anthropic-api-key)", err)
	}
	policy := llm.RetryPolicy{MaxRetries: cfg.AI.MaxRetries, Timeout: cfg.AI.Timeout}

	httpClient := &http.Client{Timeout: cfg.Source.Timeout}
	var notifier pipeline.Notifier
	if n := notify.FromConfig(cfg.Notify, nil); n != nil {
		notifier = n
	} else {
		a.logger.Info("no notifier configured; digests are kept pending")
	}

	a.jobs = jobs.NewRegistry()
	a.orch = pipeline.New(pipeline.Deps{
		Store:      a.store,
		Catalog:    source.NewClient(cfg.Source, source.WithHTTPClient(httpClient), source.WithLogger(a.logger)),
		Scorer:     score.New(backend, policy, a.logger),
		Summarizer: summarize.New(backend, policy, a.logger),
		Text: &pdftext.Extractor{
			Client:    httpClient,
			UserAgent: cfg.Source.UserAgent,
			MaxPages:  cfg.Pipeline.MaxPDFPages,
			Logger:    a.logger,
		},
		Notifier: notifier,
		Jobs:     a.jobs,
		Logger:   a.logger,
	}, cfg.Pipeline)
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

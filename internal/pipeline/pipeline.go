// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the fetch, deduplicate, score, summarize, notify
// sequence and the single-paper operations that re-enter it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/pdiddy/paper-digest/internal/jobs"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// PaperStore is the persistence the orchestrator needs.
type PaperStore interface {
	InsertIfAbsent(ctx context.Context, p *types.Paper) (bool, error)
	Get(ctx context.Context, id string) (*types.Paper, error)
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	UpdateScore(ctx context.Context, id string, score int, reason string, details *types.ScoreDetails) error
	UpdateSummary(ctx context.Context, id, summary string) error
	UpdateAffiliations(ctx context.Context, id string, a types.Affiliations) error
	SetUserScore(ctx context.Context, id string, score int) error
	MarkNotified(ctx context.Context, ids []string, at time.Time) error
	ListByDate(ctx context.Context, day time.Time) ([]*types.Paper, error)
	PendingDigest(ctx context.Context, minScore int) ([]*types.Paper, error)
	ListAuthors(ctx context.Context, since *time.Time) (map[string]int, error)
	AuthorProfiles(ctx context.Context, names []string) (map[string]types.AuthorProfile, error)
}

// Catalog is the paper source.
type Catalog interface {
	ListByDateRange(ctx context.Context, start, end time.Time) iter.Seq2[types.RawPaper, error]
	GetByID(ctx context.Context, idOrURL string) (types.RawPaper, error)
}

// Scorer rates a paper against the user profile.
type Scorer interface {
	Score(ctx context.Context, p *types.Paper, profile string) (types.ScoreResult, error)
}

// Summarizer writes personalized summaries and extracts affiliations.
type Summarizer interface {
	Summarize(ctx context.Context, p *types.Paper, profile, fullText string) (string, error)
	ExtractAffiliations(ctx context.Context, p *types.Paper, fullText string) (types.Affiliations, error)
}

// TextExtractor returns the plain text of a paper's PDF.
type TextExtractor interface {
	Extract(ctx context.Context, pdfURL string) (string, error)
}

// Notifier delivers a digest.
type Notifier interface {
	Send(ctx context.Context, d types.Digest) error
}

// Deps are the collaborators of an Orchestrator. Text and Notifier are
// optional.
type Deps struct {
	Store      PaperStore
	Catalog    Catalog
	Scorer     Scorer
	Summarizer Summarizer
	Text       TextExtractor
	Notifier   Notifier
	Jobs       *jobs.Registry
	Logger     *slog.Logger
}

// Orchestrator coordinates the pipeline stages. It is safe for concurrent
// use; overlapping operations on the same paper are rejected through the
// job registry.
type Orchestrator struct {
	Deps
	cfg types.PipelineConfig
	now func() time.Time

	mu      sync.Mutex
	subs    map[int]chan types.RunResult
	nextSub int
}

// New returns an Orchestrator. Zero config values fall back to
// types.DefaultConfig().Pipeline.
func New(d Deps, cfg types.PipelineConfig) *Orchestrator {
	def := types.DefaultConfig().Pipeline
	if cfg.UserProfile == "" {
		cfg.UserProfile = def.UserProfile
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = def.LookbackDays
	}
	if d.Jobs == nil {
		d.Jobs = jobs.NewRegistry()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Orchestrator{
		Deps: d,
		cfg:  cfg,
		now:  time.Now,
		subs: make(map[int]chan types.RunResult),
	}
}

// Config returns the effective pipeline settings.
func (o *Orchestrator) Config() types.PipelineConfig { return o.cfg }

// Subscribe returns a channel that receives every finished RunResult and
// a func that ends the subscription. A subscriber that falls behind
// misses results rather than blocking runs.
func (o *Orchestrator) Subscribe() (<-chan types.RunResult, func()) {
	ch := make(chan types.RunResult, 4)
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
			close(ch)
		})
	}
}

func (o *Orchestrator) publish(r types.RunResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- r:
		default:
			o.Logger.Warn("dropping run result for slow subscriber", "run", r.ID)
		}
	}
}

// scoreAndStore scores p and persists the result. Papers with a user
// score are left alone and reported as skipped. p is updated in place.
func (o *Orchestrator) scoreAndStore(ctx context.Context, p *types.Paper, important map[string]bool) (score int, skipped bool, err error) {
	if p.UserScore != nil {
		return *p.UserScore, true, nil
	}
	res, err := o.Scorer.Score(ctx, p, o.cfg.UserProfile)
	if err != nil {
		return 0, false, err
	}
	if floor := o.cfg.ImportantAuthorFloor; floor > 0 && res.Score < floor {
		if name, ok := importantAuthor(p, important); ok {
			res.Reason = appendNote(res.Reason, fmt.Sprintf("raised to %d for %s", floor, name))
			res.Score = floor
		}
	}

	if err := o.Store.UpdateScore(context.WithoutCancel(ctx), p.ID, res.Score, res.Reason, &res.Details); err != nil {
		return 0, false, fmt.Errorf("saving score for %s: %w", p.ID, err)
	}
	p.Score, p.ScoreReason, p.ScoreDetails = &res.Score, &res.Reason, &res.Details
	return res.Score, false, nil
}

// summarizeAndStore writes a fresh summary for p. Affiliations are
// extracted from the full text first when it is available and not yet
// known; that step never fails the summary.
func (o *Orchestrator) summarizeAndStore(ctx context.Context, p *types.Paper) error {
	persist := context.WithoutCancel(ctx)
	text := o.fullText(ctx, p)

	if text != "" && p.MainAffiliation == nil {
		aff, err := o.Summarizer.ExtractAffiliations(ctx, p, text)
		switch {
		case err != nil:
			o.Logger.Debug("affiliation extraction failed", "paper", p.ID, "err", err)
		case aff.Main != "":
			if err := o.Store.UpdateAffiliations(persist, p.ID, aff); err != nil {
				o.Logger.Warn("saving affiliations failed", "paper", p.ID, "err", err)
			} else {
				p.MainAffiliation, p.Affiliations = &aff.Main, aff.All
			}
		}
	}

	summary, err := o.Summarizer.Summarize(ctx, p, o.cfg.UserProfile, text)
	if err != nil {
		return err
	}
	if err := o.Store.UpdateSummary(persist, p.ID, summary); err != nil {
		return fmt.Errorf("saving summary for %s: %w", p.ID, err)
	}
	p.Summary = &summary
	return nil
}

func (o *Orchestrator) fullText(ctx context.Context, p *types.Paper) string {
	if !o.cfg.FullText || o.Text == nil || p.PDFURL == "" {
		return ""
	}
	text, err := o.Text.Extract(ctx, p.PDFURL)
	if err != nil {
		o.Logger.Info("using abstract only", "paper", p.ID, "err", err)
		return ""
	}
	return text
}

// importantAuthors returns the names of curated authors flagged important.
func (o *Orchestrator) importantAuthors(ctx context.Context) map[string]bool {
	if o.cfg.ImportantAuthorFloor <= 0 {
		return nil
	}
	profiles, err := o.Store.AuthorProfiles(ctx, nil)
	if err != nil {
		o.Logger.Warn("loading author profiles failed", "err", err)
		return nil
	}
	out := make(map[string]bool)
	for name, prof := range profiles {
		if prof.IsImportant {
			out[name] = true
		}
	}
	return out
}

func importantAuthor(p *types.Paper, important map[string]bool) (string, bool) {
	for _, a := range p.Authors {
		if important[a] {
			return a, true
		}
	}
	return "", false
}

func appendNote(reason, note string) string {
	if reason == "" {
		return note
	}
	return reason + " (" + note + ")"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// stageOutcome maps a stage error to its outcome.
func stageOutcome(err error) types.StageOutcome {
	switch {
	case err == nil:
		return types.OutcomeOK
	case errors.Is(err, types.ErrAlreadyInProgress):
		return types.OutcomeInProgress
	}
	return types.OutcomeFailed
}

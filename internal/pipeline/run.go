// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-digest/internal/dedup"
	"github.com/pdiddy/paper-digest/internal/jobs"
	"github.com/pdiddy/paper-digest/pkg/types"
)

type runOptions struct {
	id         string
	start, end time.Time
	notify     bool
}

// RunOption configures a RunDigest call.
type RunOption func(*runOptions)

// WithDateRange fetches papers published between start and end, inclusive,
// instead of the configured lookback window.
func WithDateRange(start, end time.Time) RunOption {
	return func(o *runOptions) { o.start, o.end = types.DateOf(start), types.DateOf(end) }
}

// WithoutNotify skips the digest delivery at the end of the run.
func WithoutNotify() RunOption {
	return func(o *runOptions) { o.notify = false }
}

// WithRunID sets the run identifier, so a caller can report it before the
// run finishes.
func WithRunID(id string) RunOption {
	return func(o *runOptions) { o.id = id }
}

// RunDigest fetches the papers of the date range, inserts the new ones,
// scores them, summarizes those at or above the summarize threshold, and
// delivers the pending digest. Per-paper failures are recorded in the
// result and never stop the run. The returned error is non-nil only when
// the run failed as a whole; the result is always populated.
//
// Cancelling ctx stops launching new papers. Backend calls of papers
// already in flight are cancelled with ctx; results they already returned
// are still persisted.
func (o *Orchestrator) RunDigest(ctx context.Context, opts ...RunOption) (types.RunResult, error) {
	today := types.DateOf(o.now())
	ro := runOptions{
		start:  today.AddDate(0, 0, -o.cfg.LookbackDays),
		end:    today,
		notify: true,
	}
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.id == "" {
		ro.id = uuid.NewString()
	}

	res := types.RunResult{ID: ro.id, Status: types.RunRunning, StartedAt: o.now().UTC()}
	log := o.Logger.With("run", res.ID)
	log.Info("run started", "start", ro.start.Format(types.DateLayout), "end", ro.end.Format(types.DateLayout))

	fail := func(err error) (types.RunResult, error) {
		res.Status = types.RunFailed
		res.Err = err.Error()
		res.FinishedAt = o.now().UTC()
		log.Error("run failed", "err", err)
		o.publish(res)
		return res, fmt.Errorf("run %s: %w", res.ID, err)
	}

	var candidates []types.RawPaper
	var srcErr error
	for raw, err := range o.Catalog.ListByDateRange(ctx, ro.start, ro.end) {
		if err != nil {
			srcErr = err
			break
		}
		candidates = append(candidates, raw)
	}
	res.Fetched = len(candidates)
	if srcErr != nil {
		if len(candidates) == 0 {
			return fail(srcErr)
		}
		log.Warn("source failed mid-run, continuing with fetched papers", "fetched", len(candidates), "err", srcErr)
	}

	fresh, err := dedup.FilterNew(candidates, func(ids []string) (map[string]struct{}, error) {
		return o.Store.ExistingIDs(ctx, ids)
	})
	if err != nil {
		return fail(err)
	}

	papers := make([]*types.Paper, 0, len(fresh))
	for _, raw := range fresh {
		p := types.NewPaper(raw)
		inserted, err := o.Store.InsertIfAbsent(context.WithoutCancel(ctx), p)
		if err != nil {
			log.Error("inserting paper failed", "paper", p.ID, "err", err)
			continue
		}
		if inserted {
			papers = append(papers, p)
		}
	}
	res.New = len(papers)
	log.Info("fetched", "fetched", res.Fetched, "new", res.New)

	important := o.importantAuthors(ctx)
	outcomes := make([]types.PaperOutcome, len(papers))
	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, p := range papers {
		outcomes[i] = types.PaperOutcome{PaperID: p.ID}
		if ctx.Err() != nil {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = o.processPaper(ctx, p, important)
			return nil
		})
	}
	g.Wait()

	res.Outcomes = outcomes
	for _, out := range outcomes {
		switch out.Scored {
		case types.OutcomeOK, types.OutcomeSkipped:
			res.Scored++
		case types.OutcomeFailed:
			res.ScoreFailed++
		}
		switch out.Summarized {
		case types.OutcomeOK:
			res.Summarized++
		case types.OutcomeFailed:
			res.SummarizeFailed++
		}
	}

	if ro.notify {
		res.Notified = o.notifyPending(ctx, log)
	}

	res.Status = types.RunCompleted
	res.FinishedAt = o.now().UTC()
	log.Info("run completed",
		"scored", res.Scored, "score_failed", res.ScoreFailed,
		"summarized", res.Summarized, "summarize_failed", res.SummarizeFailed,
		"notified", res.Notified)
	o.publish(res)
	return res, nil
}

// processPaper scores one new paper and summarizes it when the score
// meets the threshold. The paper's job claim covers both stages.
func (o *Orchestrator) processPaper(ctx context.Context, p *types.Paper, important map[string]bool) types.PaperOutcome {
	out := types.PaperOutcome{PaperID: p.ID}
	release, err := o.Jobs.Acquire(p.ID, jobs.KindScore)
	if err != nil {
		out.Scored, out.Err = types.OutcomeInProgress, err.Error()
		return out
	}
	defer release()

	// The paper may have been user-scored between insert and claim.
	p, err = o.Store.Get(ctx, p.ID)
	if err != nil {
		out.Scored, out.Err = types.OutcomeFailed, err.Error()
		return out
	}
	score, skipped, err := o.scoreAndStore(ctx, p, important)
	if err != nil {
		o.Logger.Warn("scoring failed", "paper", p.ID, "err", err)
		out.Scored, out.Err = types.OutcomeFailed, err.Error()
		return out
	}
	out.Scored = types.OutcomeOK
	if skipped {
		out.Scored = types.OutcomeSkipped
	}

	if score < o.cfg.SummarizeThreshold {
		out.Summarized = types.OutcomeSkipLowScore
		return out
	}
	if err := o.summarizeAndStore(ctx, p); err != nil {
		o.Logger.Warn("summarization failed", "paper", p.ID, "err", err)
		out.Summarized, out.Err = types.OutcomeFailed, err.Error()
		return out
	}
	out.Summarized = types.OutcomeOK
	return out
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-digest/internal/jobs"
	"github.com/pdiddy/paper-digest/internal/source"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// AddPaper tracks a paper named by id or URL. The paper is fetched,
// inserted, scored, and summarized regardless of its score, then sent as
// a single-paper digest. A paper that is already tracked is returned with
// an error matching types.ErrAlreadyExists. Scoring and summarization
// failures leave the paper in a partial state and are only logged.
func (o *Orchestrator) AddPaper(ctx context.Context, idOrURL string) (*types.Paper, error) {
	id, ok := source.ExtractID(idOrURL)
	if !ok {
		return nil, fmt.Errorf("%q: %w", idOrURL, types.ErrInvalidIdentifier)
	}
	if p, err := o.Store.Get(ctx, id); err == nil {
		return p, fmt.Errorf("paper %s: %w", id, types.ErrAlreadyExists)
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	release, err := o.Jobs.Acquire(id, jobs.KindAdd)
	if err != nil {
		return nil, err
	}
	defer release()

	raw, err := o.Catalog.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", id, err)
	}
	p := types.NewPaper(raw)
	inserted, err := o.Store.InsertIfAbsent(context.WithoutCancel(ctx), p)
	if err != nil {
		return nil, err
	}
	if !inserted {
		stored, err := o.Store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return stored, fmt.Errorf("paper %s: %w", id, types.ErrAlreadyExists)
	}
	o.Logger.Info("paper added", "paper", id)

	if _, _, err := o.scoreAndStore(ctx, p, o.importantAuthors(ctx)); err != nil {
		o.Logger.Warn("scoring failed", "paper", id, "err", err)
	}
	if err := o.summarizeAndStore(ctx, p); err != nil {
		o.Logger.Warn("summarization failed", "paper", id, "err", err)
	}

	stored, err := o.Store.Get(context.WithoutCancel(ctx), id)
	if err != nil {
		return nil, err
	}
	if stored.Summary != nil {
		d := buildDigest("New Paper Added", []*types.Paper{stored})
		if o.deliver(ctx, o.Logger.With("paper", id), d) > 0 {
			at := o.now().UTC()
			stored.NotifiedAt = &at
		}
	}
	return stored, nil
}

// Resummarize re-scores a tracked paper (unless the user scored it) and
// writes a fresh summary whatever the score. A scoring failure is logged
// and the summary is still attempted; a summarization failure is
// returned. No notification is sent.
func (o *Orchestrator) Resummarize(ctx context.Context, id string) (*types.Paper, error) {
	p, err := o.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	release, err := o.Jobs.Acquire(id, jobs.KindResummarize)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read under the claim so a user score set meanwhile is honored.
	if p, err = o.Store.Get(ctx, id); err != nil {
		return nil, err
	}
	if _, _, err := o.scoreAndStore(ctx, p, o.importantAuthors(ctx)); err != nil {
		o.Logger.Warn("scoring failed", "paper", id, "err", err)
	}
	if err := o.summarizeAndStore(ctx, p); err != nil {
		return nil, err
	}
	return o.Store.Get(context.WithoutCancel(ctx), id)
}

// RescoreByDate re-scores every paper published on the calendar date of
// day, overwriting score and reason. Papers with a user score are
// skipped. A paper whose new score meets the summarize threshold and that
// has no summary yet is summarized. Per-paper failures and papers with a
// job in flight are reported in the result.
func (o *Orchestrator) RescoreByDate(ctx context.Context, day time.Time) (types.RescoreResult, error) {
	day = types.DateOf(day)
	res := types.RescoreResult{Date: day.Format(types.DateLayout)}
	papers, err := o.Store.ListByDate(ctx, day)
	if err != nil {
		return res, err
	}

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
			outcomes[i] = o.rescorePaper(ctx, p, important)
			return nil
		})
	}
	g.Wait()

	res.Outcomes = outcomes
	for _, out := range outcomes {
		switch out.Scored {
		case types.OutcomeOK:
			res.Rescored++
		case types.OutcomeFailed:
			res.Failed++
		case types.OutcomeInProgress:
			res.InProgress++
		case types.OutcomeSkipped:
			res.Skipped++
		}
	}
	o.Logger.Info("rescored date", "date", res.Date, "rescored", res.Rescored, "failed", res.Failed, "in_progress", res.InProgress)
	return res, ctx.Err()
}

func (o *Orchestrator) rescorePaper(ctx context.Context, p *types.Paper, important map[string]bool) types.PaperOutcome {
	out := types.PaperOutcome{PaperID: p.ID}
	release, err := o.Jobs.Acquire(p.ID, jobs.KindRescore)
	if err != nil {
		out.Scored, out.Err = types.OutcomeInProgress, err.Error()
		return out
	}
	defer release()

	p, err = o.Store.Get(ctx, p.ID)
	if err != nil {
		out.Scored, out.Err = types.OutcomeFailed, err.Error()
		return out
	}
	score, skipped, err := o.scoreAndStore(ctx, p, important)
	out.Scored, out.Err = stageOutcome(err), errString(err)
	if err != nil {
		o.Logger.Warn("rescoring failed", "paper", p.ID, "err", err)
		return out
	}
	if skipped {
		out.Scored = types.OutcomeSkipped
		return out
	}
	if score >= o.cfg.SummarizeThreshold && p.Summary == nil {
		err := o.summarizeAndStore(ctx, p)
		out.Summarized, out.Err = stageOutcome(err), errString(err)
	}
	return out
}

// SetUserScore records the user's score for a paper. The score replaces
// the AI score and stops future AI scoring. When it meets the summarize
// threshold and the paper has no summary yet, the paper is summarized;
// that failure is logged, not returned.
func (o *Orchestrator) SetUserScore(ctx context.Context, id string, score int) (*types.Paper, error) {
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("score %d: %w", score, types.ErrInvalidScore)
	}
	release, err := o.Jobs.Acquire(id, jobs.KindScore)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := o.Store.SetUserScore(ctx, id, score); err != nil {
		return nil, err
	}
	p, err := o.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if score >= o.cfg.SummarizeThreshold && p.Summary == nil {
		if err := o.summarizeAndStore(ctx, p); err != nil {
			o.Logger.Warn("summarization failed", "paper", id, "err", err)
		}
	}
	return p, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/pdiddy/paper-digest/internal/summarize"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const tldrLength = 150

// Digest builds the payload of summarized, not yet notified papers whose
// effective score is at least minScore.
func (o *Orchestrator) Digest(ctx context.Context, minScore int) (types.Digest, error) {
	papers, err := o.Store.PendingDigest(ctx, minScore)
	if err != nil {
		return types.Digest{}, err
	}
	return buildDigest("", papers), nil
}

// notifyPending sends the pending digest and marks its papers notified.
// It returns the number of papers delivered.
func (o *Orchestrator) notifyPending(ctx context.Context, log *slog.Logger) int {
	if o.Notifier == nil {
		return 0
	}
	d, err := o.Digest(ctx, o.cfg.DisplayThreshold)
	if err != nil {
		log.Warn("building digest failed", "err", err)
		return 0
	}
	return o.deliver(ctx, log, d)
}

// deliver sends d and, on success, stamps its papers. Failures are logged
// and leave the papers pending for the next digest.
func (o *Orchestrator) deliver(ctx context.Context, log *slog.Logger, d types.Digest) int {
	if o.Notifier == nil || d.Len() == 0 {
		return 0
	}
	if err := o.Notifier.Send(ctx, d); err != nil {
		log.Warn("notification failed", "papers", d.Len(), "err", err)
		return 0
	}
	ids := d.PaperIDs()
	if err := o.Store.MarkNotified(context.WithoutCancel(ctx), ids, o.now().UTC()); err != nil {
		log.Warn("marking papers notified failed", "err", err)
	}
	log.Info("digest sent", "papers", len(ids))
	return len(ids)
}

// buildDigest groups papers by publication date, newest first, with the
// best score first within a date.
func buildDigest(title string, papers []*types.Paper) types.Digest {
	byDate := make(map[time.Time][]*types.Paper)
	for _, p := range papers {
		byDate[p.Published] = append(byDate[p.Published], p)
	}
	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return b.Compare(a) })

	d := types.Digest{Title: title}
	for _, date := range dates {
		group := byDate[date]
		slices.SortStableFunc(group, func(a, b *types.Paper) int {
			sa, _ := a.EffectiveScore()
			sb, _ := b.EffectiveScore()
			if c := cmp.Compare(sb, sa); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		day := types.DigestDay{Date: date.Format(types.DateLayout)}
		for _, p := range group {
			day.Entries = append(day.Entries, entry(p))
		}
		d.Days = append(d.Days, day)
	}
	return d
}

func entry(p *types.Paper) types.DigestEntry {
	score, _ := p.EffectiveScore()
	e := types.DigestEntry{ID: p.ID, Title: p.Title, Score: score, PDFURL: p.PDFURL}
	if p.MainAffiliation != nil {
		e.Affiliation = *p.MainAffiliation
	}
	if p.Summary != nil {
		e.TLDR = summarize.TLDR(*p.Summary, tldrLength)
	}
	return e
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schedule fires a job once a day at a fixed UTC time.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Daily runs a func every day at Hour:Minute UTC.
type Daily struct {
	Hour, Minute int

	logger *slog.Logger
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
}

// New parses at ("HH:MM", 24-hour, UTC) and returns the schedule.
func New(at string, logger *slog.Logger) (*Daily, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("schedule time %q: want HH:MM", at)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Daily{
		Hour:   t.Hour(),
		Minute: t.Minute(),
		logger: logger,
		now:    time.Now,
		after:  time.After,
	}, nil
}

// Next returns the first occurrence strictly after now.
func (d *Daily) Next(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), d.Hour, d.Minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run calls fn at each occurrence until ctx is done. Calls never overlap:
// an occurrence that passes while fn is still running is skipped.
func (d *Daily) Run(ctx context.Context, fn func(context.Context)) error {
	for {
		next := d.Next(d.now())
		d.logger.Info("next scheduled run", "at", next.Format(time.RFC3339))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.after(next.Sub(d.now())):
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fn(ctx)
	}
}

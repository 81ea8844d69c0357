// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/summarize"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var addCmd = &cobra.Command{
	Use:   "add [ids or URLs...]",
	Short: "Track papers by arXiv id or URL, score and summarize them",
	Long: `Add fetches each paper from arXiv, stores it, scores it, and writes a
summary regardless of score. Papers already tracked are reported and skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var resummarizeCmd = &cobra.Command{
	Use:   "resummarize [id]",
	Short: "Re-score and re-summarize one paper",
	Args:  cobra.ExactArgs(1),
	RunE:  runResummarize,
}

var rescoreCmd = &cobra.Command{
	Use:   "rescore [YYYY-MM-DD]",
	Short: "Re-score every paper published on a date",
	Args:  cobra.ExactArgs(1),
	RunE:  runRescore,
}

var scoreCmd = &cobra.Command{
	Use:   "score [id] [0-100]",
	Short: "Set your own score for a paper",
	Long: `Score records a user score that replaces the model's score. User-scored
papers are never re-scored by the model. A score at or above the summarize
threshold summarizes the paper if it has no summary yet.`,
	Args: cobra.ExactArgs(2),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(addCmd, resummarizeCmd, rescoreCmd, scoreCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	failed := 0
	for _, arg := range args {
		p, err := a.orch.AddPaper(ctx, arg)
		switch {
		case errors.Is(err, types.ErrAlreadyExists):
			fmt.Fprintf(os.Stdout, "skipped: %s (already tracked)\n", p.ID)
		case err != nil:
			fmt.Fprintf(os.Stdout, "failed: %s: %v\n", arg, err)
			failed++
		default:
			printPaper(os.Stdout, p)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d paper(s) could not be added", failed)
	}
	return nil
}

func runResummarize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.orch.Resummarize(ctx, args[0])
	if err != nil {
		return err
	}
	printPaper(os.Stdout, p)
	return nil
}

func runRescore(cmd *cobra.Command, args []string) error {
	day, err := time.Parse(types.DateLayout, args[0])
	if err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.orch.RescoreByDate(ctx, day)
	if err != nil {
		return err
	}
	for _, o := range res.Outcomes {
		line := fmt.Sprintf("%-16s %s", o.PaperID, o.Scored)
		if o.Err != "" {
			line += ": " + o.Err
		}
		fmt.Fprintln(os.Stdout, line)
	}
	fmt.Fprintf(os.Stdout, "%s: %d rescored, %d failed, %d in progress, %d user-scored\n",
		res.Date, res.Rescored, res.Failed, res.InProgress, res.Skipped)
	if res.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed rescoring", res.Failed)
	}
	return nil
}

func runScore(cmd *cobra.Command, args []string) error {
	score, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("score must be an integer: %w", types.ErrInvalidScore)
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.orch.SetUserScore(ctx, args[0], score)
	if err != nil {
		return err
	}
	printPaper(os.Stdout, p)
	return nil
}

// printPaper writes a short colored description of p.
func printPaper(w io.Writer, p *types.Paper) {
	bold := color.New(color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", bold(p.ID), p.Title)
	if s, ok := p.EffectiveScore(); ok {
		label := color.New(scoreColor(s)).Sprintf("%d", s)
		if p.UserScore != nil {
			label += gray(" (user)")
		}
		fmt.Fprintf(w, "  score: %s", label)
		if p.ScoreReason != nil {
			fmt.Fprintf(w, "  %s", gray(*p.ScoreReason))
		}
		fmt.Fprintln(w)
	}
	if p.MainAffiliation != nil {
		fmt.Fprintf(w, "  affiliation: %s\n", *p.MainAffiliation)
	}
	if p.Summary != nil {
		fmt.Fprintf(w, "  tl;dr: %s\n", summarize.TLDR(*p.Summary, 200))
	}
}

func scoreColor(s int) color.Attribute {
	switch {
	case s >= 85:
		return color.FgGreen
	case s >= 50:
		return color.FgYellow
	}
	return color.FgRed
}

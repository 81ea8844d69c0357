// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, score, summarize, and notify once",
	Long: `Run performs one digest run: it fetches the papers submitted in the
configured categories over the lookback window (or --start/--end), scores the
new ones, summarizes those at or above the summarize threshold, and sends the
pending digest.`,
	RunE: runDigest,
}

func init() {
	runCmd.Flags().String("start", "", "first publication date, YYYY-MM-DD")
	runCmd.Flags().String("end", "", "last publication date, YYYY-MM-DD (default today)")
	runCmd.Flags().Bool("no-notify", false, "do not send the digest")
	runCmd.Flags().BoolP("verbose", "v", false, "print per-paper outcomes")

	rootCmd.AddCommand(runCmd)
}

func runDigest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []pipeline.RunOption
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")
	if startStr != "" || endStr != "" {
		end := time.Now().UTC()
		if endStr != "" {
			if end, err = time.Parse(types.DateLayout, endStr); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
		}
		start := end
		if startStr != "" {
			if start, err = time.Parse(types.DateLayout, startStr); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
		}
		if end.Before(start) {
			return fmt.Errorf("--end %s is before --start %s", endStr, startStr)
		}
		opts = append(opts, pipeline.WithDateRange(start, end))
	}
	if noNotify, _ := cmd.Flags().GetBool("no-notify"); noNotify {
		opts = append(opts, pipeline.WithoutNotify())
	}

	res, err := a.orch.RunDigest(ctx, opts...)
	verbose, _ := cmd.Flags().GetBool("verbose")
	printRun(os.Stdout, res, verbose)
	if err != nil {
		return err
	}
	if res.HasFailures() {
		return fmt.Errorf("%d paper(s) failed scoring, %d failed summarization", res.ScoreFailed, res.SummarizeFailed)
	}
	return nil
}

// printRun writes a colored run summary.
func printRun(w io.Writer, res types.RunResult, verbose bool) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	status := green(string(res.Status))
	if res.Status == types.RunFailed {
		status = red(string(res.Status))
	}
	fmt.Fprintf(w, "%s %s (%s)\n", cyan("Run"), res.ID, status)
	if res.Err != "" {
		fmt.Fprintf(w, "  error: %s\n", red(res.Err))
	}
	fmt.Fprintf(w, "  fetched:    %d\n", res.Fetched)
	fmt.Fprintf(w, "  new:        %d\n", res.New)
	fmt.Fprintf(w, "  scored:     %d", res.Scored)
	if res.ScoreFailed > 0 {
		fmt.Fprintf(w, " (%s)", yellow(fmt.Sprintf("%d failed", res.ScoreFailed)))
	}
	fmt.Fprintf(w, "\n  summarized: %d", res.Summarized)
	if res.SummarizeFailed > 0 {
		fmt.Fprintf(w, " (%s)", yellow(fmt.Sprintf("%d failed", res.SummarizeFailed)))
	}
	fmt.Fprintf(w, "\n  notified:   %d\n", res.Notified)
	if !res.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  duration:   %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Second))
	}

	if !verbose {
		return
	}
	for _, o := range res.Outcomes {
		line := fmt.Sprintf("  %-16s scored=%-12s summarized=%s", o.PaperID, o.Scored, o.Summarized)
		if o.Err != "" {
			line += "  " + red(o.Err)
		}
		fmt.Fprintln(w, line)
	}
}

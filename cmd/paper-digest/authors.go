// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var authorsCmd = &cobra.Command{
	Use:   "authors",
	Short: "List authors by number of tracked papers",
	RunE:  runAuthors,
}

var authorSetCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Create or replace an author's curated profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthorSet,
}

func init() {
	authorsCmd.Flags().Int("days", 0, "only count papers published in the last N days")
	authorsCmd.Flags().Int("limit", 20, "maximum authors to print (0 for all)")

	authorSetCmd.Flags().String("bio", "", "short biography")
	authorSetCmd.Flags().String("website", "", "homepage URL")
	authorSetCmd.Flags().String("affiliation", "", "institution")
	authorSetCmd.Flags().Bool("important", false, "raise this author's papers to the important-author floor")

	authorsCmd.AddCommand(authorSetCmd)
	rootCmd.AddCommand(authorsCmd)
}

func runAuthors(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var window *int
	if days, _ := cmd.Flags().GetInt("days"); days > 0 {
		window = &days
	}
	// Ranking reads only the store; the other stages stay unwired.
	orch := pipeline.New(pipeline.Deps{Store: a.store, Logger: a.logger}, a.cfg.Pipeline)
	ranks, err := orch.AuthorRanking(ctx, window)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	star := color.New(color.FgYellow).Sprint("★")
	for i, r := range ranks {
		if limit > 0 && i >= limit {
			break
		}
		line := fmt.Sprintf("%4d  %s", r.PaperCount, r.Name)
		if r.Profile != nil {
			if r.Profile.IsImportant {
				line += " " + star
			}
			if r.Profile.Affiliation != "" {
				line += color.HiBlackString("  (%s)", r.Profile.Affiliation)
			}
		}
		fmt.Fprintln(os.Stdout, line)
	}
	return nil
}

func runAuthorSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	prof := types.AuthorProfile{Name: args[0]}
	prof.Bio, _ = cmd.Flags().GetString("bio")
	prof.Website, _ = cmd.Flags().GetString("website")
	prof.Affiliation, _ = cmd.Flags().GetString("affiliation")
	prof.IsImportant, _ = cmd.Flags().GetBool("important")
	if err := a.store.UpsertAuthorProfile(ctx, prof); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "saved profile for %s\n", prof.Name)
	return nil
}

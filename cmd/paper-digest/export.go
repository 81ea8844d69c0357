// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/store"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tracked papers with author profiles as YAML or JSON",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().String("format", "yaml", "output format: yaml or json")
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	exportCmd.Flags().String("date", "", "only papers published on YYYY-MM-DD")
	exportCmd.Flags().Int("min-score", -1, "only papers with at least this score")
	exportCmd.Flags().String("author", "", "only papers by this author")
	exportCmd.Flags().Int("limit", 0, "maximum papers (0 for all)")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != string(store.FormatYAML) && format != string(store.FormatJSON) {
		return fmt.Errorf("unsupported format %q (want yaml or json)", format)
	}

	var f store.Filter
	if v, _ := cmd.Flags().GetString("date"); v != "" {
		d, err := time.Parse(types.DateLayout, v)
		if err != nil {
			return fmt.Errorf("--date: %w", err)
		}
		f.Date = &d
	}
	if v, _ := cmd.Flags().GetInt("min-score"); v >= 0 {
		f.MinScore = &v
	}
	f.Author, _ = cmd.Flags().GetString("author")
	f.Limit, _ = cmd.Flags().GetInt("limit")

	ctx := cmd.Context()
	a, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var w io.Writer = os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer file.Close()
		w = file
	}

	n, err := a.store.Export(ctx, w, f, store.ExportFormat(format))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %d paper(s)\n", n)
	return nil
}

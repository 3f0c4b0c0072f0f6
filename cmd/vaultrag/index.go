package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run a bulk indexing pass",
		Long: `Embed new and changed notes, refresh their date records and remove records
of deleted notes.

Examples:
  vaultrag index
  vaultrag index --force
  vaultrag index --dates-only`,
		Args: cobra.NoArgs,
		RunE: runIndex,
	}

	cmd.Flags().Bool("force", false, "discard all embeddings and re-embed every note")
	cmd.Flags().Bool("dates-only", false, "only clear and rebuild the date index")
	return cmd
}

func runIndex(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	out := cmd.OutOrStdout()

	if datesOnly, _ := cmd.Flags().GetBool("dates-only"); datesOnly {
		stats, err := a.maintainer.RebuildDates(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Date index rebuilt: %d indexed, %d failed in %s\n", stats.Indexed, stats.Failed, stats.Duration)
		return nil
	}

	force, _ := cmd.Flags().GetBool("force")
	stats, err := a.maintainer.RunBulk(ctx, force)
	if stats != nil {
		fmt.Fprintf(out, "Run %s finished in %s\n", stats.RunID, stats.Duration)
		fmt.Fprintf(out, "  embedded: %d\n  dates:    %d\n  skipped:  %d\n  failed:   %d\n  removed:  %d\n",
			stats.Embedded, stats.DatesIndexed, stats.Skipped, stats.Failed, stats.Removed)
		for _, e := range stats.Errors {
			fmt.Fprintf(out, "  error: %s\n", e)
		}
		if notice := a.maintainer.Status().Notice; notice != "" {
			fmt.Fprintf(out, "Notice: %s\n", notice)
		}
	}
	return err
}

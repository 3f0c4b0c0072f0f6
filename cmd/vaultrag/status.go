package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index contents and provider configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			status, err := a.db.GetStatus(cmd.Context())
			if err != nil {
				return err
			}

			source := a.cfg.APISource
			if source == "" {
				source = "none"
			}
			lastUpdated := "never"
			if !status.LastUpdated.IsZero() {
				lastUpdated = status.LastUpdated.Format(time.RFC3339)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Vault:        %s\n", a.cfg.Vault.Path)
			fmt.Fprintf(out, "Database:     %s (%.2f MB, sqlite %s)\n", a.cfg.DBPath(), float64(status.SizeBytes)/(1024*1024), status.BuildMode)
			fmt.Fprintf(out, "Embeddings:   %d\n", status.Embeddings)
			fmt.Fprintf(out, "Date records: %d\n", status.DateRecords)
			fmt.Fprintf(out, "Last update:  %s\n", lastUpdated)
			fmt.Fprintf(out, "Provider:     %s/%s (key: %s)\n", a.embed.Provider(), a.embed.Model(), source)
			if len(a.cfg.Vault.ExcludedFolders) > 0 {
				fmt.Fprintf(out, "Excluded:     %v\n", a.cfg.Vault.ExcludedFolders)
			}
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/vaultrag/internal/storage"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vaultrag",
		Short: "Retrieval over a markdown notes vault",
		Long: `vaultrag keeps a semantic index of a markdown vault up to date and answers
questions with the most relevant notes, their linked notes and date matches.

Examples:
  vaultrag serve --vault ~/Notes
  vaultrag index --force
  vaultrag search "what did I plant last month"
  vaultrag auth set`,
		Version:       fmt.Sprintf("%s (built %s, sqlite %s/%s)", version, buildTime, storage.BuildMode, storage.DriverName),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newStatusCmd(),
		newAuthCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().String("vault", "", "vault directory (overrides config and VAULTRAG_VAULT)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/vaultrag/internal/searcher"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the vault from the command line",
		Long: `Run the retrieval pipeline once and print the ranked notes.

Examples:
  vaultrag search "garden plans"
  vaultrag search "meetings last week" --top-k 10 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().Int("top-k", 0, "notes kept from the similarity stage (default from config)")
	cmd.Flags().String("mode", string(searcher.SearchModeHybrid), "hybrid or semantic")
	cmd.Flags().Bool("no-links", false, "skip linked notes")
	cmd.Flags().Bool("no-dates", false, "skip date detection")
	cmd.Flags().Bool("json", false, "print the raw response as JSON")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	topK, _ := cmd.Flags().GetInt("top-k")
	mode, _ := cmd.Flags().GetString("mode")
	noLinks, _ := cmd.Flags().GetBool("no-links")
	noDates, _ := cmd.Flags().GetBool("no-dates")

	resp, err := a.searcher.Search(cmd.Context(), searcher.SearchRequest{
		Query:     strings.Join(args, " "),
		TopK:      topK,
		Mode:      searcher.SearchMode(mode),
		SkipLinks: noLinks,
		SkipDates: noDates,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No matching notes.")
		return nil
	}
	for i, r := range resp.Results {
		fmt.Fprintf(out, "%2d. %s  (score %.3f, semantic %.3f)\n", i+1, r.ID, r.Score, r.SemanticScore)
		if r.DateRelevance != nil {
			fmt.Fprintf(out, "    date match: %s\n", r.DateRelevance.Date.Format("2006-01-02"))
		}
		if len(r.MatchedKeywords) > 0 {
			fmt.Fprintf(out, "    keywords: %s\n", strings.Join(r.MatchedKeywords, ", "))
		}
		fmt.Fprintf(out, "    %s\n", oneLine(r.ContentSnippet, 160))
		for _, lc := range r.LinkedContexts {
			fmt.Fprintf(out, "    -> %s (%.3f)\n", lc.NotePath, lc.Relevance)
		}
	}
	fmt.Fprintf(out, "\n%d results from %d candidates in %s\n", resp.TotalResults, resp.Candidates, resp.Duration)
	return nil
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}

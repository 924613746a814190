// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/trial-prescreen/internal/report"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Query criteria stored from saved runs",
}

var criteriaSearchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Full-text search over stored criteria",
	Long: `Search finds criteria across every saved protocol whose text contains
all the query words, best match first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCriteriaSearch,
}

func runCriteriaSearch(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	matches, err := s.SearchCriteria(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return report.WriteJSON(cmd.OutOrStdout(), matches)
	}
	if len(matches) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
		return nil
	}

	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	for i, m := range matches {
		p.Info("%2d. [%s] %s %s (%s)", i+1, m.DocumentID, m.ID, m.Text, m.Power())
	}
	p.Info("\n%d results", len(matches))
	return nil
}

func init() {
	criteriaSearchCmd.Flags().Int("limit", 20, "maximum results")
	criteriaSearchCmd.Flags().Bool("json", false, "output as JSON")

	criteriaCmd.AddCommand(criteriaSearchCmd)
	rootCmd.AddCommand(criteriaCmd)
}

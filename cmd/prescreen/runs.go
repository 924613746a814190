// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/trial-prescreen/internal/report"
	"github.com/pdiddy/trial-prescreen/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List, show and export saved screening runs",
	Long: `Runs queries the screening runs saved with screen --save. Runs live in
prescreen.db under the store directory.`,
}

// --- list subcommand ---

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	docID, _ := cmd.Flags().GetString("document")
	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := s.ListRuns(cmd.Context(), store.RunFilter{DocumentID: docID, Limit: limit})
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return report.WriteJSON(cmd.OutOrStdout(), runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
		return nil
	}

	return report.RunsTable(cmd.OutOrStdout(), runs)
}

// --- show subcommand ---

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	run, err := s.LoadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return report.WriteJSON(cmd.OutOrStdout(), run)
	}

	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	p.Info("run:       %s", run.ID)
	p.Info("document:  %s %s", run.DocumentID, run.DocumentTitle)
	p.Info("created:   %s", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	p.Header(fmt.Sprintf("Pareto set (%d)", len(run.Result.ParetoCriteria)))
	if err := report.CriteriaTable(p.Writer(), run.Result.ParetoCriteria, nil); err != nil {
		return err
	}
	p.Header("Screenings")
	if err := report.ScreeningTable(p.Writer(), run.Result.Results()); err != nil {
		return err
	}
	p.PrintSummary(report.Summarize(run.Result))
	return nil
}

// --- export subcommand ---

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export one saved run to YAML or JSON",
	Long: `Export writes a saved run, including every candidate's criterion
results, to a file. The default path is <store-dir>/<run-id>.<format>.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunsExport,
}

func runRunsExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(format)
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		path = filepath.Join(appConfig.Store.Dir, args[0]+"."+format)
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	switch format {
	case "yaml", "yml":
		err = s.ExportYAML(cmd.Context(), args[0], path)
	case "json":
		err = s.ExportJSON(cmd.Context(), args[0], path)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
	return nil
}

// --- shared helpers ---

func openStore() (*store.Store, error) {
	return store.Open(appConfig.Store.Dir, logger)
}

func init() {
	runsCmd.PersistentFlags().Bool("json", false, "output as JSON")

	runsListCmd.Flags().String("document", "", "only runs for this protocol id")
	runsListCmd.Flags().Int("limit", store.DefaultListLimit, "maximum runs to list")

	runsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	runsExportCmd.Flags().String("output", "", "output path")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)

	rootCmd.AddCommand(runsCmd)
}

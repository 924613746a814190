// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/trial-prescreen/internal/extract"
	"github.com/pdiddy/trial-prescreen/internal/ingest"
	"github.com/pdiddy/trial-prescreen/internal/pareto"
	"github.com/pdiddy/trial-prescreen/internal/pipeline"
	"github.com/pdiddy/trial-prescreen/internal/report"
	"github.com/pdiddy/trial-prescreen/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract <protocol>",
	Short: "Extract eligibility criteria and the Pareto pre-screen set",
	Long: `Extract reads a protocol (plain text or Markdown, optionally with YAML
frontmatter), finds the inclusion and exclusion criteria sections, and splits
them into individual criteria with estimated elimination rates.

The Pareto set is the --top-n criteria expected to eliminate the most
candidates; it is what screen evaluates.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().Int("top-n", 0, "size of the Pareto set (default from screening.pareto_limit)")
	extractCmd.Flags().Bool("json", false, "output as JSON")
	extractCmd.Flags().String("output", "", "also write the criteria to this file (.json, .yaml or .yml)")

	rootCmd.AddCommand(extractCmd)
}

// extraction is the machine-readable output of extract.
type extraction struct {
	DocumentID              string            `json:"document_id" yaml:"document_id"`
	Title                   string            `json:"title,omitempty" yaml:"title,omitempty"`
	PageEstimate            int               `json:"page_estimate" yaml:"page_estimate"`
	Criteria                []types.Criterion `json:"criteria" yaml:"criteria"`
	ParetoCriteria          []types.Criterion `json:"pareto_criteria" yaml:"pareto_criteria"`
	CombinedEliminationRate float64           `json:"combined_elimination_rate" yaml:"combined_elimination_rate"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	doc, err := ingest.ReadDocument(args[0])
	if err != nil {
		return err
	}

	topN, _ := cmd.Flags().GetInt("top-n")
	runner, err := newRunner(topN, 0)
	if err != nil {
		return err
	}

	all, selected, err := runner.Criteria(cmd.Context(), doc)
	if err != nil {
		return err
	}
	out := extraction{
		DocumentID:              doc.ID,
		Title:                   doc.Title,
		PageEstimate:            doc.PageEstimate,
		Criteria:                all,
		ParetoCriteria:          selected,
		CombinedEliminationRate: pareto.CombinedEliminationRate(selected),
	}

	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if err := writeStructured(path, out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return report.WriteJSON(cmd.OutOrStdout(), out)
	}

	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		p.Warning("no eligibility criteria found in %s", args[0])
		return nil
	}
	p.Header(fmt.Sprintf("Criteria: %s (%d)", doc.ID, len(all)))
	if err := report.CriteriaTable(p.Writer(), out.Criteria, selected); err != nil {
		return err
	}
	p.Header(fmt.Sprintf("Pareto set (%d)", len(selected)))
	if err := report.CriteriaTable(p.Writer(), selected, nil); err != nil {
		return err
	}
	p.Info("\ncombined elimination rate: %.1f%%", out.CombinedEliminationRate*100)
	return nil
}

// newRunner builds a pipeline runner from appConfig. Non-zero topN and
// workers override the configured values.
func newRunner(topN, workers int) (*pipeline.Runner, error) {
	var ex extract.Extractor = extract.NewHeuristic(appConfig.Extraction)
	if appConfig.Extraction.CacheSize > 0 {
		cached, err := extract.NewCached(ex, appConfig.Extraction.CacheSize)
		if err != nil {
			return nil, err
		}
		ex = cached
	}
	if topN <= 0 {
		topN = appConfig.Screening.ParetoLimit
	}
	if workers <= 0 {
		workers = appConfig.Screening.Workers
	}
	return pipeline.NewRunner(pipeline.Options{
		Extractor:   ex,
		ParetoLimit: topN,
		Workers:     workers,
		Logger:      logger,
	}), nil
}

// writeStructured writes v as YAML or JSON depending on path's extension.
func writeStructured(path string, v any) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(v)
	default:
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

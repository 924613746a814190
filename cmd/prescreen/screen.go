// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/trial-prescreen/internal/ingest"
	"github.com/pdiddy/trial-prescreen/internal/metrics"
	"github.com/pdiddy/trial-prescreen/internal/pipeline"
	"github.com/pdiddy/trial-prescreen/internal/report"
	"github.com/pdiddy/trial-prescreen/internal/review"
	"github.com/pdiddy/trial-prescreen/internal/secrets"
	"github.com/pdiddy/trial-prescreen/internal/store"
	"github.com/pdiddy/trial-prescreen/pkg/types"
)

var screenCmd = &cobra.Command{
	Use:   "screen <protocol>",
	Short: "Screen candidates against a protocol's Pareto criteria",
	Long: `Screen extracts the protocol's criteria, selects the Pareto set and
evaluates every candidate against it, most selective criterion first. A
candidate stops at the first failed criterion.

Candidates come from a YAML or JSON file (--candidates) or a single inline
JSON object (--candidate). With --review, criteria the rules cannot decide
are sent to Claude; confident answers replace needs_review.`,
	Args: cobra.ExactArgs(1),
	RunE: runScreen,
}

func init() {
	screenCmd.Flags().String("candidates", "", "YAML or JSON file of candidate records")
	screenCmd.Flags().String("candidate", "", "one candidate as inline JSON")
	screenCmd.Flags().Int("top-n", 0, "size of the Pareto set (default from screening.pareto_limit)")
	screenCmd.Flags().Int("workers", 0, "candidates screened concurrently (default from screening.workers)")
	screenCmd.Flags().Bool("review", false, "escalate needs_review criteria to Claude")
	screenCmd.Flags().Bool("save", false, "save the run to the store")
	screenCmd.Flags().String("metrics-file", "", "write Prometheus metrics to this textfile")
	screenCmd.Flags().Bool("json", false, "output the full result as JSON")

	rootCmd.AddCommand(screenCmd)
}

func runScreen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	candidates, err := candidatesFromFlags(cmd)
	if err != nil {
		return err
	}

	doc, err := ingest.ReadDocument(args[0])
	if err != nil {
		return err
	}

	topN, _ := cmd.Flags().GetInt("top-n")
	workers, _ := cmd.Flags().GetInt("workers")
	runner, err := newRunner(topN, workers)
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx, doc, candidates)
	if err != nil {
		return err
	}

	reviewFlag, _ := cmd.Flags().GetBool("review")
	if reviewFlag || appConfig.Review.Enabled {
		result, err = reviewResult(cmd, result, candidates)
		if err != nil {
			return err
		}
	}

	metricsPath, _ := cmd.Flags().GetString("metrics-file")
	if metricsPath == "" {
		metricsPath = appConfig.Metrics.TextfilePath
	}
	if metricsPath != "" {
		rec := metrics.NewRecorder()
		rec.ObserveRun(result)
		if err := rec.WriteTextfile(metricsPath); err != nil {
			return err
		}
	}

	var runID string
	if save, _ := cmd.Flags().GetBool("save"); save {
		// Served from the extractor cache when one is configured.
		all, _, err := runner.Criteria(ctx, doc)
		if err != nil {
			return err
		}
		s, err := store.Open(appConfig.Store.Dir, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		runID, err = s.SaveRun(ctx, doc, all, result)
		if err != nil {
			return err
		}
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return report.WriteJSON(cmd.OutOrStdout(), result)
	}

	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	p.Header(fmt.Sprintf("Screening: %s", doc.ID))
	if err := report.ScreeningTable(p.Writer(), pipeline.InputOrder(result, candidates)); err != nil {
		return err
	}
	p.PrintSummary(report.Summarize(result))
	if runID != "" {
		p.Success("saved run %s", runID)
	}
	return nil
}

func candidatesFromFlags(cmd *cobra.Command) ([]types.Candidate, error) {
	path, _ := cmd.Flags().GetString("candidates")
	inline, _ := cmd.Flags().GetString("candidate")

	switch {
	case path != "" && inline != "":
		return nil, fmt.Errorf("use either --candidates or --candidate, not both")
	case path != "":
		return ingest.ReadCandidates(path)
	case inline != "":
		c, err := ingest.ParseCandidate(inline)
		if err != nil {
			return nil, err
		}
		return []types.Candidate{c}, nil
	default:
		return nil, fmt.Errorf("provide candidates with --candidates <file> or --candidate <json>")
	}
}

func reviewResult(cmd *cobra.Command, result *types.PipelineResult, candidates []types.Candidate) (*types.PipelineResult, error) {
	if len(result.NeedsReview) == 0 {
		return result, nil
	}

	cfg := appConfig.Review
	if cfg.APIKey == "" {
		dir, _ := cmd.Flags().GetString("secrets-dir")
		key, err := secrets.AnthropicKey(dir)
		if err != nil {
			return nil, fmt.Errorf("review requires an API key: %w", err)
		}
		cfg.APIKey = key
	}

	reviewer := review.NewClaudeReviewer(cfg.AIConfig, cfg.Timeout)
	fmt.Fprintf(cmd.ErrOrStderr(), "reviewing %d candidate(s) with %s\n", len(result.NeedsReview), cfg.Model)
	return review.ApplyBatch(cmd.Context(), reviewer, result, candidates, review.Options{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		Logger:              logger,
	})
}

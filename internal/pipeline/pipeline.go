// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline composes extraction, Pareto selection and screening into
// one run over a batch of candidates.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/trial-prescreen/internal/extract"
	"github.com/pdiddy/trial-prescreen/internal/pareto"
	"github.com/pdiddy/trial-prescreen/internal/screen"
	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// Options configures a Runner. Zero values select the defaults.
type Options struct {
	// Extractor produces the document's criteria (default: Heuristic).
	Extractor extract.Extractor

	// ParetoLimit is the size of the pre-screen set (default 8).
	ParetoLimit int

	// Workers is the number of candidates screened concurrently (default 1).
	Workers int

	// Logger receives run events (default slog.Default()).
	Logger *slog.Logger
}

// Runner executes pipeline runs with fixed options.
type Runner struct {
	extractor extract.Extractor
	limit     int
	workers   int
	log       *slog.Logger
}

// NewRunner returns a Runner with defaults applied to opts.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		extractor: opts.Extractor,
		limit:     opts.ParetoLimit,
		workers:   opts.Workers,
		log:       opts.Logger,
	}
	if r.extractor == nil {
		r.extractor = extract.NewHeuristic(types.DefaultConfig().Extraction)
	}
	if r.limit <= 0 {
		r.limit = pareto.DefaultLimit
	}
	if r.workers <= 0 {
		r.workers = 1
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// Criteria extracts the document's criteria and selects the Pareto subset.
func (r *Runner) Criteria(ctx context.Context, doc types.Document) (all, selected []types.Criterion, err error) {
	all, err = r.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting criteria for document %q: %w", doc.ID, err)
	}
	return all, pareto.SelectTop(all, r.limit), nil
}

// Run screens every candidate against the document's Pareto criteria and
// partitions the results by verdict, each partition in input order.
// Extraction errors are returned wrapped; cancellation is observed between
// candidates.
func (r *Runner) Run(ctx context.Context, doc types.Document, candidates []types.Candidate) (*types.PipelineResult, error) {
	start := time.Now()
	r.log.Info("pipeline.start", "document_id", doc.ID, "candidates", len(candidates))

	all, selected, err := r.Criteria(ctx, doc)
	if err != nil {
		return nil, err
	}

	results, err := screen.Batch(ctx, candidates, selected, r.workers)
	if err != nil {
		return nil, fmt.Errorf("screening candidates for document %q: %w", doc.ID, err)
	}

	passed, failed, review := Partition(results)
	out := &types.PipelineResult{
		DocumentID:              doc.ID,
		TotalCandidates:         len(candidates),
		Passed:                  passed,
		Failed:                  failed,
		NeedsReview:             review,
		ParetoCriteria:          selected,
		CombinedEliminationRate: pareto.CombinedEliminationRate(selected),
		Duration:                time.Since(start),
	}

	r.log.Info("pipeline.complete",
		"document_id", doc.ID,
		"criteria", len(all),
		"pareto", len(selected),
		"passed", len(passed),
		"failed", len(failed),
		"needs_review", len(review),
		"duration", out.Duration,
	)
	return out, nil
}

// Run executes one pipeline run with default options.
func Run(doc types.Document, candidates []types.Candidate) (*types.PipelineResult, error) {
	return NewRunner(Options{}).Run(context.Background(), doc, candidates)
}

// Partition splits results by aggregate verdict, keeping input order. The
// returned slices are never nil.
func Partition(results []types.ScreeningResult) (passed, failed, review []types.ScreeningResult) {
	passed = []types.ScreeningResult{}
	failed = []types.ScreeningResult{}
	review = []types.ScreeningResult{}
	for _, r := range results {
		switch r.Verdict {
		case types.VerdictFail:
			failed = append(failed, r)
		case types.VerdictNeedsReview:
			review = append(review, r)
		default:
			passed = append(passed, r)
		}
	}
	return passed, failed, review
}

// InputOrder returns every result of r in the order of candidates. Results
// whose candidate is not in the list follow in partition order.
func InputOrder(r *types.PipelineResult, candidates []types.Candidate) []types.ScreeningResult {
	all := r.Results()
	byID := make(map[string]types.ScreeningResult, len(all))
	for _, res := range all {
		byID[res.CandidateID] = res
	}

	out := make([]types.ScreeningResult, 0, len(all))
	placed := make(map[string]bool, len(all))
	for _, c := range candidates {
		if res, ok := byID[c.ID]; ok && !placed[c.ID] {
			out = append(out, res)
			placed[c.ID] = true
		}
	}
	for _, res := range all {
		if !placed[res.CandidateID] {
			out = append(out, res)
			placed[res.CandidateID] = true
		}
	}
	return out
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package review escalates needs-review verdicts to a stronger evaluator and
// folds the answers back into screening results. Results are never modified
// in place; Apply and ApplyBatch return new values.
package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pdiddy/trial-prescreen/internal/pipeline"
	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// DefaultConfidenceThreshold is the minimum confidence for a reviewer
// decision to replace a needs-review verdict.
const DefaultConfidenceThreshold = 0.70

// Decision is a reviewer's answer for one criterion.
type Decision struct {
	Verdict    types.Verdict `json:"verdict"`
	Reason     string        `json:"reason"`
	Confidence float64       `json:"confidence"`
}

// Reviewer decides a single criterion for a single candidate. Implementations
// return needs_review when they cannot decide.
type Reviewer interface {
	Review(ctx context.Context, criterion types.Criterion, candidate types.Candidate) (Decision, error)
}

// Options configures Apply and ApplyBatch. Zero values select the defaults.
type Options struct {
	ConfidenceThreshold float64
	Logger              *slog.Logger
}

func (o Options) threshold() float64 {
	if o.ConfidenceThreshold <= 0 {
		return DefaultConfidenceThreshold
	}
	return o.ConfidenceThreshold
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Apply asks reviewer about every needs_review entry of result, in order.
// Confident pass or fail decisions replace the entry; a fail ends the list at
// that criterion. The aggregate verdict is then recomputed: fail over
// needs_review over pass.
func Apply(ctx context.Context, reviewer Reviewer, result types.ScreeningResult, criteria []types.Criterion, candidate types.Candidate, opts Options) (types.ScreeningResult, error) {
	byID := make(map[string]types.Criterion, len(criteria))
	for _, c := range criteria {
		byID[c.ID] = c
	}
	log := opts.logger()

	out := result
	out.CriterionResults = make([]types.CriterionResult, 0, len(result.CriterionResults))
	for _, cr := range result.CriterionResults {
		if cr.Verdict != types.VerdictNeedsReview {
			out.CriterionResults = append(out.CriterionResults, cr)
			if cr.Verdict == types.VerdictFail {
				break
			}
			continue
		}

		crit, ok := byID[cr.CriterionID]
		if !ok {
			out.CriterionResults = append(out.CriterionResults, cr)
			continue
		}

		d, err := reviewer.Review(ctx, crit, candidate)
		if err != nil {
			return types.ScreeningResult{}, fmt.Errorf("reviewing criterion %s for candidate %s: %w", crit.ID, candidate.ID, err)
		}

		if !overrides(d, opts.threshold()) {
			log.Debug("review.kept", "candidate_id", candidate.ID, "criterion_id", crit.ID,
				"verdict", d.Verdict, "confidence", d.Confidence)
			out.CriterionResults = append(out.CriterionResults, cr)
			continue
		}

		log.Info("review.override", "candidate_id", candidate.ID, "criterion_id", crit.ID,
			"verdict", d.Verdict, "confidence", d.Confidence)
		out.CriterionResults = append(out.CriterionResults, types.CriterionResult{
			CriterionID: crit.ID,
			Verdict:     d.Verdict,
			Reason:      "Reviewer: " + d.Reason,
		})
		if d.Verdict == types.VerdictFail {
			break
		}
	}

	out.Verdict, out.DisqualifiedBy = aggregate(out.CriterionResults)
	return out, nil
}

// overrides reports whether d is confident enough to replace needs_review.
func overrides(d Decision, threshold float64) bool {
	if d.Verdict != types.VerdictPass && d.Verdict != types.VerdictFail {
		return false
	}
	return d.Confidence >= threshold
}

func aggregate(results []types.CriterionResult) (types.Verdict, string) {
	verdict := types.VerdictPass
	for _, cr := range results {
		switch cr.Verdict {
		case types.VerdictFail:
			return types.VerdictFail, cr.CriterionID
		case types.VerdictNeedsReview:
			verdict = types.VerdictNeedsReview
		}
	}
	return verdict, ""
}

// ApplyBatch reviews every needs-review candidate of result against its
// Pareto criteria and re-partitions the batch. candidates must be the batch
// the result was produced from; partitions keep their order.
func ApplyBatch(ctx context.Context, reviewer Reviewer, result *types.PipelineResult, candidates []types.Candidate, opts Options) (*types.PipelineResult, error) {
	byID := make(map[string]types.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	reviewed := make(map[string]types.ScreeningResult, len(result.NeedsReview))
	for _, r := range result.NeedsReview {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cand, ok := byID[r.CandidateID]
		if !ok {
			return nil, fmt.Errorf("reviewing batch: candidate %s not in batch", r.CandidateID)
		}
		nr, err := Apply(ctx, reviewer, r, result.ParetoCriteria, cand, opts)
		if err != nil {
			return nil, err
		}
		reviewed[r.CandidateID] = nr
	}

	all := make([]types.ScreeningResult, 0, result.TotalCandidates)
	for _, r := range pipeline.InputOrder(result, candidates) {
		if nr, ok := reviewed[r.CandidateID]; ok {
			r = nr
		}
		all = append(all, r)
	}

	out := *result
	out.Passed, out.Failed, out.NeedsReview = pipeline.Partition(all)
	return &out, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package screen evaluates candidates against an ordered criteria set.
//
// Criteria are visited by descending priority. Each criterion is checked
// against the rule table; the first violated rule fails the candidate and
// stops evaluation. Criteria no rule can decide are marked needs_review and
// evaluation continues, since a later criterion may still fail.
package screen

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// ManualReviewReason is the reason recorded when no rule can decide a criterion.
const ManualReviewReason = "Criterion requires manual review"

// Screen evaluates one candidate against criteria. Neither argument is
// modified.
func Screen(candidate types.Candidate, criteria []types.Criterion) types.ScreeningResult {
	return screenOrdered(candidate, byPriority(criteria))
}

// Batch screens candidates against criteria using up to workers goroutines.
// Results are in input order. Cancellation is observed between candidates;
// a cancelled batch returns the context error and no results.
func Batch(ctx context.Context, candidates []types.Candidate, criteria []types.Criterion, workers int) ([]types.ScreeningResult, error) {
	ordered := byPriority(criteria)
	results := make([]types.ScreeningResult, len(candidates))

	if workers <= 1 {
		for i, c := range candidates {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = screenOrdered(c, ordered)
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range candidates {
		if gctx.Err() != nil {
			break
		}
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = screenOrdered(c, ordered)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// byPriority returns a copy of criteria sorted by Priority descending.
// Ties keep their input order.
func byPriority(criteria []types.Criterion) []types.Criterion {
	out := make([]types.Criterion, len(criteria))
	copy(out, criteria)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

func screenOrdered(candidate types.Candidate, ordered []types.Criterion) types.ScreeningResult {
	start := time.Now()
	result := types.ScreeningResult{
		CandidateID:      candidate.ID,
		Verdict:          types.VerdictPass,
		CriterionResults: make([]types.CriterionResult, 0, len(ordered)),
	}

	for _, crit := range ordered {
		cr := Evaluate(crit, candidate)
		result.CriterionResults = append(result.CriterionResults, cr)
		if cr.Verdict == types.VerdictFail {
			result.Verdict = types.VerdictFail
			result.DisqualifiedBy = crit.ID
			break
		}
		if cr.Verdict == types.VerdictNeedsReview {
			result.Verdict = types.VerdictNeedsReview
		}
	}

	result.Duration = time.Since(start)
	return result
}

// Evaluate checks a single criterion against a candidate. Every rule whose
// family appears in the criterion text is applied. The criterion fails on the
// first violated rule, passes when at least one rule fired, and otherwise
// needs manual review.
func Evaluate(crit types.Criterion, candidate types.Candidate) types.CriterionResult {
	var passed []string
	for _, r := range rules {
		p, ok := r.match(crit.Text, crit.Kind)
		if !ok {
			continue
		}
		c := r.eval(p, crit.Kind, candidate)
		if !c.fired {
			continue
		}
		if c.violated {
			return types.CriterionResult{CriterionID: crit.ID, Verdict: types.VerdictFail, Reason: c.reason}
		}
		passed = append(passed, c.reason)
	}
	if len(passed) == 0 {
		return types.CriterionResult{CriterionID: crit.ID, Verdict: types.VerdictNeedsReview, Reason: ManualReviewReason}
	}
	return types.CriterionResult{CriterionID: crit.ID, Verdict: types.VerdictPass, Reason: strings.Join(passed, "; ")}
}

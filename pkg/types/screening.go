// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Verdict is the outcome of evaluating a criterion, or the aggregate outcome
// for a candidate.
type Verdict string

const (
	VerdictPass        Verdict = "pass"
	VerdictFail        Verdict = "fail"
	VerdictNeedsReview Verdict = "needs_review"
)

// Valid reports whether v is one of the three known verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictPass, VerdictFail, VerdictNeedsReview:
		return true
	}
	return false
}

// CriterionResult is the outcome of evaluating one criterion against one candidate.
type CriterionResult struct {
	CriterionID string  `json:"criterion_id" yaml:"criterion_id"`
	Verdict     Verdict `json:"verdict" yaml:"verdict"`

	// Reason names the value or pattern that triggered the verdict.
	Reason string `json:"reason" yaml:"reason"`
}

// ScreeningResult is the outcome of evaluating one candidate against an
// ordered criteria set.
type ScreeningResult struct {
	CandidateID string  `json:"candidate_id" yaml:"candidate_id"`
	Verdict     Verdict `json:"verdict" yaml:"verdict"`

	// CriterionResults holds every criterion actually evaluated, in evaluation
	// order, ending at the first failure.
	CriterionResults []CriterionResult `json:"criterion_results" yaml:"criterion_results"`

	// DisqualifiedBy is the ID of the failing criterion; empty unless Verdict is fail.
	DisqualifiedBy string `json:"disqualified_by,omitempty" yaml:"disqualified_by,omitempty"`

	// Duration is the wall-clock time spent evaluating this candidate.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// PipelineResult is the outcome of screening a batch of candidates against
// one document's Pareto criteria.
type PipelineResult struct {
	DocumentID      string `json:"document_id" yaml:"document_id"`
	TotalCandidates int    `json:"total_candidates" yaml:"total_candidates"`

	// Passed, Failed and NeedsReview partition the screened candidates by
	// aggregate verdict, each in input order.
	Passed      []ScreeningResult `json:"passed" yaml:"passed"`
	Failed      []ScreeningResult `json:"failed" yaml:"failed"`
	NeedsReview []ScreeningResult `json:"needs_review" yaml:"needs_review"`

	// ParetoCriteria is the subset every candidate was screened against.
	ParetoCriteria []Criterion `json:"pareto_criteria" yaml:"pareto_criteria"`

	// CombinedEliminationRate estimates the fraction of the general population
	// the Pareto set would eliminate, assuming independent criteria.
	CombinedEliminationRate float64 `json:"combined_elimination_rate" yaml:"combined_elimination_rate"`

	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Results returns every screening result, passed first, then failed, then
// needs-review.
func (r *PipelineResult) Results() []ScreeningResult {
	out := make([]ScreeningResult, 0, len(r.Passed)+len(r.Failed)+len(r.NeedsReview))
	out = append(out, r.Passed...)
	out = append(out, r.Failed...)
	out = append(out, r.NeedsReview...)
	return out
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// CriterionKind distinguishes inclusion from exclusion criteria.
type CriterionKind string

const (
	KindInclusion CriterionKind = "inclusion"
	KindExclusion CriterionKind = "exclusion"
)

// Power buckets an elimination rate into the coarse disqualification classes
// used when presenting criteria.
type Power string

const (
	PowerVeryHigh Power = "very_high"
	PowerHigh     Power = "high"
	PowerMedium   Power = "medium"
	PowerLow      Power = "low"
)

// CriterionFlags records structural features detected in a criterion's text.
type CriterionFlags struct {
	// NumericThreshold is set when the text carries a comparison against a number
	// (e.g. "eGFR < 45").
	NumericThreshold bool `json:"numeric_threshold" yaml:"numeric_threshold"`

	// Temporal is set when the text bounds the condition in time
	// (e.g. "within 4 weeks").
	Temporal bool `json:"temporal" yaml:"temporal"`

	// Ambiguous is set when the text relies on clinical judgment
	// (e.g. "clinically significant").
	Ambiguous bool `json:"ambiguous" yaml:"ambiguous"`
}

// Criterion is one eligibility rule extracted from a document.
type Criterion struct {
	// ID is unique within the document: "inc-N" or "exc-N", 1-based within its block.
	ID string `json:"id" yaml:"id"`

	// Kind is inclusion or exclusion.
	Kind CriterionKind `json:"kind" yaml:"kind"`

	// Text is the verbatim extracted statement.
	Text string `json:"text" yaml:"text"`

	// EliminationRate is the estimated fraction of the general population this
	// criterion alone would disqualify, in [0, 1].
	EliminationRate float64 `json:"elimination_rate" yaml:"elimination_rate"`

	// Priority orders evaluation during screening; higher is evaluated first.
	// It increases strictly with EliminationRate, ties broken by extraction order.
	Priority int `json:"priority" yaml:"priority"`

	// Category names the keyword class that assigned EliminationRate.
	Category string `json:"category" yaml:"category"`

	// Flags records structural features of Text.
	Flags CriterionFlags `json:"flags" yaml:"flags"`
}

// Power returns the disqualification bucket for the criterion's elimination rate.
func (c Criterion) Power() Power {
	switch {
	case c.EliminationRate >= 0.30:
		return PowerVeryHigh
	case c.EliminationRate >= 0.10:
		return PowerHigh
	case c.EliminationRate >= 0.03:
		return PowerMedium
	default:
		return PowerLow
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pareto selects the small subset of criteria that accounts for most
// candidate eliminations.
package pareto

import (
	"sort"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// DefaultLimit is the Pareto set size used when callers pass zero or less.
const DefaultLimit = 8

// SelectTop returns the limit criteria with the highest elimination rate,
// ordered rate descending. Ties keep their input order. A limit of zero or
// less means DefaultLimit. The input slice is not modified.
func SelectTop(criteria []types.Criterion, limit int) []types.Criterion {
	if limit <= 0 {
		limit = DefaultLimit
	}
	sorted := make([]types.Criterion, len(criteria))
	copy(sorted, criteria)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EliminationRate > sorted[j].EliminationRate
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// CombinedEliminationRate estimates the fraction of candidates eliminated by
// at least one criterion as 1 - Π(1 - rate). It assumes criteria eliminate
// independently, so it is an estimate and not a measured joint probability.
// Rates are clamped to [0, 1]; an empty set yields 0.
func CombinedEliminationRate(criteria []types.Criterion) float64 {
	if len(criteria) == 0 {
		return 0
	}
	survive := 1.0
	for _, c := range criteria {
		survive *= 1 - clamp(c.EliminationRate)
	}
	return 1 - survive
}

func clamp(r float64) float64 {
	switch {
	case r < 0 || r != r:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"time"

	"github.com/montanaflynn/stats"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// DurationStats describes per-candidate screening time.
type DurationStats struct {
	Mean   time.Duration `json:"mean"`
	Median time.Duration `json:"median"`
	P95    time.Duration `json:"p95"`
	Max    time.Duration `json:"max"`
}

// Summary is the headline view of a pipeline result.
type Summary struct {
	DocumentID              string        `json:"document_id"`
	Total                   int           `json:"total"`
	Passed                  int           `json:"passed"`
	Failed                  int           `json:"failed"`
	NeedsReview             int           `json:"needs_review"`
	PassRate                float64       `json:"pass_rate"`
	ParetoCriteria          int           `json:"pareto_criteria"`
	CombinedEliminationRate float64       `json:"combined_elimination_rate"`
	Durations               DurationStats `json:"durations"`
	Elapsed                 time.Duration `json:"elapsed"`
}

// Summarize counts outcomes and computes duration statistics for result.
func Summarize(result *types.PipelineResult) Summary {
	s := Summary{
		DocumentID:              result.DocumentID,
		Total:                   result.TotalCandidates,
		Passed:                  len(result.Passed),
		Failed:                  len(result.Failed),
		NeedsReview:             len(result.NeedsReview),
		ParetoCriteria:          len(result.ParetoCriteria),
		CombinedEliminationRate: result.CombinedEliminationRate,
		Elapsed:                 result.Duration,
	}
	if s.Total > 0 {
		s.PassRate = float64(s.Passed) / float64(s.Total)
	}

	all := result.Results()
	data := make(stats.Float64Data, 0, len(all))
	for _, r := range all {
		data = append(data, float64(r.Duration))
	}
	s.Durations = durationStats(data)
	return s
}

func durationStats(data stats.Float64Data) DurationStats {
	if data.Len() == 0 {
		return DurationStats{}
	}
	var ds DurationStats
	if v, err := stats.Mean(data); err == nil {
		ds.Mean = time.Duration(v)
	}
	if v, err := stats.Median(data); err == nil {
		ds.Median = time.Duration(v)
	}
	if v, err := stats.Percentile(data, 95); err == nil {
		ds.P95 = time.Duration(v)
	}
	if v, err := stats.Max(data); err == nil {
		ds.Max = time.Duration(v)
	}
	return ds
}

// PrintSummary writes s as a short block of labelled lines.
func (p *Printer) PrintSummary(s Summary) {
	p.Header("Summary: " + s.DocumentID)
	p.Info("candidates:        %d", s.Total)
	p.Info("passed:            %d (%.1f%%)", s.Passed, s.PassRate*100)
	p.Info("failed:            %d", s.Failed)
	p.Info("needs review:      %d", s.NeedsReview)
	p.Info("pareto criteria:   %d (combined elimination %.1f%%)", s.ParetoCriteria, s.CombinedEliminationRate*100)
	if s.Total > 0 {
		p.Info("screen time:       mean %s, median %s, p95 %s, max %s",
			s.Durations.Mean, s.Durations.Median, s.Durations.P95, s.Durations.Max)
	}
	p.Info("elapsed:           %s", s.Elapsed)
	if s.NeedsReview > 0 {
		p.Warning("%d candidate(s) need manual review", s.NeedsReview)
	}
}

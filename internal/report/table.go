// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pdiddy/trial-prescreen/internal/store"
	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// maxCellText truncates long criterion text and reasons in table cells.
const maxCellText = 72

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
}

func render(w io.Writer, header []string, rows [][]string) error {
	table := newTable(w)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("building table: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}
	return nil
}

// CriteriaTable renders criteria in the given order with their elimination
// power. IDs in selected are marked with an asterisk.
func CriteriaTable(w io.Writer, criteria []types.Criterion, selected []types.Criterion) error {
	chosen := make(map[string]bool, len(selected))
	for _, c := range selected {
		chosen[c.ID] = true
	}

	rows := make([][]string, 0, len(criteria))
	for _, c := range criteria {
		id := c.ID
		if chosen[c.ID] {
			id += "*"
		}
		rows = append(rows, []string{
			id,
			string(c.Kind),
			strconv.FormatFloat(c.EliminationRate*100, 'f', 1, 64) + "%",
			string(c.Power()),
			c.Category,
			truncate(c.Text, maxCellText),
		})
	}
	return render(w, []string{"ID", "Kind", "Rate", "Power", "Category", "Text"}, rows)
}

// ScreeningTable renders one row per candidate with the reason that decided
// its verdict, in the order given.
func ScreeningTable(w io.Writer, results []types.ScreeningResult) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.CandidateID,
			string(r.Verdict),
			r.DisqualifiedBy,
			truncate(decidingReason(r), maxCellText),
		})
	}
	return render(w, []string{"Candidate", "Verdict", "Disqualified By", "Reason"}, rows)
}

// RunsTable renders saved runs with their outcome counts.
func RunsTable(w io.Writer, runs []store.RunSummary) error {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.DocumentID,
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.TotalCandidates),
			strconv.Itoa(r.Passed),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.NeedsReview),
		})
	}
	return render(w, []string{"Run", "Document", "Created", "Total", "Passed", "Failed", "Review"}, rows)
}

// decidingReason picks the criterion reason that explains r's verdict.
func decidingReason(r types.ScreeningResult) string {
	switch r.Verdict {
	case types.VerdictFail:
		for _, cr := range r.CriterionResults {
			if cr.CriterionID == r.DisqualifiedBy {
				return cr.Reason
			}
		}
	case types.VerdictNeedsReview:
		for _, cr := range r.CriterionResults {
			if cr.Verdict == types.VerdictNeedsReview {
				return cr.Reason
			}
		}
	case types.VerdictPass:
		return fmt.Sprintf("%d criteria passed", len(r.CriterionResults))
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

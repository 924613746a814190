// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/trial-prescreen/internal/pipeline"
	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// DefaultListLimit bounds ListRuns when the filter sets no limit.
const DefaultListLimit = 20

// RunFilter narrows ListRuns.
type RunFilter struct {
	// DocumentID restricts runs to one protocol.
	DocumentID string

	// Limit caps the number of runs returned. Zero uses DefaultListLimit.
	Limit int
}

// RunSummary is the row-level view of a saved run.
type RunSummary struct {
	ID                      string    `json:"id" yaml:"id"`
	DocumentID              string    `json:"document_id" yaml:"document_id"`
	DocumentTitle           string    `json:"document_title,omitempty" yaml:"document_title,omitempty"`
	CreatedAt               time.Time `json:"created_at" yaml:"created_at"`
	TotalCandidates         int       `json:"total_candidates" yaml:"total_candidates"`
	Passed                  int       `json:"passed" yaml:"passed"`
	Failed                  int       `json:"failed" yaml:"failed"`
	NeedsReview             int       `json:"needs_review" yaml:"needs_review"`
	CombinedEliminationRate float64   `json:"combined_elimination_rate" yaml:"combined_elimination_rate"`
}

// Run is a saved run with its full pipeline result.
type Run struct {
	RunSummary `yaml:",inline"`
	Result     *types.PipelineResult `json:"result" yaml:"result"`
}

const summaryColumns = `r.id, r.document_id, d.title, r.created_at, r.total_candidates,
	r.passed, r.failed, r.needs_review, r.combined_elimination_rate`

// ListRuns returns saved runs, newest first.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT ` + summaryColumns + `
		FROM runs r
		LEFT JOIN documents d ON d.id = r.document_id
		WHERE 1=1`)
	if filter.DocumentID != "" {
		qb.WriteString(` AND r.document_id = ?`)
		args = append(args, filter.DocumentID)
	}
	qb.WriteString(` ORDER BY r.seq DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		rs, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rs)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (RunSummary, error) {
	var (
		rs      RunSummary
		title   sql.NullString
		created string
	)
	err := row.Scan(&rs.ID, &rs.DocumentID, &title, &created, &rs.TotalCandidates,
		&rs.Passed, &rs.Failed, &rs.NeedsReview, &rs.CombinedEliminationRate)
	if err != nil {
		return RunSummary{}, err
	}
	rs.DocumentTitle = title.String
	if t, err := time.Parse(timeLayout, created); err == nil {
		rs.CreatedAt = t
	}
	return rs, nil
}

// LoadRun reads one run and rebuilds its pipeline result. Partitions come
// back in the order they were saved. An unknown id returns ErrRunNotFound.
func (s *Store) LoadRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+`, r.duration_ns, r.pareto_criteria
		FROM runs r
		LEFT JOIN documents d ON d.id = r.document_id
		WHERE r.id = ?`, id)

	var (
		rs         RunSummary
		title      sql.NullString
		created    string
		durationNS int64
		paretoJSON sql.NullString
	)
	err := row.Scan(&rs.ID, &rs.DocumentID, &title, &created, &rs.TotalCandidates,
		&rs.Passed, &rs.Failed, &rs.NeedsReview, &rs.CombinedEliminationRate,
		&durationNS, &paretoJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading run %s: %w", id, types.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	rs.DocumentTitle = title.String
	if t, err := time.Parse(timeLayout, created); err == nil {
		rs.CreatedAt = t
	}

	result := &types.PipelineResult{
		DocumentID:              rs.DocumentID,
		TotalCandidates:         rs.TotalCandidates,
		CombinedEliminationRate: rs.CombinedEliminationRate,
		Duration:                time.Duration(durationNS),
		ParetoCriteria:          []types.Criterion{},
	}
	if paretoJSON.Valid && paretoJSON.String != "" {
		if err := json.Unmarshal([]byte(paretoJSON.String), &result.ParetoCriteria); err != nil {
			return nil, fmt.Errorf("decoding pareto criteria for run %s: %w", id, err)
		}
	}

	screenings, err := s.loadScreenings(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Passed, result.Failed, result.NeedsReview = pipeline.Partition(screenings)

	return &Run{RunSummary: rs, Result: result}, nil
}

func (s *Store) loadScreenings(ctx context.Context, runID string) ([]types.ScreeningResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT candidate_id, verdict, disqualified_by, duration_ns, criterion_results
		 FROM screenings WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying screenings: %w", err)
	}
	defer rows.Close()

	var results []types.ScreeningResult
	for rows.Next() {
		var (
			r          types.ScreeningResult
			verdict    string
			disq       sql.NullString
			durationNS int64
			crJSON     sql.NullString
		)
		if err := rows.Scan(&r.CandidateID, &verdict, &disq, &durationNS, &crJSON); err != nil {
			return nil, fmt.Errorf("scanning screening: %w", err)
		}
		r.Verdict = types.Verdict(verdict)
		r.DisqualifiedBy = disq.String
		r.Duration = time.Duration(durationNS)
		r.CriterionResults = []types.CriterionResult{}
		if crJSON.Valid && crJSON.String != "" {
			if err := json.Unmarshal([]byte(crJSON.String), &r.CriterionResults); err != nil {
				return nil, fmt.Errorf("decoding results for %s: %w", r.CandidateID, err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// CriterionMatch is a criterion found by SearchCriteria.
type CriterionMatch struct {
	types.Criterion `yaml:",inline"`
	DocumentID      string  `json:"document_id" yaml:"document_id"`
	DocumentTitle   string  `json:"document_title,omitempty" yaml:"document_title,omitempty"`
	Rank            float64 `json:"rank" yaml:"rank"`
}

// SearchCriteria runs a full-text search over stored criterion text, best
// match first. Every word of query must appear; FTS5 operators in query are
// treated as plain words.
func (s *Store) SearchCriteria(ctx context.Context, query string, limit int) ([]CriterionMatch, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, fmt.Errorf("searching criteria: %w", types.ErrEmptyInput)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.kind, c.text, c.elimination_rate, c.priority, c.category,
			c.numeric_threshold, c.temporal, c.ambiguous,
			c.document_id, d.title, criteria_fts.rank
		FROM criteria_fts
		JOIN criteria c ON c.rowid = criteria_fts.rowid
		LEFT JOIN documents d ON d.id = c.document_id
		WHERE criteria_fts MATCH ?
		ORDER BY criteria_fts.rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("searching criteria: %w", err)
	}
	defer rows.Close()

	matches := []CriterionMatch{}
	for rows.Next() {
		var (
			m        CriterionMatch
			kind     string
			category sql.NullString
			title    sql.NullString
		)
		err := rows.Scan(&m.ID, &kind, &m.Text, &m.EliminationRate, &m.Priority, &category,
			&m.Flags.NumericThreshold, &m.Flags.Temporal, &m.Flags.Ambiguous,
			&m.DocumentID, &title, &m.Rank)
		if err != nil {
			return nil, fmt.Errorf("scanning criterion: %w", err)
		}
		m.Kind = types.CriterionKind(kind)
		m.Category = category.String
		m.DocumentTitle = title.String
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ftsQuery quotes each word of q so punctuation such as "<" or "-" cannot be
// read as FTS5 syntax.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if strings.Trim(f, "<>=≤≥*:-+^()") == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// fakeReviewer answers with a function of the criterion and candidate.
type fakeReviewer struct {
	decide func(types.Criterion, types.Candidate) (Decision, error)
	calls  int
}

func (f *fakeReviewer) Review(_ context.Context, crit types.Criterion, cand types.Candidate) (Decision, error) {
	f.calls++
	return f.decide(crit, cand)
}

func always(d Decision) *fakeReviewer {
	return &fakeReviewer{decide: func(types.Criterion, types.Candidate) (Decision, error) { return d, nil }}
}

var reviewCriteria = []types.Criterion{
	{ID: "c1", Kind: types.KindExclusion, Text: "Clinically significant cardiac disease", Priority: 3},
	{ID: "c2", Kind: types.KindExclusion, Text: "Uncontrolled hypertension", Priority: 2},
	{ID: "c3", Kind: types.KindExclusion, Text: "Renal impairment with eGFR < 45", Priority: 1},
}

func needsReview(ids ...string) types.ScreeningResult {
	r := types.ScreeningResult{CandidateID: "p1", Verdict: types.VerdictNeedsReview}
	for _, id := range ids {
		r.CriterionResults = append(r.CriterionResults, types.CriterionResult{
			CriterionID: id, Verdict: types.VerdictNeedsReview, Reason: "Criterion requires manual review",
		})
	}
	return r
}

func quiet() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name         string
		in           types.ScreeningResult
		reviewer     *fakeReviewer
		wantVerdict  types.Verdict
		wantLen      int
		wantDisq     string
		wantReviewed int
	}{
		{
			name:         "confident pass replaces needs_review",
			in:           needsReview("c1"),
			reviewer:     always(Decision{Verdict: types.VerdictPass, Reason: "no cardiac history", Confidence: 0.9}),
			wantVerdict:  types.VerdictPass,
			wantLen:      1,
			wantReviewed: 1,
		},
		{
			name:         "low confidence keeps needs_review",
			in:           needsReview("c1"),
			reviewer:     always(Decision{Verdict: types.VerdictFail, Reason: "maybe", Confidence: 0.5}),
			wantVerdict:  types.VerdictNeedsReview,
			wantLen:      1,
			wantReviewed: 1,
		},
		{
			name:         "confident needs_review is kept",
			in:           needsReview("c1", "c2"),
			reviewer:     always(Decision{Verdict: types.VerdictNeedsReview, Confidence: 0.99}),
			wantVerdict:  types.VerdictNeedsReview,
			wantLen:      2,
			wantReviewed: 2,
		},
		{
			name:         "fail truncates",
			in:           needsReview("c1", "c2", "c3"),
			reviewer:     always(Decision{Verdict: types.VerdictFail, Reason: "prior MI", Confidence: 0.95}),
			wantVerdict:  types.VerdictFail,
			wantLen:      1,
			wantDisq:     "c1",
			wantReviewed: 1,
		},
		{
			name: "threshold is inclusive",
			in:   needsReview("c2"),
			reviewer: always(Decision{
				Verdict: types.VerdictPass, Reason: "controlled on therapy", Confidence: DefaultConfidenceThreshold,
			}),
			wantVerdict:  types.VerdictPass,
			wantLen:      1,
			wantReviewed: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(tt.in.CriterionResults)
			got, err := Apply(context.Background(), tt.reviewer, tt.in, reviewCriteria, types.Candidate{ID: "p1"}, quiet())
			require.NoError(t, err)
			assert.Equal(t, tt.wantVerdict, got.Verdict)
			assert.Len(t, got.CriterionResults, tt.wantLen)
			assert.Equal(t, tt.wantDisq, got.DisqualifiedBy)
			assert.Equal(t, tt.wantReviewed, tt.reviewer.calls)
			assert.Len(t, tt.in.CriterionResults, before, "input modified")
			assert.Equal(t, types.VerdictNeedsReview, tt.in.CriterionResults[0].Verdict, "input modified")
		})
	}
}

func TestApplyKeepsExistingFailure(t *testing.T) {
	in := types.ScreeningResult{
		CandidateID: "p1",
		Verdict:     types.VerdictFail,
		CriterionResults: []types.CriterionResult{
			{CriterionID: "c1", Verdict: types.VerdictNeedsReview},
			{CriterionID: "c3", Verdict: types.VerdictFail, Reason: "eGFR 20 meets exclusion threshold < 45"},
		},
		DisqualifiedBy: "c3",
	}
	got, err := Apply(context.Background(), always(Decision{Verdict: types.VerdictPass, Confidence: 1}), in, reviewCriteria, types.Candidate{ID: "p1"}, quiet())
	require.NoError(t, err)
	assert.Equal(t, types.VerdictFail, got.Verdict)
	assert.Equal(t, "c3", got.DisqualifiedBy)
	require.Len(t, got.CriterionResults, 2)
	assert.Equal(t, types.VerdictPass, got.CriterionResults[0].Verdict)
	assert.Contains(t, got.CriterionResults[0].Reason, "Reviewer: ")
}

func TestApplyReviewerError(t *testing.T) {
	boom := errors.New("api down")
	r := &fakeReviewer{decide: func(types.Criterion, types.Candidate) (Decision, error) { return Decision{}, boom }}
	_, err := Apply(context.Background(), r, needsReview("c1"), reviewCriteria, types.Candidate{ID: "p1"}, quiet())
	assert.ErrorIs(t, err, boom)
}

func TestApplyUnknownCriterionIsKept(t *testing.T) {
	r := always(Decision{Verdict: types.VerdictPass, Confidence: 1})
	got, err := Apply(context.Background(), r, needsReview("zz"), reviewCriteria, types.Candidate{ID: "p1"}, quiet())
	require.NoError(t, err)
	assert.Equal(t, types.VerdictNeedsReview, got.Verdict)
	assert.Equal(t, 0, r.calls)
}

func TestApplyLogsOverride(t *testing.T) {
	var buf bytes.Buffer
	opts := Options{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	_, err := Apply(context.Background(), always(Decision{Verdict: types.VerdictPass, Confidence: 0.8}),
		needsReview("c1"), reviewCriteria, types.Candidate{ID: "p1"}, opts)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"review.override"`)
	assert.Contains(t, buf.String(), `"criterion_id":"c1"`)
}

func TestApplyBatch(t *testing.T) {
	result := &types.PipelineResult{
		DocumentID:      "doc-1",
		TotalCandidates: 4,
		Passed:          []types.ScreeningResult{{CandidateID: "a", Verdict: types.VerdictPass}},
		Failed:          []types.ScreeningResult{{CandidateID: "b", Verdict: types.VerdictFail, DisqualifiedBy: "c3"}},
		NeedsReview: []types.ScreeningResult{
			withID(needsReview("c1"), "c"),
			withID(needsReview("c1"), "d"),
		},
		ParetoCriteria: reviewCriteria,
	}
	candidates := []types.Candidate{{ID: "c"}, {ID: "a"}, {ID: "d"}, {ID: "b"}}

	reviewer := &fakeReviewer{decide: func(_ types.Criterion, cand types.Candidate) (Decision, error) {
		if cand.ID == "d" {
			return Decision{Verdict: types.VerdictFail, Reason: "history of MI", Confidence: 0.9}, nil
		}
		return Decision{Verdict: types.VerdictPass, Reason: "no cardiac history", Confidence: 0.9}, nil
	}}

	got, err := ApplyBatch(context.Background(), reviewer, result, candidates, quiet())
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "a"}, candidateIDs(got.Passed))
	assert.Equal(t, []string{"d", "b"}, candidateIDs(got.Failed))
	assert.Empty(t, got.NeedsReview)
	assert.Equal(t, "c1", got.Failed[0].DisqualifiedBy)
	assert.Equal(t, 4, len(got.Passed)+len(got.Failed)+len(got.NeedsReview))

	// The input result is untouched.
	assert.Len(t, result.NeedsReview, 2)
	assert.Len(t, result.Passed, 1)
}

func TestApplyBatchUnknownCandidate(t *testing.T) {
	result := &types.PipelineResult{NeedsReview: []types.ScreeningResult{withID(needsReview("c1"), "ghost")}}
	_, err := ApplyBatch(context.Background(), always(Decision{}), result, nil, quiet())
	assert.Error(t, err)
}

func withID(r types.ScreeningResult, id string) types.ScreeningResult {
	r.CandidateID = id
	return r
}

func candidateIDs(results []types.ScreeningResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.CandidateID
	}
	return out
}

package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

const sampleProtocol = `Phase II Study of Drug X in Type 2 Diabetes

Table of Contents
Inclusion Criteria ............ 4
Exclusion Criteria ............ 5

5.1 Inclusion Criteria
1. Male or female aged 18 to 75 years
2. Histologically confirmed diagnosis of type 2 diabetes
3. OK

5.2 Exclusion Criteria
- Prior malignancy within the last 5 years
- Renal impairment with eGFR < 45
• Pregnant or breastfeeding women
* Known hypersensitivity to the study drug
- Clinically significant psychiatric disorder

6. Study Procedures
Blood draws weekly for all participants.
`

func sampleDoc(text string) types.Document {
	return types.Document{ID: "doc-1", Title: "test", Text: text, PageEstimate: 1}
}

func extractText(t *testing.T, cfg types.ExtractionConfig, text string) []types.Criterion {
	t.Helper()
	criteria, err := NewHeuristic(cfg).Extract(context.Background(), sampleDoc(text))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return criteria
}

// --- Extract ---

func TestExtractSampleProtocol(t *testing.T) {
	criteria := extractText(t, types.ExtractionConfig{StopAtSection: true}, sampleProtocol)

	wantIDs := []string{"exc-1", "inc-1", "exc-2", "exc-3", "exc-4", "exc-5", "inc-2"}
	if len(criteria) != len(wantIDs) {
		for i, c := range criteria {
			t.Logf("  criterion[%d]: %s %q", i, c.ID, c.Text)
		}
		t.Fatalf("got %d criteria, want %d", len(criteria), len(wantIDs))
	}
	for i, want := range wantIDs {
		if criteria[i].ID != want {
			t.Errorf("criterion[%d].ID = %q, want %q", i, criteria[i].ID, want)
		}
		if criteria[i].Priority != len(wantIDs)-i {
			t.Errorf("criterion[%d].Priority = %d, want %d", i, criteria[i].Priority, len(wantIDs)-i)
		}
	}

	byID := indexByID(criteria)
	if got := byID["exc-2"].Text; got != "Renal impairment with eGFR < 45" {
		t.Errorf("exc-2 text = %q", got)
	}
	if got := byID["inc-1"].Kind; got != types.KindInclusion {
		t.Errorf("inc-1 kind = %q, want inclusion", got)
	}
	if got := byID["exc-3"].Kind; got != types.KindExclusion {
		t.Errorf("exc-3 kind = %q, want exclusion", got)
	}
	if got := byID["inc-1"].Category; got != "age" {
		t.Errorf("inc-1 category = %q, want age", got)
	}
	if !byID["exc-1"].Flags.Temporal {
		t.Error("exc-1 should be flagged temporal")
	}
	if !byID["exc-2"].Flags.NumericThreshold {
		t.Error("exc-2 should be flagged numeric threshold")
	}
	if !byID["exc-5"].Flags.Ambiguous {
		t.Error("exc-5 should be flagged ambiguous")
	}
}

func TestExtractExclusionRunsToEndOfText(t *testing.T) {
	criteria := extractText(t, types.ExtractionConfig{}, sampleProtocol)
	byID := indexByID(criteria)
	if len(criteria) != 9 {
		t.Fatalf("got %d criteria, want 9", len(criteria))
	}
	if byID["exc-6"].Text != "Study Procedures" {
		t.Errorf("exc-6 text = %q, want %q", byID["exc-6"].Text, "Study Procedures")
	}
	if byID["exc-7"].Text != "Blood draws weekly for all participants." {
		t.Errorf("exc-7 text = %q", byID["exc-7"].Text)
	}
}

func TestExtractNoHeadings(t *testing.T) {
	criteria := extractText(t, types.ExtractionConfig{}, "A protocol synopsis.\nPatients will receive drug X daily.")
	if criteria == nil {
		// nil and empty are both acceptable; the length is what matters.
		criteria = []types.Criterion{}
	}
	if len(criteria) != 0 {
		t.Errorf("got %d criteria, want 0", len(criteria))
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	_, err := NewHeuristic(types.ExtractionConfig{}).Extract(context.Background(), sampleDoc("  \n "))
	if !errors.Is(err, types.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestExtractCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHeuristic(types.ExtractionConfig{}).Extract(ctx, sampleDoc(sampleProtocol))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestExtractExclusionBeforeInclusion(t *testing.T) {
	text := "EXCLUSION CRITERIA\n- Active hepatitis B or C infection\nINCLUSION CRITERIA\n- Signed informed consent form\n"
	criteria := extractText(t, types.ExtractionConfig{}, text)
	byID := indexByID(criteria)
	if len(criteria) != 2 {
		t.Fatalf("got %d criteria, want 2", len(criteria))
	}
	if byID["exc-1"].Text != "Active hepatitis B or C infection" {
		t.Errorf("exc-1 text = %q", byID["exc-1"].Text)
	}
	if byID["inc-1"].Text != "Signed informed consent form" {
		t.Errorf("inc-1 text = %q", byID["inc-1"].Text)
	}
}

func TestExtractInlineHeadingRemainder(t *testing.T) {
	text := "Exclusion criteria: Age between 18 and 75 years\n"
	criteria := extractText(t, types.ExtractionConfig{}, text)
	if len(criteria) != 1 || criteria[0].Text != "Age between 18 and 75 years" {
		t.Fatalf("got %+v", criteria)
	}

	lead := "Exclusion criteria (any of the following):\n- Renal impairment with eGFR < 45\n"
	criteria = extractText(t, types.ExtractionConfig{}, lead)
	if len(criteria) != 1 || criteria[0].ID != "exc-1" {
		t.Fatalf("lead-in line should be dropped, got %+v", criteria)
	}

	note := "Inclusion Criteria (all must be met)\n1. Age between 18 and 75 years\n"
	criteria = extractText(t, types.ExtractionConfig{}, note)
	if len(criteria) != 1 || criteria[0].ID != "inc-1" || criteria[0].Text != "Age between 18 and 75 years" {
		t.Fatalf("parenthesized heading note should be dropped, got %+v", criteria)
	}
}

func TestExtractInvariants(t *testing.T) {
	docs := []string{
		sampleProtocol,
		"Inclusion Criteria\n" + strings.Repeat("- Prior chemotherapy for any indication\n", 5),
		"Exclusion Criteria\n- x\n- short\n- a much longer line about nothing in particular",
	}
	for _, text := range docs {
		criteria := extractText(t, types.ExtractionConfig{}, text)
		seen := map[string]bool{}
		for i, c := range criteria {
			if c.EliminationRate < 0 || c.EliminationRate > 1 {
				t.Errorf("%s: rate %f out of range", c.ID, c.EliminationRate)
			}
			if seen[c.ID] {
				t.Errorf("duplicate id %s", c.ID)
			}
			seen[c.ID] = true
			if i > 0 {
				prev := criteria[i-1]
				if prev.EliminationRate < c.EliminationRate {
					t.Errorf("not sorted: %s (%f) before %s (%f)", prev.ID, prev.EliminationRate, c.ID, c.EliminationRate)
				}
				if prev.Priority <= c.Priority {
					t.Errorf("priority not strictly decreasing: %s=%d, %s=%d", prev.ID, prev.Priority, c.ID, c.Priority)
				}
			}
		}
	}
}

// --- splitStatements ---

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  []string
	}{
		{
			name:  "bullets and numbering stripped",
			block: "\n- Dash bullet statement\n• Round bullet statement\n* Star bullet statement\n12. Numbered statement here\n3) Paren numbered statement",
			want: []string{
				"Dash bullet statement",
				"Round bullet statement",
				"Star bullet statement",
				"Numbered statement here",
				"Paren numbered statement",
			},
		},
		{
			name:  "short lines dropped",
			block: "\n- yes\n\n1. 123456789\n2. 1234567890",
			want:  []string{"1234567890"},
		},
		{
			name:  "decimal values are not markers",
			block: "\n1.5 mg/dL serum creatinine or higher",
			want:  []string{"1.5 mg/dL serum creatinine or higher"},
		},
		{
			name:  "parenthesized heading remainder dropped",
			block: " (all must be met)\n1. Age between 18 and 75 years",
			want:  []string{"Age between 18 and 75 years"},
		},
		{
			name:  "heading remainder kept when it is a statement",
			block: ": Age between 18 and 75 years\n2. eGFR >= 30 mL/min",
			want:  []string{"Age between 18 and 75 years", "eGFR >= 30 mL/min"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitStatements(tt.block, defaultMinStatementLength)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// --- classify ---

func TestClassify(t *testing.T) {
	tests := []struct {
		text     string
		category string
		rate     float64
	}{
		{"History of prior cancer of any type", "malignancy", 0.35},
		{"Age between 18 and 75 years", "age", 0.30},
		{"Participants 65 years or older", "age", 0.30},
		{"Renal impairment with eGFR < 45", "renal", 0.25},
		{"Known liver cirrhosis", "hepatic", 0.22},
		{"ALT greater than 3 times ULN", "hepatic", 0.22},
		{"Pregnant or breastfeeding women", "pregnancy", 0.20},
		{"Nursing mothers", "pregnancy", 0.20},
		{"Residing in a nursing home or long-term care facility", "default", DefaultRate},
		{"Prior treatment with any GLP-1 agonist", "prior_treatment", 0.18},
		{"Received immunotherapy in the past", "prior_treatment", 0.18},
		{"Known allergy to iodinated contrast", "allergy", 0.15},
		{"Active psychiatric illness requiring hospitalization", "psychiatric", 0.12},
		{"Signed informed consent", "default", DefaultRate},
		// First match wins: malignancy outranks prior treatment.
		{"Prior chemotherapy for metastatic disease", "malignancy", 0.35},
		// Words containing "age" are not age criteria.
		{"Average dosage stable for 3 months", "default", DefaultRate},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			rate, category := EstimateRate(tt.text)
			if category != tt.category || rate != tt.rate {
				t.Errorf("EstimateRate(%q) = (%v, %q), want (%v, %q)", tt.text, rate, category, tt.rate, tt.category)
			}
		})
	}
}

func TestPrioritizeDoesNotMutateInput(t *testing.T) {
	in := []types.Criterion{
		{ID: "a", EliminationRate: 0.1},
		{ID: "b", EliminationRate: 0.3},
		{ID: "c", EliminationRate: 0.1},
	}
	out := Prioritize(in)
	if in[0].ID != "a" || in[0].Priority != 0 {
		t.Errorf("input modified: %+v", in)
	}
	got := []string{out[0].ID, out[1].ID, out[2].ID}
	if strings.Join(got, ",") != "b,a,c" {
		t.Errorf("order = %v, want b,a,c", got)
	}
	if out[0].Priority != 3 || out[2].Priority != 1 {
		t.Errorf("priorities = %d,%d,%d", out[0].Priority, out[1].Priority, out[2].Priority)
	}
}

func indexByID(criteria []types.Criterion) map[string]types.Criterion {
	m := make(map[string]types.Criterion, len(criteria))
	for _, c := range criteria {
		m[c.ID] = c
	}
	return m
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

const candidatesYAML = `
- id: p-001
  age: 45
  diagnoses: [type 2 diabetes]
  prior_treatments: []
  lab_values:
    eGFR: 62.5
    HbA1c: "7.9"
  metadata:
    pregnant: false
- id: p-002
  age: unknown
`

func TestDecodeCandidatesYAMLList(t *testing.T) {
	cands, err := DecodeCandidates([]byte(candidatesYAML))
	require.NoError(t, err)
	require.Len(t, cands, 2)

	p1 := cands[0]
	assert.Equal(t, "p-001", p1.ID)
	age, ok := p1.Age.Float()
	require.True(t, ok)
	assert.Equal(t, 45.0, age)
	assert.Equal(t, []string{"type 2 diabetes"}, p1.Diagnoses)
	assert.NotNil(t, p1.PriorTreatments, "empty list must stay distinguishable from missing")
	assert.Empty(t, p1.PriorTreatments)
	assert.Nil(t, p1.Comorbidities)
	egfr, ok := p1.LabValues["eGFR"].Float()
	require.True(t, ok)
	assert.Equal(t, 62.5, egfr)
	hba1c, ok := p1.LabValues["HbA1c"].Float()
	require.True(t, ok)
	assert.Equal(t, 7.9, hba1c)
	assert.Equal(t, false, p1.Metadata["pregnant"])

	_, ok = cands[1].Age.Float()
	assert.False(t, ok, "malformed age decodes but does not parse")
	assert.Equal(t, types.Numeric("unknown"), cands[1].Age)
}

func TestDecodeCandidatesJSONWrapper(t *testing.T) {
	data := `{"candidates": [{"id": "a", "age": "52", "lab_values": {"eGFR": 20}}, {"id": "b", "age": null}]}`
	cands, err := DecodeCandidates([]byte(data))
	require.NoError(t, err)
	require.Len(t, cands, 2)
	age, ok := cands[0].Age.Float()
	require.True(t, ok)
	assert.Equal(t, 52.0, age)
	_, ok = cands[1].Age.Float()
	assert.False(t, ok)
}

func TestDecodeCandidatesErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"empty", "  \n", types.ErrEmptyInput},
		{"duplicate id", "- id: a\n- id: b\n- id: a\n", ErrInvalidCandidates},
		{"missing id", "- age: 30\n", ErrInvalidCandidates},
		{"mapping without candidates", "patients: []\n", ErrInvalidCandidates},
		{"scalar", "just text\n", ErrInvalidCandidates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCandidates([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestDecodeCandidatesSyntaxError(t *testing.T) {
	_, err := DecodeCandidates([]byte("- id: [a\n"))
	assert.Error(t, err)
}

func TestReadCandidatesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "candidates.yaml", candidatesYAML)
	cands, err := ReadCandidates(path)
	require.NoError(t, err)
	assert.Len(t, cands, 2)
}

func TestParseCandidate(t *testing.T) {
	c, err := ParseCandidate(`{"id": "p-9", "age": 17, "metadata": {"pregnant": true}}`)
	require.NoError(t, err)
	assert.Equal(t, "p-9", c.ID)
	assert.Equal(t, types.Numeric("17"), c.Age)
	assert.Equal(t, true, c.Metadata["pregnant"])

	c, err = ParseCandidate(`{"age": "40"}`)
	require.NoError(t, err)
	assert.Equal(t, InlineCandidateID, c.ID)

	_, err = ParseCandidate("")
	assert.True(t, errors.Is(err, types.ErrEmptyInput))

	_, err = ParseCandidate("{not json")
	assert.Error(t, err)
}

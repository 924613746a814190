// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Candidate is a patient or subject record to be screened.
//
// A nil slice means the field was not supplied; an empty slice means it was
// supplied and has no entries. Rules only fire on supplied data.
type Candidate struct {
	// ID is the externally supplied identifier.
	ID string `json:"id" yaml:"id"`

	// Age in years. Integer or decimal; a malformed value is kept as-is.
	Age Numeric `json:"age,omitempty" yaml:"age,omitempty"`

	// Diagnoses lists free-text diagnosis strings.
	Diagnoses []string `json:"diagnoses,omitempty" yaml:"diagnoses,omitempty"`

	// PriorTreatments lists free-text treatment strings.
	PriorTreatments []string `json:"prior_treatments,omitempty" yaml:"prior_treatments,omitempty"`

	// LabValues maps a lab-test name (e.g. "eGFR") to its value.
	LabValues map[string]Numeric `json:"lab_values,omitempty" yaml:"lab_values,omitempty"`

	// Comorbidities lists free-text comorbidity strings.
	Comorbidities []string `json:"comorbidities,omitempty" yaml:"comorbidities,omitempty"`

	// Metadata holds flag-like facts such as "pregnant" or "breastfeeding".
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Numeric is a candidate value expected to be a number. It is stored as text
// so that malformed input survives decoding and is judged by the rule that
// reads it.
type Numeric string

// Num formats v as a Numeric.
func Num(v float64) Numeric {
	return Numeric(strconv.FormatFloat(v, 'f', -1, 64))
}

// Float parses the value. It reports false for empty, non-numeric, NaN or
// infinite values.
func (n Numeric) Float() (float64, bool) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// UnmarshalJSON accepts a JSON number, string or null.
func (n *Numeric) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*n = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*n = Numeric(str)
		return nil
	}
	*n = Numeric(s)
	return nil
}

// MarshalJSON writes parseable values as numbers and everything else as strings.
func (n Numeric) MarshalJSON() ([]byte, error) {
	if v, ok := n.Float(); ok {
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
	}
	return json.Marshal(string(n))
}

// UnmarshalYAML accepts any scalar.
func (n *Numeric) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		// Lists and maps are malformed but must not abort decoding the batch.
		*n = Numeric(value.Tag)
		return nil
	}
	if value.Tag == "!!null" {
		*n = ""
		return nil
	}
	*n = Numeric(value.Value)
	return nil
}

// MarshalYAML writes parseable values as numbers and everything else as strings.
func (n Numeric) MarshalYAML() (any, error) {
	if v, ok := n.Float(); ok {
		return v, nil
	}
	return string(n), nil
}

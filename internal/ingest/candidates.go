// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// ErrInvalidCandidates is returned for candidate files that decode but do
// not describe a usable batch.
var ErrInvalidCandidates = errors.New("invalid candidates")

// InlineCandidateID is assigned to an inline candidate that carries no id.
const InlineCandidateID = "inline"

// ReadCandidates reads a YAML or JSON candidate file. The file holds either
// a list of candidates or an object with a "candidates" list. Every
// candidate needs a unique id.
func ReadCandidates(path string) ([]types.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading candidates %s: %w", path, err)
	}
	cands, err := DecodeCandidates(data)
	if err != nil {
		return nil, fmt.Errorf("reading candidates %s: %w", path, err)
	}
	return cands, nil
}

// DecodeCandidates decodes candidates from YAML or JSON bytes.
func DecodeCandidates(data []byte) ([]types.Candidate, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("decoding candidates: %w", types.ErrEmptyInput)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding candidates: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("decoding candidates: %w", types.ErrEmptyInput)
	}

	var cands []types.Candidate
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&cands); err != nil {
			return nil, fmt.Errorf("decoding candidates: %w", err)
		}
	case yaml.MappingNode:
		var wrapper struct {
			Candidates []types.Candidate `yaml:"candidates"`
		}
		if err := root.Decode(&wrapper); err != nil {
			return nil, fmt.Errorf("decoding candidates: %w", err)
		}
		if wrapper.Candidates == nil {
			return nil, fmt.Errorf("decoding candidates: no candidates list: %w", ErrInvalidCandidates)
		}
		cands = wrapper.Candidates
	default:
		return nil, fmt.Errorf("decoding candidates: expected a list or mapping: %w", ErrInvalidCandidates)
	}

	if err := validate(cands); err != nil {
		return nil, err
	}
	return cands, nil
}

func validate(cands []types.Candidate) error {
	seen := make(map[string]int, len(cands))
	for i, c := range cands {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return fmt.Errorf("candidate %d has no id: %w", i+1, ErrInvalidCandidates)
		}
		if first, ok := seen[id]; ok {
			return fmt.Errorf("duplicate candidate id %q (entries %d and %d): %w", id, first, i+1, ErrInvalidCandidates)
		}
		seen[id] = i + 1
	}
	return nil
}

// ParseCandidate decodes one candidate from inline JSON, as given on the
// command line. A missing id becomes InlineCandidateID.
func ParseCandidate(raw string) (types.Candidate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.Candidate{}, fmt.Errorf("parsing candidate: %w", types.ErrEmptyInput)
	}
	var c types.Candidate
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return types.Candidate{}, fmt.Errorf("parsing candidate: %w", err)
	}
	if strings.TrimSpace(c.ID) == "" {
		c.ID = InlineCandidateID
	}
	return c, nil
}

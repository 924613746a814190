// Package extract identifies inclusion and exclusion criteria within protocol
// text and estimates how many candidates each criterion eliminates.
//
// Heuristic is a keyword-driven stand-in for a model-backed extractor. Any
// Extractor returns criteria sorted by elimination rate, highest first, with
// Priority already assigned, so implementations are interchangeable.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

const defaultMinStatementLength = 10

// Extractor abstracts criteria extraction so a model-backed implementation can
// replace the heuristic one.
type Extractor interface {
	Extract(ctx context.Context, doc types.Document) ([]types.Criterion, error)
}

var (
	inclusionHeading = regexp.MustCompile(`(?i)inclusion[ \t]+criteria`)
	exclusionHeading = regexp.MustCompile(`(?i)exclusion[ \t]+criteria`)

	// tocLine matches a table-of-contents entry: dot leaders then a page number.
	tocLine = regexp.MustCompile(`\.{4,}\s*\d{1,4}\s*$`)

	// sectionStop matches the protocol sections that usually follow the criteria.
	sectionStop = regexp.MustCompile(`(?im)^[ \t]*(?:\d+(?:\.\d+)*\.?[ \t]+)?(?:study[ \t]+(?:procedures?|design|objectives?|endpoints?)|treatment[ \t]+(?:plan|regimen|administration)|statistical[ \t]+(?:analysis|considerations)|pharmacokinetics)\b`)

	// bulletMarker matches a leading "-", "•", "*" or "N." / "N)" / "N.N." marker.
	bulletMarker = regexp.MustCompile(`^(?:[-•*]+|\d+(?:\.\d+)*[.)])\s+`)
)

// Heuristic extracts criteria by locating the inclusion and exclusion blocks
// and treating each remaining line in them as one statement.
type Heuristic struct {
	minLength     int
	stopAtSection bool
}

// NewHeuristic returns a Heuristic extractor configured from cfg.
func NewHeuristic(cfg types.ExtractionConfig) *Heuristic {
	minLength := cfg.MinStatementLength
	if minLength <= 0 {
		minLength = defaultMinStatementLength
	}
	return &Heuristic{
		minLength:     minLength,
		stopAtSection: cfg.StopAtSection,
	}
}

// Extract returns the document's criteria sorted by elimination rate
// descending. A document without criteria headings yields an empty slice and
// a nil error; an empty document yields types.ErrEmptyInput.
func (h *Heuristic) Extract(ctx context.Context, doc types.Document) ([]types.Criterion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("extracting criteria from %q: %w", doc.ID, types.ErrEmptyInput)
	}

	inc, exc := locateBlocks(doc.Text, h.stopAtSection)

	var criteria []types.Criterion
	criteria = append(criteria, h.buildBlock(inc, types.KindInclusion, "inc")...)
	criteria = append(criteria, h.buildBlock(exc, types.KindExclusion, "exc")...)

	return Prioritize(criteria), nil
}

// Prioritize stable-sorts criteria by elimination rate descending and assigns
// Priority = total - index. The input slice is not modified.
func Prioritize(criteria []types.Criterion) []types.Criterion {
	out := make([]types.Criterion, len(criteria))
	copy(out, criteria)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EliminationRate > out[j].EliminationRate
	})
	for i := range out {
		out[i].Priority = len(out) - i
	}
	return out
}

func (h *Heuristic) buildBlock(block string, kind types.CriterionKind, prefix string) []types.Criterion {
	statements := splitStatements(block, h.minLength)
	out := make([]types.Criterion, 0, len(statements))
	for i, text := range statements {
		class := classify(text)
		out = append(out, types.Criterion{
			ID:              fmt.Sprintf("%s-%d", prefix, i+1),
			Kind:            kind,
			Text:            text,
			EliminationRate: class.rate,
			Category:        class.name,
			Flags:           detectFlags(text),
		})
	}
	return out
}

// heading is the byte span of a criteria heading match.
type heading struct {
	start, end int
	found      bool
}

// locateBlocks returns the inclusion and exclusion block text. The inclusion
// block runs from its heading to the exclusion heading or end of text; the
// exclusion block runs from its heading to end of text, or to the inclusion
// heading when that comes later.
func locateBlocks(text string, stopAtSection bool) (inclusion, exclusion string) {
	inc := findHeading(text, inclusionHeading)
	exc := findHeading(text, exclusionHeading)

	if inc.found {
		end := len(text)
		if exc.found && exc.start > inc.start {
			end = exc.start
		}
		inclusion = blockText(text, inc.end, end, stopAtSection)
	}
	if exc.found {
		end := len(text)
		if inc.found && inc.start > exc.start {
			end = inc.start
		}
		exclusion = blockText(text, exc.end, end, stopAtSection)
	}
	return inclusion, exclusion
}

// findHeading returns the first match of re that is not on a table-of-contents line.
func findHeading(text string, re *regexp.Regexp) heading {
	for _, m := range re.FindAllStringIndex(text, -1) {
		if tocLine.MatchString(lineAt(text, m[0])) {
			continue
		}
		return heading{start: m[0], end: m[1], found: true}
	}
	return heading{}
}

// lineAt returns the full line containing byte offset pos.
func lineAt(text string, pos int) string {
	start := strings.LastIndexByte(text[:pos], '\n') + 1
	end := strings.IndexByte(text[pos:], '\n')
	if end < 0 {
		return text[start:]
	}
	return text[start : pos+end]
}

func blockText(text string, start, end int, stopAtSection bool) string {
	block := text[start:end]
	if stopAtSection {
		if loc := sectionStop.FindStringIndex(block); loc != nil {
			block = block[:loc[0]]
		}
	}
	return block
}

// splitStatements strips bullet markers from each line and drops lines
// shorter than minLength characters. The remainder of the heading line is the
// first line; it survives only if it reads as a statement rather than a lead-in.
func splitStatements(block string, minLength int) []string {
	lines := strings.Split(block, "\n")
	var out []string
	for i, line := range lines {
		s := strings.TrimSpace(line)
		if i == 0 {
			s = strings.TrimSpace(strings.TrimLeft(s, ":-–— \t"))
			if strings.HasSuffix(s, ":") || (strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")) {
				continue
			}
		}
		s = strings.TrimSpace(bulletMarker.ReplaceAllString(s, ""))
		if len([]rune(s)) < minLength {
			continue
		}
		out = append(out, s)
	}
	return out
}

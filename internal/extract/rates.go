package extract

import (
	"regexp"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// rateClass maps a keyword class to the fraction of the general population a
// criterion in that class is assumed to eliminate.
type rateClass struct {
	name    string
	rate    float64
	pattern *regexp.Regexp
}

// DefaultRate is assigned to statements matching no keyword class.
const DefaultRate = 0.05

// rateClasses is evaluated top to bottom; the first match wins.
var rateClasses = []rateClass{
	{
		name:    "malignancy",
		rate:    0.35,
		pattern: regexp.MustCompile(`(?i)\b(?:malignan\w*|cancers?|carcinoma\w*|neoplas\w*|tumou?rs?|lymphoma\w*|leuka?emia\w*|melanoma\w*|sarcoma\w*|metasta\w*)\b`),
	},
	{
		name:    "age",
		rate:    0.30,
		pattern: regexp.MustCompile(`(?i)\bage[ds]?\b[^.;]*\d|\b\d+\s*(?:years?|yrs?)\s*(?:of\s+age|old|or\s+(?:older|younger)|and\s+(?:older|above))`),
	},
	{
		name:    "renal",
		rate:    0.25,
		pattern: regexp.MustCompile(`(?i)\b(?:renal|kidney|e?gfr|creatinine|dialysis)\b`),
	},
	{
		name:    "hepatic",
		rate:    0.22,
		pattern: regexp.MustCompile(`(?i:\b(?:hepatic|liver|cirrhosis|hepatitis|bilirubin|transaminases?)\b)|\b(?:ALT|AST)\b`),
	},
	{
		name:    "pregnancy",
		rate:    0.20,
		pattern: regexp.MustCompile(`(?i)\b(?:pregnan\w*|breast[- ]?feeding|lactat\w*|nursing\s+(?:mothers?|wom[ae]n|infants?)|currently\s+nursing)\b`),
	},
	{
		name:    "prior_treatment",
		rate:    0.18,
		pattern: regexp.MustCompile(`(?i)\b(?:prior|previous(?:ly)?|received)\b[^.;]*\b(?:treatment|therap\w*|chemotherap\w*|radiotherap\w*|radiation|surgery|transplant\w*)|\b(?:chemotherap\w*|immunotherap\w*|radiotherap\w*|biologic\s+therap\w*)`),
	},
	{
		name:    "allergy",
		rate:    0.15,
		pattern: regexp.MustCompile(`(?i)\b(?:allerg\w*|hypersensitiv\w*)`),
	},
	{
		name:    "psychiatric",
		rate:    0.12,
		pattern: regexp.MustCompile(`(?i)\b(?:psychiatr\w*|mental\s+(?:illness|disorder|health)|schizophreni\w*|bipolar|psychos[ie]s)\b`),
	},
}

var defaultClass = rateClass{name: "default", rate: DefaultRate}

// classify returns the first rate class whose pattern matches text.
func classify(text string) rateClass {
	for _, c := range rateClasses {
		if c.pattern.MatchString(text) {
			return c
		}
	}
	return defaultClass
}

// EstimateRate returns the elimination rate and category for a criterion
// statement. Model-backed extractors use it to fill rates they do not supply.
func EstimateRate(text string) (float64, string) {
	c := classify(text)
	return c.rate, c.name
}

var (
	numericThreshold = regexp.MustCompile(`(?i)(?:[<>≤≥=]\s*\d|\b(?:at\s+least|more\s+than|less\s+than|greater\s+than|fewer\s+than|below|above|exceed\w*)\s+\d)`)
	temporal         = regexp.MustCompile(`(?i)\bwithin\s+(?:the\s+)?(?:last\s+|past\s+|previous\s+)?\d+\s*(?:days?|weeks?|months?|years?)\b|\b\d+\s*(?:days?|weeks?|months?|years?)\s+(?:prior\s+to|before)\b`)
	ambiguous        = regexp.MustCompile(`(?i)\bclinically\s+(?:significant|relevant|important)\b|\b(?:opinion|judge?ment|discretion)\s+of\s+the\s+investigator\b|\binvestigator'?s?\s+(?:opinion|judge?ment|discretion)\b|\b(?:adequate|uncontrolled|severe)\b`)
)

// detectFlags reports the structural features of a criterion statement.
func detectFlags(text string) types.CriterionFlags {
	return types.CriterionFlags{
		NumericThreshold: numericThreshold.MatchString(text),
		Temporal:         temporal.MatchString(text),
		Ambiguous:        ambiguous.MatchString(text),
	}
}

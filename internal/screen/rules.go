// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package screen

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// RuleKind discriminates the rule families the screener understands.
type RuleKind string

const (
	RuleAgeRange        RuleKind = "age_range"
	RuleLabThreshold    RuleKind = "lab_threshold"
	RuleKeywordPresence RuleKind = "keyword_presence"
	RuleMetadataFlag    RuleKind = "metadata_flag"
)

// Rule is one entry of the ordered rule table. match inspects the criterion
// text and returns the parameters the rule needs; eval applies them to a
// candidate.
type Rule struct {
	Kind RuleKind
	Name string

	match func(text string, kind types.CriterionKind) (params, bool)
	eval  func(p params, kind types.CriterionKind, c types.Candidate) check
}

// params carries whatever a rule extracted from the criterion text.
type params struct {
	text   string
	bounds []bound
	labs   []labCondition
	terms  []string
	keys   []string

	// trigger is the criterion phrase a keyword or flag rule matched on.
	trigger string
	// negated is set when the criterion asks for the condition's absence.
	negated bool
}

// check is the outcome of evaluating one rule. A rule that did not fire
// (no usable candidate data) leaves fired false.
type check struct {
	fired    bool
	violated bool
	reason   string
}

func notFired() check { return check{} }

// Rules returns the rule table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

var rules = []Rule{
	{Kind: RuleAgeRange, Name: "age", match: matchAge, eval: evalAge},
	{Kind: RuleLabThreshold, Name: "lab", match: matchLab, eval: evalLab},
	{Kind: RuleKeywordPresence, Name: "malignancy", match: matchMalignancy, eval: evalMalignancy},
	{Kind: RuleKeywordPresence, Name: "prior_treatment", match: matchPriorTreatment, eval: evalPriorTreatment},
	{Kind: RuleMetadataFlag, Name: "pregnancy", match: matchPregnancy, eval: evalMetadataFlag},
}

// opPattern matches comparison operators written as symbols or words.
const opPattern = `<=|>=|=<|=>|≤|≥|<|>|\b(?:less\s+than\s+or\s+equal\s+to|greater\s+than\s+or\s+equal\s+to|no\s+more\s+than|no\s+less\s+than|less\s+than|greater\s+than|more\s+than|younger\s+than|older\s+than|at\s+least|at\s+most|below|above|under|over)\b`

const numPattern = `(\d+(?:\.\d+)?)`

// normalizeOp maps a matched operator onto one of <, <=, >, >=.
func normalizeOp(op string) string {
	op = strings.Join(strings.Fields(strings.ToLower(op)), " ")
	switch op {
	case "<=", "=<", "≤", "less than or equal to", "no more than", "at most":
		return "<="
	case ">=", "=>", "≥", "greater than or equal to", "no less than", "at least":
		return ">="
	case "<", "less than", "younger than", "below", "under":
		return "<"
	default:
		return ">"
	}
}

// complementOp returns the operator describing the values outside op.
func complementOp(op string) string {
	switch op {
	case "<":
		return ">="
	case "<=":
		return ">"
	case ">":
		return "<="
	default:
		return "<"
	}
}

func compare(v float64, op string, threshold float64) bool {
	switch op {
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case ">":
		return v > threshold
	default:
		return v >= threshold
	}
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// --- age_range ---

// bound is one side of an eligible age window.
type bound struct {
	op    string
	value float64
}

var (
	ageRange      = regexp.MustCompile(`(?i)\bage[ds]?\b[^.;\d<>≤≥]{0,30}?` + numPattern + `\s*(?:years?\s*)?(?:and|to|-|–)\s*` + numPattern)
	ageRangeAfter = regexp.MustCompile(`(?i)` + numPattern + `\s*(?:and|to|-|–)\s*` + numPattern + `\s*(?:years?|yrs?)\s+(?:of\s+age|old)`)
	ageOp         = regexp.MustCompile(`(?i)\bage[ds]?\b\s*(?:is\s+|of\s+)?(` + opPattern + `)\s*` + numPattern)
	ageOpYears    = regexp.MustCompile(`(?i)(` + opPattern + `)\s*` + numPattern + `\s*(?:years?|yrs?)\s+(?:of\s+age|old)`)
	ageOrWord     = regexp.MustCompile(`(?i)` + numPattern + `\s*(?:years?|yrs?)(?:\s+of\s+age|\s+old)?\s+(?:or|and)\s+(older|over|above|younger|under|less|below)`)
)

// matchAge reads the eligible age window from the text. A two-sided range is
// always the eligible window. A one-sided bound under an exclusion heading
// describes the excluded population, so it is complemented.
func matchAge(text string, kind types.CriterionKind) (params, bool) {
	var p params
	for _, re := range []*regexp.Regexp{ageRange, ageRangeAfter} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			lo, errLo := strconv.ParseFloat(m[1], 64)
			hi, errHi := strconv.ParseFloat(m[2], 64)
			if errLo != nil || errHi != nil {
				continue
			}
			if lo > hi {
				lo, hi = hi, lo
			}
			p.bounds = append(p.bounds, bound{op: ">=", value: lo}, bound{op: "<=", value: hi})
		}
	}
	if len(p.bounds) > 0 {
		return p, true
	}

	var oneSided []bound
	for _, re := range []*regexp.Regexp{ageOp, ageOpYears} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			oneSided = append(oneSided, bound{op: normalizeOp(m[1]), value: v})
		}
	}
	for _, m := range ageOrWord.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		op := "<="
		switch strings.ToLower(m[2]) {
		case "older", "over", "above":
			op = ">="
		}
		oneSided = append(oneSided, bound{op: op, value: v})
	}
	if len(oneSided) == 0 {
		return params{}, false
	}
	for _, b := range oneSided {
		if kind == types.KindExclusion {
			b.op = complementOp(b.op)
		}
		p.bounds = append(p.bounds, b)
	}
	return p, true
}

func evalAge(p params, _ types.CriterionKind, c types.Candidate) check {
	age, ok := c.Age.Float()
	if !ok {
		return notFired()
	}
	a := formatNum(age)
	for _, b := range p.bounds {
		if compare(age, b.op, b.value) {
			continue
		}
		v := formatNum(b.value)
		var reason string
		switch {
		case b.op == ">=":
			reason = fmt.Sprintf("Age %s below minimum %s", a, v)
		case b.op == "<=":
			reason = fmt.Sprintf("Age %s above maximum %s", a, v)
		case b.op == ">" && age == b.value:
			reason = fmt.Sprintf("Age %s not above %s", a, v)
		case b.op == ">":
			reason = fmt.Sprintf("Age %s below minimum %s", a, v)
		case age == b.value:
			reason = fmt.Sprintf("Age %s not below %s", a, v)
		default:
			reason = fmt.Sprintf("Age %s above maximum %s", a, v)
		}
		return check{fired: true, violated: true, reason: reason}
	}
	parts := make([]string, len(p.bounds))
	for i, b := range p.bounds {
		parts[i] = b.op + " " + formatNum(b.value)
	}
	return check{fired: true, reason: fmt.Sprintf("Age %s within bounds %s", a, strings.Join(parts, ", "))}
}

// --- lab_threshold ---

// labCondition is "<name> <op> <threshold>" as written in the criterion.
type labCondition struct {
	name      string
	op        string
	threshold float64
}

var labThreshold = regexp.MustCompile(`(?i)\b(e?gfr|creatinine\s+clearance|crcl|creatinine|alt|ast|bilirubin|hba1c|a1c|ha?emoglobin|hgb|platelets?(?:\s+count)?|anc|absolute\s+neutrophil\s+count|wbc|inr|ldl(?:-c)?|potassium|sodium|bmi)\b[^<>≤≥=.;\d]{0,40}?(` + opPattern + `)\s*` + numPattern + `(\s*(?:×|x\b|times\b))?`)

// labAliases folds alternate spellings onto one lookup key.
var labAliases = map[string]string{
	"gfr":                     "egfr",
	"crcl":                    "creatinineclearance",
	"haemoglobin":             "hemoglobin",
	"hgb":                     "hemoglobin",
	"hb":                      "hemoglobin",
	"platelet":                "platelets",
	"plateletcount":           "platelets",
	"plateletscount":          "platelets",
	"plt":                     "platelets",
	"absoluteneutrophilcount": "anc",
	"a1c":                     "hba1c",
	"ldlc":                    "ldl",
}

func labKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	k := b.String()
	if alias, ok := labAliases[k]; ok {
		return alias
	}
	return k
}

func matchLab(text string, _ types.CriterionKind) (params, bool) {
	var p params
	for _, m := range labThreshold.FindAllStringSubmatch(text, -1) {
		// Multiples of the upper limit of normal cannot be compared to raw values.
		if m[4] != "" {
			continue
		}
		v, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		p.labs = append(p.labs, labCondition{name: m[1], op: normalizeOp(m[2]), threshold: v})
	}
	return p, len(p.labs) > 0
}

// lookupLab finds a lab value by normalized name. Keys are visited in sorted
// order so duplicate spellings resolve deterministically.
func lookupLab(values map[string]types.Numeric, name string) (float64, bool) {
	want := labKey(name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if labKey(k) == want {
			return values[k].Float()
		}
	}
	return 0, false
}

func evalLab(p params, kind types.CriterionKind, c types.Candidate) check {
	var fired bool
	var reasons []string
	for _, l := range p.labs {
		v, ok := lookupLab(c.LabValues, l.name)
		if !ok {
			continue
		}
		fired = true
		met := compare(v, l.op, l.threshold)
		cond := fmt.Sprintf("%s %s", l.op, formatNum(l.threshold))
		val := fmt.Sprintf("%s %s", l.name, formatNum(v))
		switch {
		case kind == types.KindExclusion && met:
			return check{fired: true, violated: true, reason: fmt.Sprintf("%s meets exclusion threshold %s", val, cond)}
		case kind == types.KindInclusion && !met:
			return check{fired: true, violated: true, reason: fmt.Sprintf("%s fails inclusion threshold %s", val, cond)}
		case kind == types.KindExclusion:
			reasons = append(reasons, fmt.Sprintf("%s outside exclusion threshold %s", val, cond))
		default:
			reasons = append(reasons, fmt.Sprintf("%s meets inclusion threshold %s", val, cond))
		}
	}
	if !fired {
		return notFired()
	}
	return check{fired: true, reason: strings.Join(reasons, "; ")}
}

// --- polarity ---

var (
	negationCue = regexp.MustCompile(`(?i)\b(?:no|not|without|negative|free\s+of|never|none)\b|n't\b`)

	// comparisonNo removes "no more than" style operators before cues are
	// counted.
	comparisonNo = regexp.MustCompile(`(?i)\bno\s+(?:more|less|greater|fewer|later|earlier)\s+than\b`)
)

// polarity reads how the condition found at text[start:end] is worded. One
// negation cue before it ("No prior", "Not pregnant", "Negative pregnancy
// test") marks it negated. ok is false when the wording is unclear: several
// cues before the condition, or any cue after it.
func polarity(text string, start, end int) (negated, ok bool) {
	before := comparisonNo.ReplaceAllString(text[:start], "")
	after := comparisonNo.ReplaceAllString(text[end:], "")
	if negationCue.MatchString(after) {
		return false, false
	}
	switch len(negationCue.FindAllStringIndex(before, -1)) {
	case 0:
		return false, true
	case 1:
		return true, true
	default:
		return false, false
	}
}

// wantPresent reports whether an eligible candidate has the condition a
// criterion names. Exclusions name what disqualifies; negated wording flips
// either kind.
func wantPresent(kind types.CriterionKind, negated bool) bool {
	return (kind == types.KindInclusion) != negated
}

// checkedList describes the candidate values a keyword rule looked at.
func checkedList(label string, values []string) string {
	if len(values) == 0 {
		return "no " + label + " listed"
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return label + " checked: " + strings.Join(quoted, ", ")
}

// --- keyword_presence ---

var malignancyTerms = regexp.MustCompile(`(?i)\b(?:malignan\w*|cancers?|carcinoma\w*|neoplas\w*|tumou?rs?|lymphoma\w*|leuka?emia\w*|melanoma\w*|sarcoma\w*|myeloma\w*|metasta\w*)\b`)

func matchMalignancy(text string, _ types.CriterionKind) (params, bool) {
	// Treatment criteria name the disease they treat; prior_treatment owns them.
	if priorTreatmentPhrase.MatchString(text) {
		return params{}, false
	}
	loc := malignancyTerms.FindStringIndex(text)
	if loc == nil {
		return params{}, false
	}
	negated, ok := polarity(text, loc[0], loc[1])
	if !ok {
		return params{}, false
	}
	return params{trigger: text[loc[0]:loc[1]], negated: negated}, true
}

// conditions returns the candidate's diagnoses and comorbidities, and whether
// either list was supplied at all.
func conditions(c types.Candidate) ([]string, bool) {
	if c.Diagnoses == nil && c.Comorbidities == nil {
		return nil, false
	}
	out := make([]string, 0, len(c.Diagnoses)+len(c.Comorbidities))
	out = append(out, c.Diagnoses...)
	out = append(out, c.Comorbidities...)
	return out, true
}

func evalMalignancy(p params, kind types.CriterionKind, c types.Candidate) check {
	conds, ok := conditions(c)
	if !ok {
		return notFired()
	}
	want := wantPresent(kind, p.negated)
	for _, d := range conds {
		if malignancyTerms.MatchString(d) {
			return check{fired: true, violated: !want, reason: fmt.Sprintf("Diagnosis %q indicates malignancy", d)}
		}
	}
	return check{fired: true, violated: want,
		reason: fmt.Sprintf("No diagnosis matches %q (%s)", p.trigger, checkedList("conditions", conds))}
}

var (
	priorTreatmentPhrase = regexp.MustCompile(`(?i)\b(?:prior|previous(?:ly)?|received|history\s+of|treated\s+with|exposure\s+to)\b[^.;]*\b(?:treatment|therap\w*|chemotherap\w*|radiotherap\w*|radiation|surgery|transplant\w*)|\b(?:chemotherap\w*|immunotherap\w*|radiotherap\w*|biologic\s+therap\w*)`)

	// specificTherapy lists therapy classes specific enough to look for inside a
	// candidate's treatment history.
	specificTherapy = regexp.MustCompile(`(?i)\b(?:chemotherapy|immunotherapy|radiotherapy|radiation|surgery|transplant|biologic|insulin|steroids?|corticosteroids?|anticoagula\w*)\b`)
)

const minTreatmentLength = 3

func matchPriorTreatment(text string, _ types.CriterionKind) (params, bool) {
	loc := priorTreatmentPhrase.FindStringIndex(text)
	if loc == nil {
		return params{}, false
	}
	negated, ok := polarity(text, loc[0], loc[1])
	if !ok {
		return params{}, false
	}
	var terms []string
	for _, t := range specificTherapy.FindAllString(text, -1) {
		terms = append(terms, strings.ToLower(t))
	}
	return params{text: text, terms: terms, trigger: text[loc[0]:loc[1]], negated: negated}, true
}

// treatmentMatch returns the first treatment named by the criterion text, or
// the first treatment containing one of the criterion's therapy classes.
func treatmentMatch(text string, terms, treatments []string) string {
	lower := strings.ToLower(text)
	for _, t := range treatments {
		lt := strings.ToLower(strings.TrimSpace(t))
		if len(lt) < minTreatmentLength {
			continue
		}
		if strings.Contains(lower, lt) {
			return t
		}
		for _, term := range terms {
			if strings.Contains(lt, term) {
				return t
			}
		}
	}
	return ""
}

func evalPriorTreatment(p params, kind types.CriterionKind, c types.Candidate) check {
	if c.PriorTreatments == nil {
		return notFired()
	}
	want := wantPresent(kind, p.negated)
	if hit := treatmentMatch(p.text, p.terms, c.PriorTreatments); hit != "" {
		return check{fired: true, violated: !want, reason: fmt.Sprintf("Prior treatment %q matches criterion", hit)}
	}
	return check{fired: true, violated: want,
		reason: fmt.Sprintf("No prior treatment matches %q (%s)", p.trigger, checkedList("treatments", c.PriorTreatments))}
}

// --- metadata_flag ---

// flagGroup ties a criterion wording to the metadata keys that record it.
type flagGroup struct {
	pattern *regexp.Regexp
	keys    []string
}

// "nursing" alone also names care settings, so it only counts next to a
// lactation word.
var flagGroups = []flagGroup{
	{
		pattern: regexp.MustCompile(`(?i)\bpregnan\w*`),
		keys:    []string{"pregnant", "pregnancy", "is_pregnant"},
	},
	{
		pattern: regexp.MustCompile(`(?i)\b(?:breast[- ]?feeding|lactat\w*|nursing\s+(?:mothers?|wom[ae]n|infants?)|currently\s+nursing)\b`),
		keys:    []string{"breastfeeding", "breast_feeding", "lactating", "nursing", "is_breastfeeding"},
	},
}

func matchPregnancy(text string, _ types.CriterionKind) (params, bool) {
	var (
		p          params
		start, end = -1, -1
	)
	for _, g := range flagGroups {
		locs := g.pattern.FindAllStringIndex(text, -1)
		if locs == nil {
			continue
		}
		p.keys = append(p.keys, g.keys...)
		if start < 0 || locs[0][0] < start {
			start = locs[0][0]
		}
		if last := locs[len(locs)-1][1]; last > end {
			end = last
		}
	}
	if len(p.keys) == 0 {
		return params{}, false
	}
	negated, ok := polarity(text, start, end)
	if !ok {
		return params{}, false
	}
	p.negated = negated
	return p, true
}

// truthy interprets a flag-like metadata value. ok is false when the value
// cannot be read as a boolean.
func truthy(v any) (value, ok bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
	case int:
		return x != 0, true
	case int64:
		return x != 0, true
	case float64:
		return x != 0, true
	}
	return false, false
}

// lookupFlag finds a metadata key case-insensitively, visiting keys in sorted
// order.
func lookupFlag(meta map[string]any, key string) (any, bool) {
	if v, ok := meta[key]; ok {
		return v, true
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, key) {
			return meta[k], true
		}
	}
	return nil, false
}

func evalMetadataFlag(p params, kind types.CriterionKind, c types.Candidate) check {
	var read, set string
	for _, key := range p.keys {
		raw, ok := lookupFlag(c.Metadata, key)
		if !ok {
			continue
		}
		v, ok := truthy(raw)
		if !ok {
			continue
		}
		if read == "" {
			read = key
		}
		if v {
			set = key
			break
		}
	}
	if read == "" {
		return notFired()
	}
	want := wantPresent(kind, p.negated)
	if set != "" {
		return check{fired: true, violated: !want, reason: fmt.Sprintf("Metadata flag %s is set", set)}
	}
	return check{fired: true, violated: want, reason: fmt.Sprintf("Metadata flag %s is not set", read)}
}

// Package ontology implements the domain-ontology model, YAML/JSON loader,
// and two-phase evaluator (element→term mapping, then term-pair
// relationship discovery), grounded on original_source/domain/ontology.py
// and domain/evaluator.py.
package ontology

import (
	"fmt"
	"regexp"
	"strings"
)

// RuleType selects how a MappingRule decides whether an element matches a
// term.
type RuleType string

const (
	RuleSemantic RuleType = "semantic"
	RuleRegex    RuleType = "regex"
	RuleKeywords RuleType = "keywords"
)

// ConfidenceCalculation selects how a RelationshipRule combines the source
// and target element's individual match confidences into one relationship
// confidence.
type ConfidenceCalculation string

const (
	ConfidenceAverage  ConfidenceCalculation = "average"
	ConfidenceMin      ConfidenceCalculation = "min"
	ConfidenceMax      ConfidenceCalculation = "max"
	ConfidenceWeighted ConfidenceCalculation = "weighted"
)

// RelationshipDirection constrains the relative document_position ordering
// of a candidate source/target pair.
type RelationshipDirection string

const (
	DirectionForward  RelationshipDirection = "forward"
	DirectionBackward RelationshipDirection = "backward"
	DirectionAny      RelationshipDirection = "any"
)

// Settings are ontology-wide defaults.
type Settings struct {
	DefaultConfidenceThreshold float64
	MinMappingConfidence       float64
	MaxRelationshipsPerPair    int
	EnableTransitiveInference  bool
}

// DefaultSettings mirrors DomainSettings' dataclass defaults.
func DefaultSettings() Settings {
	return Settings{
		DefaultConfidenceThreshold: 0.70,
		MinMappingConfidence:       0.50,
		MaxRelationshipsPerPair:    3,
		EnableTransitiveInference:  false,
	}
}

// Term is one named concept in the domain.
type Term struct {
	ID          string
	Label       string
	Description string
	Aliases     []string
}

// AllNames returns the term's label plus all aliases, for phrase-matching
// callers that want every surface form.
func (t Term) AllNames() []string {
	names := make([]string, 0, 1+len(t.Aliases))
	if t.Label != "" {
		names = append(names, t.Label)
	}
	names = append(names, t.Aliases...)
	return names
}

// MappingRule decides whether one element maps to a term.
type MappingRule struct {
	Type                RuleType
	ElementTypes        []string // nil/empty means match any type
	SemanticPhrase      string
	ConfidenceThreshold float64
	Pattern             string
	CaseSensitive       bool
	Keywords            []string
	WordBoundary        bool

	compiled *regexp.Regexp
}

// regexSpecialChars is the heuristic the original used to tell a
// user-supplied filter apart from an exact element-type string: any of
// these characters means "treat as regex", per matches_element_type.
const regexSpecialChars = `.*+?[]{}()^$|\`

// regexPattern lazily compiles and caches the rule's effective regular
// expression: Pattern field for RuleRegex, or a keyword alternation for
// RuleKeywords.
func (r *MappingRule) regexPattern() (*regexp.Regexp, error) {
	if r.compiled != nil {
		return r.compiled, nil
	}
	src := r.Pattern
	if r.Type == RuleKeywords {
		src = keywordsToPattern(r.Keywords, r.WordBoundary)
	}
	flags := ""
	if !r.CaseSensitive {
		flags = "(?i)"
	}
	re, err := regexp.Compile(flags + src)
	if err != nil {
		return nil, fmt.Errorf("ontology: compile pattern %q: %w", src, err)
	}
	r.compiled = re
	return re, nil
}

func keywordsToPattern(keywords []string, wordBoundary bool) string {
	escaped := make([]string, len(keywords))
	for i, k := range keywords {
		escaped[i] = regexp.QuoteMeta(k)
	}
	alt := strings.Join(escaped, "|")
	if wordBoundary {
		return `\b(` + alt + `)\b`
	}
	return `(` + alt + `)`
}

// MatchesElementType reports whether this rule applies to an element of the
// given type. nil/empty ElementTypes matches everything; "*" is an explicit
// wildcard; a pattern containing a regex metacharacter is matched as a
// regex, otherwise as an exact (case-insensitive) string.
func (r *MappingRule) MatchesElementType(elementType string) bool {
	if len(r.ElementTypes) == 0 {
		return true
	}
	for _, pattern := range r.ElementTypes {
		if pattern == "" || pattern == "*" {
			return true
		}
		if strings.ContainsAny(pattern, regexSpecialChars) {
			if re, err := regexp.Compile("(?i)" + pattern); err == nil && re.MatchString(elementType) {
				return true
			}
			continue
		}
		if strings.EqualFold(pattern, elementType) {
			return true
		}
	}
	return false
}

// ElementMapping groups the rules that can map an element to one term.
type ElementMapping struct {
	TermID string
	Rules  []MappingRule
}

// Constraints narrows which candidate element pairs a RelationshipRule
// considers.
type Constraints struct {
	// HierarchyLevel: nil = no constraint (cross-document allowed); -1 =
	// same doc_id; 0 = same immediate parent_id; >=1 = same ancestor at
	// that many hops (requires storage.AncestorResolver).
	HierarchyLevel *int
	Direction      RelationshipDirection
}

// Endpoint is one side (source or target) of a relationship rule.
type Endpoint struct {
	TermID              string
	SemanticPhrase      string
	ConfidenceThreshold float64
	ElementTypes        []string
}

// Confidence configures how a relationship's final confidence is derived
// from its two endpoints' individual match scores.
type Confidence struct {
	Minimum     float64
	Calculation ConfidenceCalculation
	Weights     []float64 // used only when Calculation == ConfidenceWeighted
}

// Calculate combines sourceScore and targetScore per Calculation.
func (c Confidence) Calculate(sourceScore, targetScore float64) float64 {
	switch c.Calculation {
	case ConfidenceMin:
		if sourceScore < targetScore {
			return sourceScore
		}
		return targetScore
	case ConfidenceMax:
		if sourceScore > targetScore {
			return sourceScore
		}
		return targetScore
	case ConfidenceWeighted:
		if len(c.Weights) == 2 {
			total := c.Weights[0] + c.Weights[1]
			if total > 0 {
				return (sourceScore*c.Weights[0] + targetScore*c.Weights[1]) / total
			}
		}
		return (sourceScore + targetScore) / 2
	default: // average
		return (sourceScore + targetScore) / 2
	}
}

// RelationshipRule defines one discoverable relationship type between two
// term-mapped elements.
type RelationshipRule struct {
	ID                string
	RelationshipType  string
	Description       string
	Source            Endpoint
	Target            Endpoint
	Confidence        Confidence
	Constraints       *Constraints
	Bidirectional     bool
}

// Ontology is a complete, validated domain model: terms, the rules that map
// elements to terms, and the rules that discover relationships between
// term-mapped elements.
type Ontology struct {
	Name        string
	Version     string
	Description string
	Settings    Settings
	Terms       []Term
	Mappings    []ElementMapping
	Relations   []RelationshipRule

	termsByID        map[string]Term
	mappingsByTerm   map[string][]MappingRule
	rulesByRelType   map[string][]RelationshipRule
}

// buildLookups populates the derived indexes from Terms/Mappings/Relations.
// Called after construction (New, loader) so the public fields remain the
// source of truth and the indexes are always in sync with them.
func (o *Ontology) buildLookups() {
	o.termsByID = make(map[string]Term, len(o.Terms))
	for _, t := range o.Terms {
		o.termsByID[t.ID] = t
	}

	o.mappingsByTerm = make(map[string][]MappingRule, len(o.Mappings))
	for _, m := range o.Mappings {
		o.mappingsByTerm[m.TermID] = append(o.mappingsByTerm[m.TermID], m.Rules...)
	}

	o.rulesByRelType = make(map[string][]RelationshipRule, len(o.Relations))
	for _, r := range o.Relations {
		o.rulesByRelType[r.RelationshipType] = append(o.rulesByRelType[r.RelationshipType], r)
	}
}

// GetTerm looks up a term by ID.
func (o *Ontology) GetTerm(id string) (Term, bool) {
	t, ok := o.termsByID[id]
	return t, ok
}

// MappingsByTerm returns every term's flattened rule list, keyed by term
// ID, in the shape the evaluator iterates.
func (o *Ontology) MappingsByTerm() map[string][]MappingRule {
	return o.mappingsByTerm
}

// Validate checks internal referential integrity: duplicate term IDs,
// mapping/relationship rules referencing unknown terms, and invalid regex
// patterns. It returns a slice of human-readable issues rather than an
// error, matching the loader's "validate, warn, don't necessarily reject"
// behavior.
func (o *Ontology) Validate() []string {
	var issues []string

	seen := make(map[string]bool, len(o.Terms))
	for _, t := range o.Terms {
		if seen[t.ID] {
			issues = append(issues, fmt.Sprintf("duplicate term id: %s", t.ID))
		}
		seen[t.ID] = true
	}

	for _, m := range o.Mappings {
		if _, ok := o.termsByID[m.TermID]; !ok {
			issues = append(issues, fmt.Sprintf("element mapping references unknown term: %s", m.TermID))
		}
		for i := range m.Rules {
			rule := m.Rules[i]
			if rule.Type == RuleRegex || rule.Type == RuleKeywords {
				if _, err := rule.regexPattern(); err != nil {
					issues = append(issues, fmt.Sprintf("term %s: %v", m.TermID, err))
				}
			}
		}
	}

	for _, r := range o.Relations {
		if _, ok := o.termsByID[r.Source.TermID]; !ok {
			issues = append(issues, fmt.Sprintf("relationship rule %s references unknown source term: %s", r.ID, r.Source.TermID))
		}
		if _, ok := o.termsByID[r.Target.TermID]; !ok {
			issues = append(issues, fmt.Sprintf("relationship rule %s references unknown target term: %s", r.ID, r.Target.TermID))
		}
	}

	return issues
}

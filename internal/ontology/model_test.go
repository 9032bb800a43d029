package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesElementTypeWildcardAndEmpty(t *testing.T) {
	var r MappingRule
	assert.True(t, r.MatchesElementType("paragraph"))

	r.ElementTypes = []string{"*"}
	assert.True(t, r.MatchesElementType("anything"))
}

func TestMatchesElementTypeExact(t *testing.T) {
	r := MappingRule{ElementTypes: []string{"heading"}}
	assert.True(t, r.MatchesElementType("Heading"))
	assert.False(t, r.MatchesElementType("paragraph"))
}

func TestMatchesElementTypeRegexLike(t *testing.T) {
	r := MappingRule{ElementTypes: []string{"table.*"}}
	assert.True(t, r.MatchesElementType("table_cell"))
	assert.False(t, r.MatchesElementType("paragraph"))
}

func TestKeywordsToPatternWordBoundary(t *testing.T) {
	rule := &MappingRule{Type: RuleKeywords, Keywords: []string{"invoice", "total"}, WordBoundary: true}
	re, err := rule.regexPattern()
	require.NoError(t, err)
	assert.True(t, re.MatchString("the invoice amount"))
	assert.False(t, re.MatchString("invoicing system"))
}

func TestConfidenceCalculate(t *testing.T) {
	assert.InDelta(t, 0.75, Confidence{Calculation: ConfidenceAverage}.Calculate(0.8, 0.7), 1e-9)
	assert.InDelta(t, 0.7, Confidence{Calculation: ConfidenceMin}.Calculate(0.8, 0.7), 1e-9)
	assert.InDelta(t, 0.8, Confidence{Calculation: ConfidenceMax}.Calculate(0.8, 0.7), 1e-9)

	weighted := Confidence{Calculation: ConfidenceWeighted, Weights: []float64{3, 1}}
	assert.InDelta(t, 0.775, weighted.Calculate(0.8, 0.7), 1e-9)
}

func TestOntologyValidateCatchesUnknownTermReferences(t *testing.T) {
	ont := &Ontology{
		Terms: []Term{{ID: "invoice"}},
		Mappings: []ElementMapping{
			{TermID: "invoice", Rules: []MappingRule{{Type: RuleKeywords, Keywords: []string{"inv"}}}},
		},
		Relations: []RelationshipRule{
			{ID: "r1", Source: Endpoint{TermID: "invoice"}, Target: Endpoint{TermID: "missing_term"}},
		},
	}
	ont.buildLookups()

	issues := ont.Validate()
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0], "missing_term")
}

func TestOntologyValidateCatchesDuplicateTermIDs(t *testing.T) {
	ont := &Ontology{Terms: []Term{{ID: "invoice"}, {ID: "invoice"}}}
	ont.buildLookups()
	issues := ont.Validate()
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0], "duplicate term id")
}

package ontology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedding returns a fixed vector per phrase/text so similarity is
// deterministic without a real embedding model.
type fakeEmbedding struct {
	vectors map[string][]float32
}

func (f fakeEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func buildInvoiceOntology() *Ontology {
	threshold := 0
	_ = threshold
	ont := &Ontology{
		Name: "finance",
		Terms: []Term{
			{ID: "invoice", Label: "invoice"},
			{ID: "payment", Label: "payment"},
		},
		Mappings: []ElementMapping{
			{TermID: "invoice", Rules: []MappingRule{{Type: RuleKeywords, Keywords: []string{"invoice"}, WordBoundary: true}}},
			{TermID: "payment", Rules: []MappingRule{{Type: RuleKeywords, Keywords: []string{"payment"}, WordBoundary: true}}},
		},
		Relations: []RelationshipRule{
			{
				ID:               "invoice_paid_by_payment",
				RelationshipType: "paid_by",
				Source:           Endpoint{TermID: "invoice", SemanticPhrase: "invoice", ConfidenceThreshold: 0.5},
				Target:           Endpoint{TermID: "payment", SemanticPhrase: "payment", ConfidenceThreshold: 0.5},
				Confidence:       Confidence{Minimum: 0.5, Calculation: ConfidenceAverage},
			},
		},
	}
	ont.buildLookups()
	return ont
}

func TestMapElementToTermsKeywordRule(t *testing.T) {
	ont := buildInvoiceOntology()
	eval := NewEvaluator(ont, nil, nil)

	mappings, err := eval.MapElementToTerms(context.Background(), Element{
		ElementID: "e1", ElementType: "paragraph", Text: "Your invoice is attached.",
	})
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "invoice", mappings[0].TermID)
	assert.Equal(t, 1.0, mappings[0].Confidence)
}

func TestMapElementToTermsNoMatch(t *testing.T) {
	ont := buildInvoiceOntology()
	eval := NewEvaluator(ont, nil, nil)

	mappings, err := eval.MapElementToTerms(context.Background(), Element{
		ElementID: "e1", ElementType: "paragraph", Text: "Nothing relevant here.",
	})
	require.NoError(t, err)
	assert.Empty(t, mappings)
}

func TestDiscoverRelationshipsRequiresEmbeddingProvider(t *testing.T) {
	ont := buildInvoiceOntology()
	eval := NewEvaluator(ont, nil, nil)

	elementsByTerm := map[string][]ElementTermMapping{
		"invoice": {{ElementID: "e1", TermID: "invoice", Confidence: 1}},
		"payment": {{ElementID: "e2", TermID: "payment", Confidence: 1}},
	}
	lookup := map[string]Element{
		"e1": {ElementID: "e1", DocID: "d1", Text: "invoice"},
		"e2": {ElementID: "e2", DocID: "d1", Text: "payment"},
	}

	rels, err := eval.DiscoverRelationships(context.Background(), elementsByTerm, lookup)
	require.NoError(t, err)
	assert.Empty(t, rels, "no embedding provider means semantic relationship rules never fire")
}

func TestDiscoverRelationshipsWithEmbeddingProvider(t *testing.T) {
	ont := buildInvoiceOntology()
	emb := fakeEmbedding{vectors: map[string][]float32{
		"invoice": {1, 0, 0},
		"payment": {0, 1, 0},
	}}
	eval := NewEvaluator(ont, emb, nil)

	elementsByTerm := map[string][]ElementTermMapping{
		"invoice": {{ElementID: "e1", TermID: "invoice", Confidence: 1}},
		"payment": {{ElementID: "e2", TermID: "payment", Confidence: 1}},
	}
	lookup := map[string]Element{
		"e1": {ElementID: "e1", DocID: "d1", Text: "invoice"},
		"e2": {ElementID: "e2", DocID: "d1", Text: "payment"},
	}

	rels, err := eval.DiscoverRelationships(context.Background(), elementsByTerm, lookup)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "e1", rels[0].SourceElementID)
	assert.Equal(t, "e2", rels[0].TargetElementID)
	assert.Equal(t, "finance:paid_by", rels[0].RelationshipType)
}

func TestCheckConstraintsHierarchyLevelZeroRequiresSharedParent(t *testing.T) {
	ont := buildInvoiceOntology()
	eval := NewEvaluator(ont, nil, nil)
	level := 0
	c := &Constraints{HierarchyLevel: &level}

	ok, err := eval.checkConstraints(context.Background(), c, Element{ParentID: "p1"}, Element{ParentID: "p1"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.checkConstraints(context.Background(), c, Element{ParentID: "p1"}, Element{ParentID: "p2"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckConstraintsDirectionForward(t *testing.T) {
	ont := buildInvoiceOntology()
	eval := NewEvaluator(ont, nil, nil)
	c := &Constraints{Direction: DirectionForward}

	ok, err := eval.checkConstraints(context.Background(), c, Element{DocumentPosition: 1}, Element{DocumentPosition: 2})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.checkConstraints(context.Background(), c, Element{DocumentPosition: 2}, Element{DocumentPosition: 1})
	require.NoError(t, err)
	assert.False(t, ok)
}

type fakeAncestors struct {
	chains map[string][]string
}

func (f fakeAncestors) GetAncestors(_ context.Context, elementID string, depth int) ([]string, error) {
	chain := f.chains[elementID]
	if len(chain) > depth {
		return chain[:depth], nil
	}
	return chain, nil
}

func TestCheckConstraintsHierarchyLevelOneUsesAncestorResolver(t *testing.T) {
	ont := buildInvoiceOntology()
	ancestors := fakeAncestors{chains: map[string][]string{
		"e1": {"parent1", "grandparent1"},
		"e2": {"parent2", "grandparent1"},
	}}
	eval := NewEvaluator(ont, nil, ancestors)
	level := 1
	c := &Constraints{HierarchyLevel: &level}

	ok, err := eval.checkConstraints(context.Background(), c, Element{ElementID: "e1"}, Element{ElementID: "e2"})
	require.NoError(t, err)
	assert.False(t, ok, "level 1 compares immediate ancestors, which differ here")

	level = 2
	ok, err = eval.checkConstraints(context.Background(), c, Element{ElementID: "e1"}, Element{ElementID: "e2"})
	require.NoError(t, err)
	assert.True(t, ok, "level 2 compares the shared grandparent")
}

// TestDiscoverRelationshipsForwardDirectionScenario mirrors the literal
// worked example: same-document forward pair at similarities 0.85/0.90
// averaging to 0.875, accepted against a 0.8 rule minimum; the reverse pair
// is not emitted because bidirectional is false.
func TestDiscoverRelationshipsForwardDirectionScenario(t *testing.T) {
	level := -1
	ont := &Ontology{
		Name:  "maintenance",
		Terms: []Term{{ID: "defect"}, {ID: "repair"}},
		Relations: []RelationshipRule{{
			ID:               "defect_fixed_by_repair",
			RelationshipType: "fixed_by",
			Source:           Endpoint{TermID: "defect", SemanticPhrase: "defect", ConfidenceThreshold: 0.5},
			Target:           Endpoint{TermID: "repair", SemanticPhrase: "repair", ConfidenceThreshold: 0.5},
			Confidence:       Confidence{Minimum: 0.8, Calculation: ConfidenceAverage},
			Constraints:      &Constraints{HierarchyLevel: &level, Direction: DirectionForward},
		}},
	}
	ont.buildLookups()

	emb := fakeEmbedding{vectors: map[string][]float32{
		"defect": {1, 0},
		"repair": {0, 1},
		"source": {0.85, 0.52678},  // cos("source","defect") == 0.85
		"target": {0.43589, 0.90}, // cos("target","repair") == 0.90
	}}
	eval := NewEvaluator(ont, emb, nil)

	lookup := map[string]Element{
		"src": {ElementID: "src", DocID: "d1", Text: "source", DocumentPosition: 10},
		"tgt": {ElementID: "tgt", DocID: "d1", Text: "target", DocumentPosition: 20},
	}
	elementsByTerm := map[string][]ElementTermMapping{
		"defect": {{ElementID: "src", TermID: "defect", Confidence: 1}},
		"repair": {{ElementID: "tgt", TermID: "repair", Confidence: 1}},
	}

	rels, err := eval.DiscoverRelationships(context.Background(), elementsByTerm, lookup)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "src", rels[0].SourceElementID)
	assert.Equal(t, "tgt", rels[0].TargetElementID)
	assert.InDelta(t, 0.875, rels[0].Confidence, 0.01)
}

func TestEvaluatorEnforcesDetectorLevelConfidenceFloor(t *testing.T) {
	ont := buildInvoiceOntology()
	ont.Relations[0].Confidence.Minimum = 0.1                                    // rule alone would accept a weak match
	ont.Relations[0].Source.ConfidenceThreshold = 0.5
	ont.Relations[0].Target.ConfidenceThreshold = 0.5

	// Both endpoint similarities land exactly at 0.5 (60-degree angle to
	// their phrase vector): clears each endpoint's own threshold and the
	// rule's 0.1 minimum, but not the detector's 0.6 floor.
	emb := fakeEmbedding{vectors: map[string][]float32{
		"invoice":  {1, 0},
		"payment":  {1, 0},
		"src_text": {0.5, 0.8660254},
		"tgt_text": {0.5, 0.8660254},
	}}
	eval := NewEvaluator(ont, emb, nil).WithMinRelationshipConfidence(0.6)

	elementsByTerm := map[string][]ElementTermMapping{
		"invoice": {{ElementID: "e1", TermID: "invoice", Confidence: 1}},
		"payment": {{ElementID: "e2", TermID: "payment", Confidence: 1}},
	}
	lookup := map[string]Element{
		"e1": {ElementID: "e1", DocID: "d1", Text: "src_text"},
		"e2": {ElementID: "e2", DocID: "d1", Text: "tgt_text"},
	}

	rels, err := eval.DiscoverRelationships(context.Background(), elementsByTerm, lookup)
	require.NoError(t, err)
	assert.Empty(t, rels, "detector-level floor rejects the pair even though the rule's own minimum would accept it")
}

package ontology

import (
	"context"
	"math"

	"corpusforge.dev/internal/storage"
)

// Element is the minimal view of a parsed document element the evaluator
// needs: enough to run mapping rules and hierarchy/direction constraints
// without depending on the full storage.Element shape.
type Element struct {
	ElementPK        int64
	ElementID        string
	DocID            string
	ElementType      string
	Text             string
	ParentID         string
	DocumentPosition int
}

// EmbeddingProvider computes a vector for arbitrary text. Semantic mapping
// rules and semantic relationship endpoints both need one; a nil provider
// simply disables semantic rules (regex/keyword rules still evaluate).
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ElementTermMapping is one element→term match the evaluator produced.
type ElementTermMapping struct {
	ElementPK   int64
	ElementID   string
	TermID      string
	Domain      string
	Confidence  float64
	MappingRule string
}

// Relationship is one discovered relationship between two term-mapped
// elements.
type Relationship struct {
	SourceElementID  string
	TargetElementID  string
	RelationshipType string
	Domain           string
	Confidence       float64
	SourceTerm       string
	TargetTerm       string
	Metadata         map[string]any
}

// defaultMinRelationshipConfidence is the detector-level floor applied on
// top of each rule's own confidence.minimum.
const defaultMinRelationshipConfidence = 0.6

// Evaluator runs the two-phase ontology evaluation: element→term mapping,
// then relationship discovery across the mapped elements, grounded on
// domain/evaluator.py's OntologyEvaluator.
type Evaluator struct {
	ontology  *Ontology
	embedding EmbeddingProvider
	ancestors storage.AncestorResolver // nil disables hierarchy_level >= 1 constraints

	minRelationshipConfidence float64
	phraseEmbeddings          map[string][]float32
}

// NewEvaluator builds an Evaluator for one ontology. ancestors may be nil if
// the caller never needs hierarchy_level >= 1 constraints; hierarchy_level
// 0 and -1 work without it.
func NewEvaluator(ont *Ontology, embedding EmbeddingProvider, ancestors storage.AncestorResolver) *Evaluator {
	return &Evaluator{
		ontology:                  ont,
		embedding:                 embedding,
		ancestors:                 ancestors,
		minRelationshipConfidence: defaultMinRelationshipConfidence,
		phraseEmbeddings:          make(map[string][]float32),
	}
}

// WithMinRelationshipConfidence overrides the detector-level confidence
// floor (default 0.6) applied in addition to each rule's own minimum.
func (e *Evaluator) WithMinRelationshipConfidence(min float64) *Evaluator {
	e.minRelationshipConfidence = min
	return e
}

// MapElementToTerms evaluates every mapping rule, across every term,
// against one element. An element may map to multiple terms if more than
// one rule fires.
func (e *Evaluator) MapElementToTerms(ctx context.Context, el Element) ([]ElementTermMapping, error) {
	var out []ElementTermMapping
	for termID, rules := range e.ontology.MappingsByTerm() {
		for i := range rules {
			rule := &rules[i]
			if !rule.MatchesElementType(el.ElementType) {
				continue
			}
			confidence, matched, err := e.evaluateMappingRule(ctx, rule, el)
			if err != nil {
				return nil, err
			}
			if !matched {
				continue
			}
			if confidence < e.ontology.Settings.MinMappingConfidence {
				continue
			}
			out = append(out, ElementTermMapping{
				ElementPK:   el.ElementPK,
				ElementID:   el.ElementID,
				TermID:      termID,
				Domain:      e.ontology.Name,
				Confidence:  confidence,
				MappingRule: string(rule.Type),
			})
		}
	}
	return out, nil
}

func (e *Evaluator) evaluateMappingRule(ctx context.Context, rule *MappingRule, el Element) (float64, bool, error) {
	switch rule.Type {
	case RuleSemantic:
		if e.embedding == nil {
			return 0, false, nil
		}
		elementVec, err := e.embedding.Embed(ctx, el.Text)
		if err != nil {
			return 0, false, err
		}
		phraseVec, err := e.phraseEmbedding(ctx, rule.SemanticPhrase)
		if err != nil {
			return 0, false, err
		}
		similarity := cosineSimilarity(elementVec, phraseVec)
		threshold := rule.ConfidenceThreshold
		if threshold == 0 {
			threshold = e.ontology.Settings.DefaultConfidenceThreshold
		}
		return similarity, similarity >= threshold, nil

	case RuleRegex, RuleKeywords:
		re, err := rule.regexPattern()
		if err != nil {
			return 0, false, err
		}
		return 1.0, re.MatchString(el.Text), nil

	default:
		return 0, false, nil
	}
}

func (e *Evaluator) phraseEmbedding(ctx context.Context, phrase string) ([]float32, error) {
	if v, ok := e.phraseEmbeddings[phrase]; ok {
		return v, nil
	}
	v, err := e.embedding.Embed(ctx, phrase)
	if err != nil {
		return nil, err
	}
	e.phraseEmbeddings[phrase] = v
	return v, nil
}

// termMatch is one term-mapped element and its mapping confidence, as
// grouped by term ID for relationship discovery.
type termMatch struct {
	el         Element
	confidence float64
}

// DiscoverRelationships forms candidate pairs from every (source term,
// target term) combination named by a relationship rule, filters by
// hierarchy/direction constraints, and evaluates confidence for the
// survivors. elementsByTerm maps term ID to the elements (with their
// mapping confidence) that MapElementToTerms assigned to that term.
func (e *Evaluator) DiscoverRelationships(ctx context.Context, elementsByTerm map[string][]ElementTermMapping, lookup map[string]Element) ([]Relationship, error) {
	byTerm := make(map[string][]termMatch, len(elementsByTerm))
	for termID, mappings := range elementsByTerm {
		for _, m := range mappings {
			if el, ok := lookup[m.ElementID]; ok {
				byTerm[termID] = append(byTerm[termID], termMatch{el: el, confidence: m.Confidence})
			}
		}
	}

	var out []Relationship
	for _, rule := range e.ontology.Relations {
		sources := byTerm[rule.Source.TermID]
		targets := byTerm[rule.Target.TermID]
		for _, s := range sources {
			for _, t := range targets {
				if s.el.ElementID == t.el.ElementID {
					continue
				}
				ok, err := e.checkConstraints(ctx, rule.Constraints, s.el, t.el)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				rel, matched, err := e.evaluateRelationshipRule(ctx, rule, s, t)
				if err != nil {
					return nil, err
				}
				if !matched {
					continue
				}
				out = append(out, rel)
				if rule.Bidirectional {
					reverse := rel
					reverse.SourceElementID, reverse.TargetElementID = rel.TargetElementID, rel.SourceElementID
					reverse.SourceTerm, reverse.TargetTerm = rel.TargetTerm, rel.SourceTerm
					if reverse.Metadata == nil {
						reverse.Metadata = map[string]any{}
					}
					reverse.Metadata["bidirectional"] = true
					out = append(out, reverse)
				}
			}
		}
	}
	return out, nil
}

func (e *Evaluator) evaluateRelationshipRule(ctx context.Context, rule RelationshipRule, s, t termMatch) (Relationship, bool, error) {
	if e.embedding == nil {
		return Relationship{}, false, nil
	}

	sourceVec, err := e.embedding.Embed(ctx, s.el.Text)
	if err != nil {
		return Relationship{}, false, err
	}
	targetVec, err := e.embedding.Embed(ctx, t.el.Text)
	if err != nil {
		return Relationship{}, false, err
	}

	sourcePhrase, err := e.phraseEmbedding(ctx, rule.Source.SemanticPhrase)
	if err != nil {
		return Relationship{}, false, err
	}
	targetPhrase, err := e.phraseEmbedding(ctx, rule.Target.SemanticPhrase)
	if err != nil {
		return Relationship{}, false, err
	}

	sourceSimilarity := cosineSimilarity(sourceVec, sourcePhrase)
	targetSimilarity := cosineSimilarity(targetVec, targetPhrase)

	if sourceSimilarity < rule.Source.ConfidenceThreshold || targetSimilarity < rule.Target.ConfidenceThreshold {
		return Relationship{}, false, nil
	}

	confidence := rule.Confidence.Calculate(sourceSimilarity, targetSimilarity)
	if confidence < rule.Confidence.Minimum || confidence < e.minRelationshipConfidence {
		return Relationship{}, false, nil
	}

	return Relationship{
		SourceElementID:  s.el.ElementID,
		TargetElementID:  t.el.ElementID,
		RelationshipType: e.ontology.Name + ":" + rule.RelationshipType,
		Domain:           e.ontology.Name,
		Confidence:       confidence,
		SourceTerm:       rule.Source.TermID,
		TargetTerm:       rule.Target.TermID,
		Metadata: map[string]any{
			"rule_id":                   rule.ID,
			"source_similarity":         sourceSimilarity,
			"target_similarity":         targetSimilarity,
			"source_mapping_confidence": s.confidence,
			"target_mapping_confidence": t.confidence,
		},
	}, true, nil
}

// checkConstraints applies hierarchy and direction constraints. Hierarchy
// level -1 means same document; 0 means same immediate parent; >=1 means
// same ancestor n hops up, which requires the AncestorResolver. A nil
// Constraints, or a nil HierarchyLevel, means no hierarchy constraint at
// all (cross-document relationships allowed).
func (e *Evaluator) checkConstraints(ctx context.Context, c *Constraints, s, t Element) (bool, error) {
	if c == nil {
		return true, nil
	}

	if c.HierarchyLevel != nil {
		level := *c.HierarchyLevel
		switch {
		case level == -1:
			if s.DocID != t.DocID {
				return false, nil
			}
		case level == 0:
			if s.ParentID == "" || s.ParentID != t.ParentID {
				return false, nil
			}
		case level >= 1:
			ok, err := e.sharedAncestor(ctx, s, t, level)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}

	switch c.Direction {
	case DirectionForward:
		if s.DocumentPosition >= t.DocumentPosition {
			return false, nil
		}
	case DirectionBackward:
		if s.DocumentPosition <= t.DocumentPosition {
			return false, nil
		}
	}

	return true, nil
}

// sharedAncestor resolves whether s and t share an ancestor exactly `level`
// hops up. Level 0 is answered directly from ParentID (already handled by
// the caller); level >= 1 requires walking storage, which is the OPEN
// design point the reference evaluator left as a TODO.
func (e *Evaluator) sharedAncestor(ctx context.Context, s, t Element, level int) (bool, error) {
	if e.ancestors == nil {
		return false, nil
	}
	sAncestors, err := e.ancestors.GetAncestors(ctx, s.ElementID, level)
	if err != nil {
		return false, err
	}
	tAncestors, err := e.ancestors.GetAncestors(ctx, t.ElementID, level)
	if err != nil {
		return false, err
	}
	if len(sAncestors) < level || len(tAncestors) < level {
		return false, nil
	}
	return sAncestors[level-1] == tAncestors[level-1], nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

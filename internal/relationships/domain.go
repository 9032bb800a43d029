package relationships

import (
	"context"

	"corpusforge.dev/internal/metrics"
	"corpusforge.dev/internal/ontology"
	"corpusforge.dev/internal/storage"
)

// DomainRelationshipDetector maps elements to ontology terms and discovers
// term-pair relationships for every active ontology, grounded on
// relationships/domain.py:DomainRelationshipDetector. One Evaluator is built
// per ontology and cached for reuse across documents.
type DomainRelationshipDetector struct {
	ontologies []*ontology.Ontology
	embedding  ontology.EmbeddingProvider
	ancestors  storage.AncestorResolver
	metrics    *metrics.Metrics

	evaluators map[string]*ontology.Evaluator
}

func NewDomainRelationshipDetector(ontologies []*ontology.Ontology, embedding ontology.EmbeddingProvider, ancestors storage.AncestorResolver) *DomainRelationshipDetector {
	return &DomainRelationshipDetector{
		ontologies: ontologies,
		embedding:  embedding,
		ancestors:  ancestors,
		evaluators: make(map[string]*ontology.Evaluator, len(ontologies)),
	}
}

// WithMetrics reports element-term-mapping and relationship-discovery
// counts to m, returning the detector for chaining at construction time.
func (d *DomainRelationshipDetector) WithMetrics(m *metrics.Metrics) *DomainRelationshipDetector {
	d.metrics = m
	return d
}

func (d *DomainRelationshipDetector) evaluatorFor(ont *ontology.Ontology) *ontology.Evaluator {
	if eval, ok := d.evaluators[ont.Name]; ok {
		return eval
	}
	eval := ontology.NewEvaluator(ont, d.embedding, d.ancestors)
	d.evaluators[ont.Name] = eval
	return eval
}

func (d *DomainRelationshipDetector) DetectRelationships(ctx context.Context, _ storage.Document, elements []Element, _ []Link) ([]Relationship, error) {
	if len(elements) == 0 || len(d.ontologies) == 0 {
		return nil, nil
	}

	lookup := make(map[string]ontology.Element, len(elements))
	for _, el := range elements {
		lookup[el.ElementID] = ontology.Element{
			ElementID:        el.ElementID,
			DocID:            el.DocID,
			ElementType:      el.ElementType,
			Text:             el.Text,
			ParentID:         el.ParentID,
			DocumentPosition: el.DocumentPosition,
		}
	}

	var out []Relationship
	for _, ont := range d.ontologies {
		eval := d.evaluatorFor(ont)

		elementsByTerm := make(map[string][]ontology.ElementTermMapping)
		for _, el := range elements {
			mappings, err := eval.MapElementToTerms(ctx, lookup[el.ElementID])
			if err != nil {
				return nil, err
			}
			for _, m := range mappings {
				elementsByTerm[m.TermID] = append(elementsByTerm[m.TermID], m)
			}
			if d.metrics != nil && len(mappings) > 0 {
				d.metrics.ElementTermMappings.Add(float64(len(mappings)))
			}
		}
		if len(elementsByTerm) == 0 {
			continue
		}

		rels, err := eval.DiscoverRelationships(ctx, elementsByTerm, lookup)
		if err != nil {
			return nil, err
		}
		if d.metrics != nil && len(rels) > 0 {
			d.metrics.DomainRelationships.Add(float64(len(rels)))
		}
		for _, r := range rels {
			out = append(out, Relationship{
				SourceElementID:  r.SourceElementID,
				TargetElementID:  r.TargetElementID,
				RelationshipType: r.RelationshipType,
				Domain:           r.Domain,
				Confidence:       r.Confidence,
				Metadata:         r.Metadata,
			})
		}
	}
	return out, nil
}

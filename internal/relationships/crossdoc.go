package relationships

import (
	"context"
	"fmt"

	"corpusforge.dev/internal/storage"
)

// CrossDocumentContainerDetector discovers "related_to" relationships
// between elements in different documents within a completed run, using
// embedding similarity over each document's elements. It is run once per
// run, after the worker pool reaches quiescence, per spec.md §4.5 step 5 —
// "compute cross-document container relationships" — not per-document like
// the other detectors in this package, so it implements
// coordinator.PostProcessor rather than Detector.
type CrossDocumentContainerDetector struct {
	backend   storage.Backend
	threshold float64
	perDoc    int
}

// defaultCrossDocThreshold is the similarity floor below which two elements
// from different documents are not considered related.
const defaultCrossDocThreshold = 0.75

// defaultCrossDocPerDoc caps how many of a document's elements seed a
// similarity search, so post-processing stays proportional to run size.
const defaultCrossDocPerDoc = 20

func NewCrossDocumentContainerDetector(backend storage.Backend) *CrossDocumentContainerDetector {
	return &CrossDocumentContainerDetector{
		backend:   backend,
		threshold: defaultCrossDocThreshold,
		perDoc:    defaultCrossDocPerDoc,
	}
}

// ProcessCompletedRun implements coordinator.PostProcessor.
func (d *CrossDocumentContainerDetector) ProcessCompletedRun(ctx context.Context, _ string, docIDs []string) error {
	if len(docIDs) < 2 {
		return nil
	}

	docOf := make(map[string]string)
	var rels []storage.Relationship

	for _, docID := range docIDs {
		elements, err := d.backend.GetDocumentElements(ctx, docID)
		if err != nil {
			return fmt.Errorf("relationships: get elements for %s: %w", docID, err)
		}
		for i, el := range elements {
			if i >= d.perDoc {
				break
			}
			docOf[el.ElementID] = docID

			emb, err := d.backend.GetEmbedding(ctx, el.ElementID)
			if err != nil {
				continue // no embedding stored for this element; skip it
			}

			results, err := d.backend.SearchByEmbedding(ctx, emb.Vector, d.perDoc)
			if err != nil {
				return fmt.Errorf("relationships: search by embedding: %w", err)
			}
			for _, r := range results {
				if r.ElementID == el.ElementID || r.Score < d.threshold {
					continue
				}
				target, err := d.backend.GetElement(ctx, r.ElementID)
				if err != nil || target.DocID == docID {
					continue // same document: structural/domain detectors already cover it
				}
				rels = append(rels, storage.Relationship{
					SourceElementID:  el.ElementID,
					TargetElementID:  r.ElementID,
					RelationshipType: "related_to",
					Domain:           "cross_document",
					Confidence:       r.Score,
					Metadata:         map[string]any{"container_source_doc": docID, "container_target_doc": target.DocID},
				})
			}
		}
	}

	if len(rels) == 0 {
		return nil
	}
	return d.backend.StoreRelationships(ctx, rels)
}

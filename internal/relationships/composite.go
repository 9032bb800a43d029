package relationships

import (
	"context"
	"fmt"

	"corpusforge.dev/internal/storage"
)

// CompositeDetector runs a fixed pipeline of sub-detectors in order —
// explicit links, structural, domain — and concatenates their results,
// matching create_relationship_detector's CompositeRelationshipDetector
// assembly and spec.md §4.4 step 6.
type CompositeDetector struct {
	detectors []Detector
}

// NewCompositeDetector builds a composite from an explicit ordered list of
// sub-detectors. Order matters only for result ordering, not correctness:
// each sub-detector only reads its own inputs.
func NewCompositeDetector(detectors ...Detector) *CompositeDetector {
	return &CompositeDetector{detectors: detectors}
}

func (c *CompositeDetector) DetectRelationships(ctx context.Context, doc storage.Document, elements []Element, links []Link) ([]Relationship, error) {
	var out []Relationship
	for i, d := range c.detectors {
		rels, err := d.DetectRelationships(ctx, doc, elements, links)
		if err != nil {
			return nil, fmt.Errorf("relationships: detector %d: %w", i, err)
		}
		out = append(out, rels...)
	}
	return out, nil
}

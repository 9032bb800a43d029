package relationships

import (
	"context"

	"corpusforge.dev/internal/storage"
)

// ExplicitLinkDetector turns the parser's already-extracted links into
// relationships, always enabled per create_relationship_detector's comment
// that explicit links are handled unconditionally.
type ExplicitLinkDetector struct{}

func NewExplicitLinkDetector() *ExplicitLinkDetector {
	return &ExplicitLinkDetector{}
}

func (d *ExplicitLinkDetector) DetectRelationships(_ context.Context, _ storage.Document, _ []Element, links []Link) ([]Relationship, error) {
	out := make([]Relationship, 0, len(links))
	for _, l := range links {
		relType := l.LinkType
		if relType == "" {
			relType = "links_to"
		}
		out = append(out, Relationship{
			SourceElementID:  l.SourceElementID,
			TargetElementID:  l.TargetElementID,
			RelationshipType: relType,
			Confidence:       1.0,
		})
	}
	return out, nil
}

package relationships

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpusforge.dev/internal/storage"
)

func TestExplicitLinkDetectorDefaultsLinkType(t *testing.T) {
	d := NewExplicitLinkDetector()
	rels, err := d.DetectRelationships(context.Background(), storage.Document{}, nil, []Link{
		{SourceElementID: "e1", TargetElementID: "e2"},
	})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "links_to", rels[0].RelationshipType)
}

func TestStructuralDetectorEmitsContainsAndPrecedes(t *testing.T) {
	d := NewStructuralRelationshipDetector()
	elements := []Element{
		{ElementID: "root", DocumentPosition: 0},
		{ElementID: "a", ParentID: "root", DocumentPosition: 1},
		{ElementID: "b", ParentID: "root", DocumentPosition: 2},
	}
	rels, err := d.DetectRelationships(context.Background(), storage.Document{}, elements, nil)
	require.NoError(t, err)

	var contains, precedes int
	for _, r := range rels {
		switch r.RelationshipType {
		case "contains":
			contains++
		case "precedes":
			precedes++
			assert.Equal(t, "a", r.SourceElementID)
			assert.Equal(t, "b", r.TargetElementID)
		}
	}
	assert.Equal(t, 2, contains)
	assert.Equal(t, 1, precedes)
}

func TestStructuralDetectorSkipsParentOutsideBatch(t *testing.T) {
	d := NewStructuralRelationshipDetector()
	elements := []Element{
		{ElementID: "a", ParentID: "missing-parent", DocumentPosition: 1},
	}
	rels, err := d.DetectRelationships(context.Background(), storage.Document{}, elements, nil)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

type stubDetector struct {
	rels []Relationship
	err  error
}

func (s stubDetector) DetectRelationships(context.Context, storage.Document, []Element, []Link) ([]Relationship, error) {
	return s.rels, s.err
}

func TestCompositeDetectorConcatenatesInOrder(t *testing.T) {
	c := NewCompositeDetector(
		stubDetector{rels: []Relationship{{RelationshipType: "first"}}},
		stubDetector{rels: []Relationship{{RelationshipType: "second"}}},
	)
	rels, err := c.DetectRelationships(context.Background(), storage.Document{}, nil, nil)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Equal(t, "first", rels[0].RelationshipType)
	assert.Equal(t, "second", rels[1].RelationshipType)
}

func TestCompositeDetectorWrapsSubDetectorError(t *testing.T) {
	c := NewCompositeDetector(stubDetector{err: assertError{}})
	_, err := c.DetectRelationships(context.Background(), storage.Document{}, nil, nil)
	assert.Error(t, err)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

package relationships

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpusforge.dev/internal/storage"
	"corpusforge.dev/internal/storage/storagetest"
)

func seedElement(t *testing.T, backend *storagetest.Backend, docID, elementID string, vector []float32) {
	t.Helper()
	require.NoError(t, backend.StoreDocument(context.Background(),
		storage.Document{DocID: docID},
		[]storage.Element{{ElementID: elementID, DocID: docID, DocumentPosition: 0}},
		nil, nil))
	require.NoError(t, backend.StoreEmbedding(context.Background(), storage.Embedding{ElementID: elementID, Vector: vector}))
}

func TestCrossDocumentContainerDetectorFindsSimilarElementsAcrossDocs(t *testing.T) {
	backend := storagetest.New()
	seedElement(t, backend, "doc-a", "doc-a#0", []float32{1, 0, 0})
	seedElement(t, backend, "doc-b", "doc-b#0", []float32{1, 0, 0})

	d := NewCrossDocumentContainerDetector(backend)
	err := d.ProcessCompletedRun(context.Background(), "run1", []string{"doc-a", "doc-b"})
	require.NoError(t, err)

	rels, err := backend.GetDocumentRelationships(context.Background(), "doc-a")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "related_to", rels[0].RelationshipType)
	assert.Equal(t, "cross_document", rels[0].Domain)
	assert.Equal(t, "doc-b#0", rels[0].TargetElementID)
}

func TestCrossDocumentContainerDetectorSkipsSameDocumentMatches(t *testing.T) {
	backend := storagetest.New()
	require.NoError(t, backend.StoreDocument(context.Background(),
		storage.Document{DocID: "doc-a"},
		[]storage.Element{
			{ElementID: "doc-a#0", DocID: "doc-a", DocumentPosition: 0},
			{ElementID: "doc-a#1", DocID: "doc-a", DocumentPosition: 1},
		}, nil, nil))
	require.NoError(t, backend.StoreEmbedding(context.Background(), storage.Embedding{ElementID: "doc-a#0", Vector: []float32{1, 0, 0}}))
	require.NoError(t, backend.StoreEmbedding(context.Background(), storage.Embedding{ElementID: "doc-a#1", Vector: []float32{1, 0, 0}}))
	seedElement(t, backend, "doc-b", "doc-b#0", []float32{0, 1, 0})

	d := NewCrossDocumentContainerDetector(backend)
	err := d.ProcessCompletedRun(context.Background(), "run1", []string{"doc-a", "doc-b"})
	require.NoError(t, err)

	rels, err := backend.GetDocumentRelationships(context.Background(), "doc-a")
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestCrossDocumentContainerDetectorSkipsLowSimilarity(t *testing.T) {
	backend := storagetest.New()
	seedElement(t, backend, "doc-a", "doc-a#0", []float32{1, 0, 0})
	seedElement(t, backend, "doc-b", "doc-b#0", []float32{0, 1, 0})

	d := NewCrossDocumentContainerDetector(backend)
	err := d.ProcessCompletedRun(context.Background(), "run1", []string{"doc-a", "doc-b"})
	require.NoError(t, err)

	rels, err := backend.GetDocumentRelationships(context.Background(), "doc-a")
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestCrossDocumentContainerDetectorSingleDocNoop(t *testing.T) {
	backend := storagetest.New()
	seedElement(t, backend, "doc-a", "doc-a#0", []float32{1, 0, 0})

	d := NewCrossDocumentContainerDetector(backend)
	err := d.ProcessCompletedRun(context.Background(), "run1", []string{"doc-a"})
	require.NoError(t, err)
}

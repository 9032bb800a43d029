package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpusforge.dev/internal/contentsource"
	"corpusforge.dev/internal/runqueue"
	"corpusforge.dev/internal/storage"
	"corpusforge.dev/internal/storage/storagetest"
)

// fakeSource is a minimal contentsource.Source double for the pieces of
// Processor that only need the interface, not a live content system.
type fakeSource struct {
	changed     bool
	changedErr  error
	followCalls int
}

func (f *fakeSource) List(ctx context.Context) ([]contentsource.DocumentInfo, error) { return nil, nil }
func (f *fakeSource) Fetch(ctx context.Context, id string) (contentsource.FetchedDocument, error) {
	return contentsource.FetchedDocument{}, nil
}
func (f *fakeSource) HasChanged(ctx context.Context, id string, lastModified time.Time) (bool, error) {
	return f.changed, f.changedErr
}
func (f *fakeSource) FollowLinks(ctx context.Context, content []byte, sourceID string, currentDepth int, visited map[string]bool) ([]contentsource.LinkedDocument, error) {
	f.followCalls++
	return nil, nil
}

func TestChangeIsNoopWithNoPriorHistory(t *testing.T) {
	p := &Processor{backend: storagetest.New()}
	noop, err := p.changeIsNoop(context.Background(), &fakeSource{}, &runqueue.ClaimedDocument{DocID: "doc1"}, contentsource.FetchedDocument{ContentHash: "abc"})
	require.NoError(t, err)
	assert.False(t, noop)
}

func TestChangeIsNoopMatchesOnContentHash(t *testing.T) {
	backend := storagetest.New()
	require.NoError(t, backend.UpdateProcessingHistory(context.Background(), "doc1", "samehash"))
	p := &Processor{backend: backend}

	noop, err := p.changeIsNoop(context.Background(), &fakeSource{}, &runqueue.ClaimedDocument{DocID: "doc1"}, contentsource.FetchedDocument{ContentHash: "samehash"})
	require.NoError(t, err)
	assert.True(t, noop)
}

func TestChangeIsNoopFallsBackToHasChanged(t *testing.T) {
	backend := storagetest.New()
	require.NoError(t, backend.UpdateProcessingHistory(context.Background(), "doc1", "oldhash"))
	p := &Processor{backend: backend}

	source := &fakeSource{changed: false}
	noop, err := p.changeIsNoop(context.Background(), source, &runqueue.ClaimedDocument{DocID: "doc1"}, contentsource.FetchedDocument{ContentHash: "newhash"})
	require.NoError(t, err)
	assert.True(t, noop)

	source.changed = true
	noop, err = p.changeIsNoop(context.Background(), source, &runqueue.ClaimedDocument{DocID: "doc1"}, contentsource.FetchedDocument{ContentHash: "newhash"})
	require.NoError(t, err)
	assert.False(t, noop)
}

func TestParseDispatchesByContentType(t *testing.T) {
	p := &Processor{}
	parsed, err := p.parse(context.Background(), "doc1", "text/markdown", []byte("# Heading\n\nBody."))
	require.NoError(t, err)
	assert.NotEmpty(t, parsed.Elements)
}

func TestDiscoverLinksSkipsWhenDepthExhausted(t *testing.T) {
	p := &Processor{}
	source := &fakeSource{}
	item := &runqueue.ClaimedDocument{LinkDepth: 1, Metadata: map[string]any{"max_link_depth": 1}}

	err := p.discoverLinks(context.Background(), item, source, []byte("content"))
	require.NoError(t, err)
	assert.Equal(t, 0, source.followCalls)
}

func TestDiscoverLinksUsesDefaultDepthWhenMetadataMissing(t *testing.T) {
	p := &Processor{}
	source := &fakeSource{}
	item := &runqueue.ClaimedDocument{LinkDepth: defaultMaxLinkDepth}

	err := p.discoverLinks(context.Background(), item, source, []byte("content"))
	require.NoError(t, err)
	assert.Equal(t, 0, source.followCalls)
}

var _ storage.Backend = storagetest.New()

package contentsource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	reg := NewRegistry()
	src, err := New(Config{Type: TypeFile, Settings: map[string]any{"base_path": t.TempDir()}})
	require.NoError(t, err)

	require.NoError(t, reg.Register("docs", src))
	assert.Error(t, reg.Register("docs", src))

	got, ok := reg.Get("docs")
	assert.True(t, ok)
	assert.Equal(t, src, got)
}

func TestFactoryStubTypesReturnNotImplemented(t *testing.T) {
	for _, typ := range []SourceType{TypeDatabase, TypeWeb, TypeConfluence, TypeJira, TypeS3, TypeServiceNow, TypeMongoDB, TypeSharePoint, TypeGoogleDrive} {
		src, err := New(Config{Type: typ})
		require.NoError(t, err)

		_, fetchErr := src.Fetch(context.Background(), "anything")
		assert.True(t, errors.Is(fetchErr, ErrSourceNotImplemented), "type %s", typ)
	}
}

func TestFactoryUnknownTypeErrors(t *testing.T) {
	_, err := New(Config{Type: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestFileSourceFetchAndHasChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# hello"), 0o644))

	src, err := New(Config{Type: TypeFile, Settings: map[string]any{"base_path": dir}})
	require.NoError(t, err)

	doc, err := src.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("# hello"), doc.Content)
	assert.NotEmpty(t, doc.ContentHash)

	changed, err := src.HasChanged(context.Background(), path, time.Time{})
	require.NoError(t, err)
	assert.True(t, changed, "zero baseline always counts as changed")

	future := time.Now().Add(time.Hour)
	changed, err = src.HasChanged(context.Background(), path, future)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestFileSourceFetchMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	src, err := New(Config{Type: TypeFile, Settings: map[string]any{"base_path": dir}})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), filepath.Join(dir, "missing.md"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileSourceListRespectsExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))

	fs := NewFileSourceFromConfig(FileSourceConfig{BasePath: dir, Extensions: []string{".md"}, Recursive: true})
	docs, err := fs.List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, filepath.Join(dir, "a.md"), docs[0].ID)
}

func TestFileSourceFollowLinksFindsRelativeMarkdownLinks(t *testing.T) {
	dir := t.TempDir()
	parent := filepath.Join(dir, "parent.md")
	child := filepath.Join(dir, "child.md")
	require.NoError(t, os.WriteFile(child, []byte("child"), 0o644))
	content := []byte("see [child](child.md) and [external](https://example.com)")
	require.NoError(t, os.WriteFile(parent, content, 0o644))

	fs := NewFileSourceFromConfig(FileSourceConfig{BasePath: dir, Recursive: true})
	links, err := fs.FollowLinks(context.Background(), content, parent, 0, map[string]bool{})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, child, links[0].ID)
}

func TestBuildAndExtractDatabaseID(t *testing.T) {
	id := BuildDatabaseID("host/db", "SELECT * FROM docs", "id", "42", "content")
	assert.True(t, IsDatabaseID(id))
	assert.Equal(t, "42", ExtractRowID(id))
}

func TestBuildDatabaseJSONID(t *testing.T) {
	id := BuildDatabaseJSONID("host/db", "SELECT * FROM docs", "id", "42", []string{"a", "b", "c", "d"})
	assert.Contains(t, id, "_plus_1_more")
	assert.Contains(t, id, "/json")
	assert.Equal(t, "42", ExtractRowID(id))
}

func TestExtractRowIDPassesThroughBareIDs(t *testing.T) {
	assert.Equal(t, "plain-id", ExtractRowID("plain-id"))
}

package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownParserHeadingsAndParagraphs(t *testing.T) {
	p := NewMarkdownParser()
	content := "# Title\n\nIntro paragraph.\n\n## Section\n\nBody text here."

	doc, err := p.Parse(context.Background(), "doc1", []byte(content))
	require.NoError(t, err)
	require.Len(t, doc.Elements, 4)

	assert.Equal(t, "heading_1", doc.Elements[0].ElementType)
	assert.Equal(t, "Title", doc.Elements[0].ContentPreview)
	assert.Empty(t, doc.Elements[0].ParentID)

	assert.Equal(t, "paragraph", doc.Elements[1].ElementType)
	assert.Equal(t, doc.Elements[0].ElementID, doc.Elements[1].ParentID)

	assert.Equal(t, "heading_2", doc.Elements[2].ElementType)
	assert.Equal(t, "paragraph", doc.Elements[3].ElementType)
	assert.Equal(t, doc.Elements[2].ElementID, doc.Elements[3].ParentID)
}

func TestMarkdownParserExtractsInternalLinksOnly(t *testing.T) {
	p := NewMarkdownParser()
	content := "See [other doc](other-doc.md) for details, not [external](https://example.com/x) or [anchor](#section)."

	doc, err := p.Parse(context.Background(), "doc1", []byte(content))
	require.NoError(t, err)
	require.Len(t, doc.Links, 1)
	assert.Equal(t, "other-doc.md", doc.Links[0].TargetElementID)
	assert.Equal(t, "markdown_link", doc.Links[0].LinkType)
}

func TestMarkdownParserExtractsISODates(t *testing.T) {
	p := NewMarkdownParser()
	content := "Due on 2026-08-15 for the release."

	doc, err := p.Parse(context.Background(), "doc1", []byte(content))
	require.NoError(t, err)
	require.Len(t, doc.ElementDates, 1)
	assert.Equal(t, "2026-08-15", doc.ElementDates[0].Text)
	assert.Equal(t, "mentioned", doc.ElementDates[0].DateType)
}

func TestMarkdownParserRejectsInvalidUTF8(t *testing.T) {
	p := NewMarkdownParser()
	_, err := p.Parse(context.Background(), "doc1", []byte{0xff, 0xfe, 0xfd})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestMarkdownParserTruncatesLongPreview(t *testing.T) {
	p := NewMarkdownParser()
	long := make([]byte, 0, 400)
	for i := 0; i < 400; i++ {
		long = append(long, 'a')
	}
	doc, err := p.Parse(context.Background(), "doc1", long)
	require.NoError(t, err)
	require.Len(t, doc.Elements, 1)
	assert.Len(t, []rune(doc.Elements[0].ContentPreview), previewRunes)
}

func TestMarkdownParserHonorsContextCancellation(t *testing.T) {
	p := NewMarkdownParser()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Parse(ctx, "doc1", []byte("hello"))
	require.Error(t, err)
}

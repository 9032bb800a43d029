package parser

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MarkdownParser splits markdown/plain-text content into paragraph and
// heading elements, extracts explicit markdown links as Links, and pulls
// ISO-8601 dates out of element text as ElementDates. It is the one content
// type this repository ships a full implementation for; the remaining
// formats are registered as stubs (see factory.go).
type MarkdownParser struct{}

func NewMarkdownParser() *MarkdownParser { return &MarkdownParser{} }

var (
	headingPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.*)$`)
	linkPattern    = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)
	isoDatePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

	// previewRunes caps how much of an element's text is retained verbatim,
	// mirroring how storage.Element.ContentPreview is meant to be used for
	// indexing/display rather than full-text reconstruction.
	previewRunes = 280
)

func (p *MarkdownParser) Parse(ctx context.Context, docID string, content []byte) (ParsedDocument, error) {
	if ctx.Err() != nil {
		return ParsedDocument{}, ctx.Err()
	}
	if !utf8.Valid(content) {
		return ParsedDocument{}, fmt.Errorf("parser: %s: %w: content is not valid UTF-8", docID, ErrUnsupportedFormat)
	}

	text := string(content)
	paragraphs := splitParagraphs(text)

	out := ParsedDocument{}
	var lastHeadingID string
	position := 0

	for _, para := range paragraphs {
		trimmed := strings.TrimSpace(para)
		if trimmed == "" {
			continue
		}

		elementID := fmt.Sprintf("%s#%d", docID, position)
		elementType := "paragraph"
		parentID := lastHeadingID

		if m := headingPattern.FindStringSubmatch(trimmed); m != nil && strings.HasPrefix(trimmed, m[0]) {
			elementType = "heading_" + strconv.Itoa(len(m[1]))
			trimmed = strings.TrimSpace(m[2])
			lastHeadingID = elementID
			parentID = ""
		}

		out.Elements = append(out.Elements, Element{
			ElementID:        elementID,
			ElementType:      elementType,
			ContentPreview:   truncate(trimmed, previewRunes),
			ParentID:         parentID,
			DocumentPosition: position,
			Attributes:       map[string]any{"raw_length": len(trimmed)},
		})

		for _, lm := range linkPattern.FindAllStringSubmatch(trimmed, -1) {
			target := lm[2]
			if strings.Contains(target, "://") || strings.HasPrefix(target, "#") {
				continue
			}
			out.Links = append(out.Links, Link{
				SourceElementID: elementID,
				TargetElementID: target,
				LinkType:        "markdown_link",
			})
		}

		for _, dm := range isoDatePattern.FindAllString(trimmed, -1) {
			if t, err := time.Parse("2006-01-02", dm); err == nil {
				out.ElementDates = append(out.ElementDates, ElementDate{
					ElementID: elementID,
					DateValue: t,
					DateType:  "mentioned",
					Text:      dm,
				})
			}
		}

		position++
	}

	if len(out.Elements) > 0 {
		out.Title = out.Elements[0].ContentPreview
	}
	return out, nil
}

// splitParagraphs breaks content on blank lines, the same unit
// document_position counts over.
func splitParagraphs(text string) []string {
	return regexp.MustCompile(`\n\s*\n`).Split(text, -1)
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes])
}

// Package parser implements the per-content-type document parser contract:
// dispatch on content type to the matching Parser, producing the structured
// elements/links/relationships/dates the worker persists, grounded on
// original_source/parsers/factory.py's ParserFactory and the same
// stub-plus-one-concrete-adapter idiom contentsource uses for source types.
package parser

import (
	"context"
	"errors"
	"time"
)

// ErrFormatNotImplemented is returned by parser slots this repository does
// not ship a concrete implementation for.
var ErrFormatNotImplemented = errors.New("parser: content type not implemented")

// ErrUnsupportedFormat signals a critical, non-retryable parse failure: the
// content is not in the format its content type claims, or is corrupt.
// Workers route this straight to the dead-letter queue per
// runqueue.IsCriticalError's "unsupported/corrupt format" class.
var ErrUnsupportedFormat = errors.New("parser: unsupported or corrupted format")

// Element is one structural unit a parser extracts from a document: a
// paragraph, heading, table cell, code block, and so on.
type Element struct {
	ElementID        string
	ElementType      string
	ContentPreview   string
	ParentID         string
	DocumentPosition int
	Attributes       map[string]any
}

// Link is an explicit reference from one element to another, found while
// parsing the document's content (the worker also asks the content source
// to follow links for crawl expansion — this is for links internal to the
// document's structure, e.g. markdown link syntax).
type Link struct {
	SourceElementID string
	TargetElementID string
	LinkType        string
}

// ElementDate is a date value a parser finds attached to or embedded in an
// element (e.g. a "due date" table cell, a datestamp heading).
type ElementDate struct {
	ElementID string
	DateValue time.Time
	DateType  string
	Text      string
}

// ParsedDocument is a parser's complete output for one fetched document,
// matching spec.md's parse step: `{document, elements[], links[],
// relationships[], element_dates[]}`. Relationships here are the ones the
// parser itself can assert directly (e.g. an explicit cross-reference);
// everything else — structural, semantic, domain — is discovered downstream
// by the relationship detector pipeline over Elements and Links.
type ParsedDocument struct {
	Title         string
	Elements      []Element
	Links         []Link
	Relationships []Link
	ElementDates  []ElementDate
}

// Parser turns fetched content into a ParsedDocument. Implementations own
// exactly one content type's syntax.
type Parser interface {
	Parse(ctx context.Context, docID string, content []byte) (ParsedDocument, error)
}

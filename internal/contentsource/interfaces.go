// Package contentsource implements the content-source factory and registry:
// fetching, change detection, and link discovery against whatever system a
// document actually lives in, grounded on
// original_source/content_source/factory.py.
package contentsource

import (
	"context"
	"errors"
	"time"
)

// ErrSourceNotImplemented is returned by factory cases for source types this
// repository does not ship a concrete adapter for.
var ErrSourceNotImplemented = errors.New("contentsource: source type not implemented")

// ErrNotFound is returned by Fetch/HasChanged when the identifier does not
// resolve to a document the source knows about.
var ErrNotFound = errors.New("contentsource: document not found")

// DocumentInfo is one entry in a List call: an identifier plus whatever
// metadata the source can cheaply surface without fetching content.
type DocumentInfo struct {
	ID       string
	Metadata map[string]any
}

// FetchedDocument is the result of a Fetch call.
type FetchedDocument struct {
	ID          string
	Content     []byte
	BinaryPath  string // set instead of Content for sources that hand back a local file path
	Metadata    map[string]any
	ContentHash string
	ContentType string
}

// LinkedDocument is one document discovered by following links out of an
// already-fetched document.
type LinkedDocument struct {
	ID       string
	Metadata map[string]any
}

// Source is the four-method contract every content-source adapter
// implements, mirroring ContentSource's fetch_document/has_changed/
// follow_links/list_documents.
type Source interface {
	// List enumerates available documents, where the source supports
	// enumeration at all (a no-op slice for sources discovered only by
	// inbound reference, e.g. individual web URLs).
	List(ctx context.Context) ([]DocumentInfo, error)

	// Fetch retrieves one document's content and metadata.
	Fetch(ctx context.Context, id string) (FetchedDocument, error)

	// HasChanged reports whether the document has changed since
	// lastModified. A zero lastModified means "unknown baseline": the
	// source should answer true as if this document has never been seen.
	HasChanged(ctx context.Context, id string, lastModified time.Time) (bool, error)

	// FollowLinks discovers documents linked from content. visited is the
	// caller's local dedup set for this call only — the queue's unique
	// key is the actual de-duplication mechanism, so implementations may
	// treat visited as empty and let the queue collapse duplicates.
	FollowLinks(ctx context.Context, content []byte, sourceID string, currentDepth int, visited map[string]bool) ([]LinkedDocument, error)
}

package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned (wrapped) when a document, element, or entity
// lookup finds nothing. Workers treat this as a critical, non-retried error
// when it surfaces from the main processing path.
var ErrNotFound = errors.New("storage: not found")

// Capability names used by UnsupportedSearchError and BackendCapabilities.
const (
	CapTextSearch      = "text_search"
	CapEmbeddingSearch = "embedding_search"
	CapDateRangeSearch = "date_range_search"
	CapAncestorLookup  = "ancestor_lookup"
	CapStructuredQuery = "structured_query"
	CapEntityGraph     = "entity_graph"
)

// UnsupportedSearchError is raised when a caller requests an operation the
// backend's declared BackendCapabilities does not cover. It is surfaced to
// the caller unchanged rather than retried.
type UnsupportedSearchError struct {
	Backend             string
	MissingCapabilities []string
}

func (e *UnsupportedSearchError) Error() string {
	return fmt.Sprintf("storage: backend %q does not support required capabilities %v", e.Backend, e.MissingCapabilities)
}

// NewUnsupportedSearchError builds an UnsupportedSearchError, used by
// backends after comparing a request's requirements against Capabilities().
func NewUnsupportedSearchError(backend string, missing ...string) *UnsupportedSearchError {
	return &UnsupportedSearchError{Backend: backend, MissingCapabilities: missing}
}

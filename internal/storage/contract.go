package storage

import "context"

// BackendCapabilities declares which optional facilities a backend
// implements. The core validates a request's requirements against a
// backend's capabilities before dispatch and returns UnsupportedSearchError
// rather than attempting and failing at the query layer.
type BackendCapabilities struct {
	TextSearch      bool
	EmbeddingSearch bool
	DateRangeSearch bool
	AncestorLookup  bool
	StructuredQuery bool
	EntityGraph     bool
}

// Has returns the capabilities in want that are not present (nil when all
// are).
func (c BackendCapabilities) Has(want ...string) []string {
	have := map[string]bool{
		CapTextSearch:      c.TextSearch,
		CapEmbeddingSearch: c.EmbeddingSearch,
		CapDateRangeSearch: c.DateRangeSearch,
		CapAncestorLookup:  c.AncestorLookup,
		CapStructuredQuery: c.StructuredQuery,
		CapEntityGraph:     c.EntityGraph,
	}
	var missing []string
	for _, w := range want {
		if !have[w] {
			missing = append(missing, w)
		}
	}
	return missing
}

// Backend is the full storage contract required by the work queue, worker,
// and ontology evaluator. Required operations (document/element CRUD,
// processing history, embeddings, element dates, term mappings, entities)
// must be implemented by every backend. Search-shaped operations are
// capability-gated: a backend that does not declare the relevant
// capability returns *UnsupportedSearchError instead of a wrong answer.
type Backend interface {
	Name() string
	Capabilities() BackendCapabilities
	Close() error

	// Document / element persistence.
	StoreDocument(ctx context.Context, doc Document, elements []Element, rels []Relationship, dates []ElementDate) error
	// StoreRelationships persists relationships discovered independent of
	// any single document's persist call (e.g. cross-document
	// relationships found during post-processing). Duplicates are ignored.
	// Element existence is not checked the same way by every backend: the
	// Postgres backend stores every relationship, while the in-memory
	// storagetest backend drops those whose source element it does not hold.
	StoreRelationships(ctx context.Context, rels []Relationship) error
	UpdateDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, docID string) (Document, error)
	DeleteDocument(ctx context.Context, docID string) error
	GetDocumentElements(ctx context.Context, docID string) ([]Element, error)
	GetDocumentRelationships(ctx context.Context, docID string) ([]Relationship, error)
	GetElement(ctx context.Context, elementID string) (Element, error)

	// Processing history / change detection.
	GetLastProcessedInfo(ctx context.Context, docID string) (*LastProcessedInfo, error)
	UpdateProcessingHistory(ctx context.Context, docID, contentHash string) error

	// Embeddings.
	StoreEmbedding(ctx context.Context, e Embedding) error
	GetEmbedding(ctx context.Context, elementID string) (Embedding, error)
	SearchByEmbedding(ctx context.Context, vector []float32, limit int) ([]StructuredResult, error)
	SearchByText(ctx context.Context, query string, limit int) ([]StructuredResult, error)

	// Element dates.
	StoreElementDates(ctx context.Context, dates []ElementDate) error
	GetElementDates(ctx context.Context, elementID string) ([]ElementDate, error)
	SearchByDateRange(ctx context.Context, q StructuredQuery) ([]StructuredResult, error)

	// Ontology term mappings.
	StoreElementTermMappings(ctx context.Context, mappings []ElementTermMapping) error
	FindElementsByTerm(ctx context.Context, domain, termID string) ([]Element, error)
	GetTermStatistics(ctx context.Context, domain string) ([]TermStatistics, error)

	// Entities.
	StoreEntity(ctx context.Context, e Entity) error
	GetEntity(ctx context.Context, entityID string) (Entity, error)
	DeleteEntity(ctx context.Context, entityID string) error
	StoreEntityRelationship(ctx context.Context, r EntityRelationship) error
	GetEntityRelationships(ctx context.Context, entityID string) ([]EntityRelationship, error)

	// Generic structured search, and the ancestor lookup the ontology
	// evaluator needs for hierarchy_level >= 1 constraints.
	ExecuteStructuredSearch(ctx context.Context, q StructuredQuery) ([]StructuredResult, error)
	GetAncestors(ctx context.Context, elementID string, depth int) ([]string, error)
}

// AncestorResolver is the narrow slice of Backend the ontology evaluator
// needs for hierarchy constraints deeper than one hop. Any Backend
// satisfies it.
type AncestorResolver interface {
	GetAncestors(ctx context.Context, elementID string, depth int) ([]string, error)
}

// requireCapabilities returns an UnsupportedSearchError when caps lacks any
// of want. It is unexported, so the backends in other packages (postgres,
// storagetest) carry their own equivalent checks.
func requireCapabilities(backend string, caps BackendCapabilities, want ...string) error {
	if missing := caps.Has(want...); len(missing) > 0 {
		return NewUnsupportedSearchError(backend, missing...)
	}
	return nil
}

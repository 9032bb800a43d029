// Package storage defines the capability-gated persistence contract that the
// work queue, worker, and ontology evaluator depend on. Concrete backends
// (relational, document, graph, search index) are external collaborators;
// this package only fixes the interface and the reference Postgres adapter
// under storage/postgres.
package storage

import "time"

// Document is the top-level unit of content a parser produces.
type Document struct {
	DocID       string
	SourceName  string
	Title       string
	ContentHash string
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Element is a structural unit within a parsed document (paragraph, table
// cell, heading, ...). ElementPK is storage-assigned once persisted.
type Element struct {
	ElementPK        int64
	ElementID        string
	DocID            string
	ElementType      string
	ContentPreview   string
	ParentID         string
	DocumentPosition int
	Attributes       map[string]any
}

// Relationship links two elements, either structurally (parsed from the
// document) or semantically (discovered by the ontology evaluator).
type Relationship struct {
	SourceElementID string
	TargetElementID string
	RelationshipType string
	Domain          string
	Confidence      float64
	Metadata        map[string]any
}

// ElementDate is a date value extracted from or attached to an element.
type ElementDate struct {
	ElementID string
	DateValue time.Time
	DateType  string
	Text      string
}

// LastProcessedInfo is what change detection compares a freshly fetched
// document against.
type LastProcessedInfo struct {
	DocID       string
	ContentHash string
	LastModified time.Time
	FileSize    int64
}

// Embedding is a vector associated with one element.
type Embedding struct {
	ElementID string
	Vector    []float32
	Model     string
}

// ElementTermMapping records that an element was mapped to an ontology term.
type ElementTermMapping struct {
	ElementPK   int64
	ElementID   string
	TermID      string
	Domain      string
	Confidence  float64
	MappingRule string
}

// TermStatistics summarizes how often a term was mapped.
type TermStatistics struct {
	TermID string
	Domain string
	Count  int64
}

// Entity and EntityRelationship back the minimal entity CRUD required by the
// storage contract (spec.md does not further elaborate entity shape beyond
// "entity and entity-relationship CRUD"; this mirrors Element/Relationship
// at arm's length so backends can model domain entities independent of
// parser-produced elements).
type Entity struct {
	EntityID   string
	EntityType string
	Name       string
	Attributes map[string]any
}

type EntityRelationship struct {
	SourceEntityID   string
	TargetEntityID   string
	RelationshipType string
	Attributes       map[string]any
}

// StructuredQuery is the generic escape hatch for capability-gated search.
type StructuredQuery struct {
	Kind       string // e.g. "embedding", "text", "date_range"
	Embedding  []float32
	Text       string
	DateFrom   time.Time
	DateTo     time.Time
	ElementIDs []string
	Limit      int
}

// StructuredResult is one row of a StructuredQuery's result set.
type StructuredResult struct {
	ElementID string
	Score     float64
	Data      map[string]any
}

// Package postgres is the reference Backend implementation backing
// internal/storage.Backend with a single PostgreSQL database, using pgx's
// connection pool directly rather than an ORM. It is one possible backend;
// the rest of the system only depends on the storage.Backend interface.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"corpusforge.dev/internal/storage"
)

const backendName = "postgres"

// Backend wraps a pgxpool.Pool and implements storage.Backend with direct
// SQL, following the same pooling shape as the teacher's PostgresDB: no ORM
// overhead, explicit SQL, pool-managed connections.
type Backend struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

// Capabilities this reference backend declares. It supports everything the
// contract defines; a leaner backend (e.g. one without a vector extension)
// would flip EmbeddingSearch off and let UnsupportedSearchError surface.
var capabilities = storage.BackendCapabilities{
	TextSearch:      true,
	EmbeddingSearch: true,
	DateRangeSearch: true,
	AncestorLookup:  true,
	StructuredQuery: true,
	EntityGraph:     true,
}

// New connects to Postgres and pings it before returning, mirroring
// NewPostgresDB's fail-fast behavior.
func New(ctx context.Context, connString string, log *logrus.Entry) (*Backend, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Backend{pool: pool, log: log.WithField("backend", backendName)}, nil
}

func (b *Backend) Name() string                             { return backendName }
func (b *Backend) Capabilities() storage.BackendCapabilities { return capabilities }
func (b *Backend) Close() error                             { b.pool.Close(); return nil }

func (b *Backend) StoreDocument(ctx context.Context, doc storage.Document, elements []storage.Element, rels []storage.Relationship, dates []storage.ElementDate) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal document metadata: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (doc_id, source_name, title, content_hash, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (doc_id) DO UPDATE SET
			source_name = EXCLUDED.source_name,
			title = EXCLUDED.title,
			content_hash = EXCLUDED.content_hash,
			metadata = EXCLUDED.metadata,
			updated_at = now()
	`, doc.DocID, doc.SourceName, doc.Title, doc.ContentHash, metaJSON)
	if err != nil {
		return fmt.Errorf("postgres: upsert document: %w", err)
	}

	for _, el := range elements {
		attrJSON, err := json.Marshal(el.Attributes)
		if err != nil {
			return fmt.Errorf("postgres: marshal element attributes: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO elements (element_id, doc_id, element_type, content_preview, parent_id, document_position, attributes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (element_id) DO UPDATE SET
				element_type = EXCLUDED.element_type,
				content_preview = EXCLUDED.content_preview,
				parent_id = EXCLUDED.parent_id,
				document_position = EXCLUDED.document_position,
				attributes = EXCLUDED.attributes
		`, el.ElementID, doc.DocID, el.ElementType, el.ContentPreview, el.ParentID, el.DocumentPosition, attrJSON)
		if err != nil {
			return fmt.Errorf("postgres: upsert element %s: %w", el.ElementID, err)
		}
	}

	for _, rel := range rels {
		metaJSON, err := json.Marshal(rel.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: marshal relationship metadata: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO relationships (source_element_id, target_element_id, relationship_type, domain, confidence, metadata)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT DO NOTHING
		`, rel.SourceElementID, rel.TargetElementID, rel.RelationshipType, rel.Domain, rel.Confidence, metaJSON)
		if err != nil {
			return fmt.Errorf("postgres: insert relationship: %w", err)
		}
	}

	if err := b.storeElementDatesTx(ctx, tx, dates); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// StoreRelationships persists relationships independent of StoreDocument's
// per-document transaction, for cross-document relationship discovery.
func (b *Backend) StoreRelationships(ctx context.Context, rels []storage.Relationship) error {
	if len(rels) == 0 {
		return nil
	}
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rel := range rels {
		metaJSON, err := json.Marshal(rel.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: marshal relationship metadata: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO relationships (source_element_id, target_element_id, relationship_type, domain, confidence, metadata)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT DO NOTHING
		`, rel.SourceElementID, rel.TargetElementID, rel.RelationshipType, rel.Domain, rel.Confidence, metaJSON)
		if err != nil {
			return fmt.Errorf("postgres: insert relationship: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (b *Backend) storeElementDatesTx(ctx context.Context, tx pgx.Tx, dates []storage.ElementDate) error {
	for _, d := range dates {
		_, err := tx.Exec(ctx, `
			INSERT INTO element_dates (element_id, date_value, date_type, text)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT DO NOTHING
		`, d.ElementID, d.DateValue, d.DateType, d.Text)
		if err != nil {
			return fmt.Errorf("postgres: insert element date: %w", err)
		}
	}
	return nil
}

func (b *Backend) UpdateDocument(ctx context.Context, doc storage.Document) error {
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal document metadata: %w", err)
	}
	_, err = b.pool.Exec(ctx, `
		UPDATE documents SET title = $2, content_hash = $3, metadata = $4, updated_at = now()
		WHERE doc_id = $1
	`, doc.DocID, doc.Title, doc.ContentHash, metaJSON)
	if err != nil {
		return fmt.Errorf("postgres: update document: %w", err)
	}
	return nil
}

func (b *Backend) GetDocument(ctx context.Context, docID string) (storage.Document, error) {
	var doc storage.Document
	var metaJSON []byte
	err := b.pool.QueryRow(ctx, `
		SELECT doc_id, source_name, title, content_hash, metadata, created_at, updated_at
		FROM documents WHERE doc_id = $1
	`, docID).Scan(&doc.DocID, &doc.SourceName, &doc.Title, &doc.ContentHash, &metaJSON, &doc.CreatedAt, &doc.UpdatedAt)
	if err == pgx.ErrNoRows {
		return storage.Document{}, fmt.Errorf("postgres: document %s: %w", docID, storage.ErrNotFound)
	}
	if err != nil {
		return storage.Document{}, fmt.Errorf("postgres: get document: %w", err)
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &doc.Metadata)
	}
	return doc, nil
}

func (b *Backend) DeleteDocument(ctx context.Context, docID string) error {
	_, err := b.pool.Exec(ctx, `DELETE FROM documents WHERE doc_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("postgres: delete document: %w", err)
	}
	return nil
}

func (b *Backend) GetDocumentElements(ctx context.Context, docID string) ([]storage.Element, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT element_pk, element_id, doc_id, element_type, content_preview, parent_id, document_position, attributes
		FROM elements WHERE doc_id = $1 ORDER BY document_position ASC
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get document elements: %w", err)
	}
	defer rows.Close()

	var out []storage.Element
	for rows.Next() {
		var el storage.Element
		var attrJSON []byte
		if err := rows.Scan(&el.ElementPK, &el.ElementID, &el.DocID, &el.ElementType, &el.ContentPreview, &el.ParentID, &el.DocumentPosition, &attrJSON); err != nil {
			return nil, fmt.Errorf("postgres: scan element: %w", err)
		}
		if len(attrJSON) > 0 {
			_ = json.Unmarshal(attrJSON, &el.Attributes)
		}
		out = append(out, el)
	}
	return out, rows.Err()
}

func (b *Backend) GetDocumentRelationships(ctx context.Context, docID string) ([]storage.Relationship, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT r.source_element_id, r.target_element_id, r.relationship_type, r.domain, r.confidence, r.metadata
		FROM relationships r
		JOIN elements e ON e.element_id = r.source_element_id
		WHERE e.doc_id = $1
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get document relationships: %w", err)
	}
	defer rows.Close()

	var out []storage.Relationship
	for rows.Next() {
		var r storage.Relationship
		var metaJSON []byte
		if err := rows.Scan(&r.SourceElementID, &r.TargetElementID, &r.RelationshipType, &r.Domain, &r.Confidence, &metaJSON); err != nil {
			return nil, fmt.Errorf("postgres: scan relationship: %w", err)
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &r.Metadata)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (b *Backend) GetElement(ctx context.Context, elementID string) (storage.Element, error) {
	var el storage.Element
	var attrJSON []byte
	err := b.pool.QueryRow(ctx, `
		SELECT element_pk, element_id, doc_id, element_type, content_preview, parent_id, document_position, attributes
		FROM elements WHERE element_id = $1
	`, elementID).Scan(&el.ElementPK, &el.ElementID, &el.DocID, &el.ElementType, &el.ContentPreview, &el.ParentID, &el.DocumentPosition, &attrJSON)
	if err == pgx.ErrNoRows {
		return storage.Element{}, fmt.Errorf("postgres: element %s: %w", elementID, storage.ErrNotFound)
	}
	if err != nil {
		return storage.Element{}, fmt.Errorf("postgres: get element: %w", err)
	}
	if len(attrJSON) > 0 {
		_ = json.Unmarshal(attrJSON, &el.Attributes)
	}
	return el, nil
}

func (b *Backend) GetLastProcessedInfo(ctx context.Context, docID string) (*storage.LastProcessedInfo, error) {
	var info storage.LastProcessedInfo
	var lastModified *time.Time
	err := b.pool.QueryRow(ctx, `
		SELECT doc_id, content_hash, last_modified, file_size
		FROM processing_history WHERE doc_id = $1
	`, docID).Scan(&info.DocID, &info.ContentHash, &lastModified, &info.FileSize)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get last processed info: %w", err)
	}
	if lastModified != nil {
		info.LastModified = *lastModified
	}
	return &info, nil
}

func (b *Backend) UpdateProcessingHistory(ctx context.Context, docID, contentHash string) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO processing_history (doc_id, content_hash, last_modified)
		VALUES ($1, $2, now())
		ON CONFLICT (doc_id) DO UPDATE SET content_hash = EXCLUDED.content_hash, last_modified = now()
	`, docID, contentHash)
	if err != nil {
		return fmt.Errorf("postgres: update processing history: %w", err)
	}
	return nil
}

func (b *Backend) StoreEmbedding(ctx context.Context, e storage.Embedding) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO embeddings (element_id, vector, model)
		VALUES ($1, $2, $3)
		ON CONFLICT (element_id) DO UPDATE SET vector = EXCLUDED.vector, model = EXCLUDED.model
	`, e.ElementID, float32SliceToJSON(e.Vector), e.Model)
	if err != nil {
		return fmt.Errorf("postgres: store embedding: %w", err)
	}
	return nil
}

func (b *Backend) GetEmbedding(ctx context.Context, elementID string) (storage.Embedding, error) {
	var e storage.Embedding
	var vecJSON []byte
	err := b.pool.QueryRow(ctx, `SELECT element_id, vector, model FROM embeddings WHERE element_id = $1`, elementID).
		Scan(&e.ElementID, &vecJSON, &e.Model)
	if err == pgx.ErrNoRows {
		return storage.Embedding{}, fmt.Errorf("postgres: embedding %s: %w", elementID, storage.ErrNotFound)
	}
	if err != nil {
		return storage.Embedding{}, fmt.Errorf("postgres: get embedding: %w", err)
	}
	e.Vector = jsonToFloat32Slice(vecJSON)
	return e, nil
}

// SearchByEmbedding requires pgvector or an equivalent extension in a real
// deployment; this reference backend does a naive in-process cosine scan
// over the embeddings table, which is correct but not meant to scale.
func (b *Backend) SearchByEmbedding(ctx context.Context, vector []float32, limit int) ([]storage.StructuredResult, error) {
	if err := requireCapabilities(b, storage.CapEmbeddingSearch); err != nil {
		return nil, err
	}
	rows, err := b.pool.Query(ctx, `SELECT element_id, vector FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("postgres: search by embedding: %w", err)
	}
	defer rows.Close()

	var results []storage.StructuredResult
	for rows.Next() {
		var elementID string
		var vecJSON []byte
		if err := rows.Scan(&elementID, &vecJSON); err != nil {
			return nil, fmt.Errorf("postgres: scan embedding row: %w", err)
		}
		score := cosineSimilarity(vector, jsonToFloat32Slice(vecJSON))
		results = append(results, storage.StructuredResult{ElementID: elementID, Score: score})
	}
	sortResultsByScoreDesc(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, rows.Err()
}

func (b *Backend) SearchByText(ctx context.Context, query string, limit int) ([]storage.StructuredResult, error) {
	if err := requireCapabilities(b, storage.CapTextSearch); err != nil {
		return nil, err
	}
	rows, err := b.pool.Query(ctx, `
		SELECT element_id, 1.0 FROM elements
		WHERE content_preview ILIKE '%' || $1 || '%'
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: search by text: %w", err)
	}
	defer rows.Close()

	var results []storage.StructuredResult
	for rows.Next() {
		var r storage.StructuredResult
		if err := rows.Scan(&r.ElementID, &r.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan text search row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (b *Backend) StoreElementDates(ctx context.Context, dates []storage.ElementDate) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := b.storeElementDatesTx(ctx, tx, dates); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (b *Backend) GetElementDates(ctx context.Context, elementID string) ([]storage.ElementDate, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT element_id, date_value, date_type, text FROM element_dates WHERE element_id = $1
	`, elementID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get element dates: %w", err)
	}
	defer rows.Close()

	var out []storage.ElementDate
	for rows.Next() {
		var d storage.ElementDate
		if err := rows.Scan(&d.ElementID, &d.DateValue, &d.DateType, &d.Text); err != nil {
			return nil, fmt.Errorf("postgres: scan element date: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (b *Backend) SearchByDateRange(ctx context.Context, q storage.StructuredQuery) ([]storage.StructuredResult, error) {
	if err := requireCapabilities(b, storage.CapDateRangeSearch); err != nil {
		return nil, err
	}
	rows, err := b.pool.Query(ctx, `
		SELECT element_id, 1.0 FROM element_dates
		WHERE date_value BETWEEN $1 AND $2
		LIMIT $3
	`, q.DateFrom, q.DateTo, nonZeroLimit(q.Limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: search by date range: %w", err)
	}
	defer rows.Close()

	var out []storage.StructuredResult
	for rows.Next() {
		var r storage.StructuredResult
		if err := rows.Scan(&r.ElementID, &r.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan date range row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (b *Backend) StoreElementTermMappings(ctx context.Context, mappings []storage.ElementTermMapping) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range mappings {
		_, err := tx.Exec(ctx, `
			INSERT INTO element_term_mappings (element_id, term_id, domain, confidence, mapping_rule)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (element_id, term_id, domain) DO UPDATE SET
				confidence = EXCLUDED.confidence, mapping_rule = EXCLUDED.mapping_rule
		`, m.ElementID, m.TermID, m.Domain, m.Confidence, m.MappingRule)
		if err != nil {
			return fmt.Errorf("postgres: store element term mapping: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (b *Backend) FindElementsByTerm(ctx context.Context, domain, termID string) ([]storage.Element, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT e.element_pk, e.element_id, e.doc_id, e.element_type, e.content_preview, e.parent_id, e.document_position, e.attributes
		FROM elements e
		JOIN element_term_mappings m ON m.element_id = e.element_id
		WHERE m.domain = $1 AND m.term_id = $2
	`, domain, termID)
	if err != nil {
		return nil, fmt.Errorf("postgres: find elements by term: %w", err)
	}
	defer rows.Close()

	var out []storage.Element
	for rows.Next() {
		var el storage.Element
		var attrJSON []byte
		if err := rows.Scan(&el.ElementPK, &el.ElementID, &el.DocID, &el.ElementType, &el.ContentPreview, &el.ParentID, &el.DocumentPosition, &attrJSON); err != nil {
			return nil, fmt.Errorf("postgres: scan element: %w", err)
		}
		if len(attrJSON) > 0 {
			_ = json.Unmarshal(attrJSON, &el.Attributes)
		}
		out = append(out, el)
	}
	return out, rows.Err()
}

func (b *Backend) GetTermStatistics(ctx context.Context, domain string) ([]storage.TermStatistics, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT term_id, domain, COUNT(*) FROM element_term_mappings
		WHERE domain = $1 GROUP BY term_id, domain
	`, domain)
	if err != nil {
		return nil, fmt.Errorf("postgres: get term statistics: %w", err)
	}
	defer rows.Close()

	var out []storage.TermStatistics
	for rows.Next() {
		var s storage.TermStatistics
		if err := rows.Scan(&s.TermID, &s.Domain, &s.Count); err != nil {
			return nil, fmt.Errorf("postgres: scan term statistics: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (b *Backend) StoreEntity(ctx context.Context, e storage.Entity) error {
	attrJSON, err := json.Marshal(e.Attributes)
	if err != nil {
		return fmt.Errorf("postgres: marshal entity attributes: %w", err)
	}
	_, err = b.pool.Exec(ctx, `
		INSERT INTO entities (entity_id, entity_type, name, attributes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_id) DO UPDATE SET entity_type = EXCLUDED.entity_type, name = EXCLUDED.name, attributes = EXCLUDED.attributes
	`, e.EntityID, e.EntityType, e.Name, attrJSON)
	if err != nil {
		return fmt.Errorf("postgres: store entity: %w", err)
	}
	return nil
}

func (b *Backend) GetEntity(ctx context.Context, entityID string) (storage.Entity, error) {
	var e storage.Entity
	var attrJSON []byte
	err := b.pool.QueryRow(ctx, `SELECT entity_id, entity_type, name, attributes FROM entities WHERE entity_id = $1`, entityID).
		Scan(&e.EntityID, &e.EntityType, &e.Name, &attrJSON)
	if err == pgx.ErrNoRows {
		return storage.Entity{}, fmt.Errorf("postgres: entity %s: %w", entityID, storage.ErrNotFound)
	}
	if err != nil {
		return storage.Entity{}, fmt.Errorf("postgres: get entity: %w", err)
	}
	if len(attrJSON) > 0 {
		_ = json.Unmarshal(attrJSON, &e.Attributes)
	}
	return e, nil
}

func (b *Backend) DeleteEntity(ctx context.Context, entityID string) error {
	_, err := b.pool.Exec(ctx, `DELETE FROM entities WHERE entity_id = $1`, entityID)
	if err != nil {
		return fmt.Errorf("postgres: delete entity: %w", err)
	}
	return nil
}

func (b *Backend) StoreEntityRelationship(ctx context.Context, r storage.EntityRelationship) error {
	if err := requireCapabilities(b, storage.CapEntityGraph); err != nil {
		return err
	}
	attrJSON, err := json.Marshal(r.Attributes)
	if err != nil {
		return fmt.Errorf("postgres: marshal entity relationship attributes: %w", err)
	}
	_, err = b.pool.Exec(ctx, `
		INSERT INTO entity_relationships (source_entity_id, target_entity_id, relationship_type, attributes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`, r.SourceEntityID, r.TargetEntityID, r.RelationshipType, attrJSON)
	if err != nil {
		return fmt.Errorf("postgres: store entity relationship: %w", err)
	}
	return nil
}

func (b *Backend) GetEntityRelationships(ctx context.Context, entityID string) ([]storage.EntityRelationship, error) {
	if err := requireCapabilities(b, storage.CapEntityGraph); err != nil {
		return nil, err
	}
	rows, err := b.pool.Query(ctx, `
		SELECT source_entity_id, target_entity_id, relationship_type, attributes
		FROM entity_relationships WHERE source_entity_id = $1 OR target_entity_id = $1
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get entity relationships: %w", err)
	}
	defer rows.Close()

	var out []storage.EntityRelationship
	for rows.Next() {
		var r storage.EntityRelationship
		var attrJSON []byte
		if err := rows.Scan(&r.SourceEntityID, &r.TargetEntityID, &r.RelationshipType, &attrJSON); err != nil {
			return nil, fmt.Errorf("postgres: scan entity relationship: %w", err)
		}
		if len(attrJSON) > 0 {
			_ = json.Unmarshal(attrJSON, &r.Attributes)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (b *Backend) ExecuteStructuredSearch(ctx context.Context, q storage.StructuredQuery) ([]storage.StructuredResult, error) {
	if err := requireCapabilities(b, storage.CapStructuredQuery); err != nil {
		return nil, err
	}
	switch q.Kind {
	case "embedding":
		return b.SearchByEmbedding(ctx, q.Embedding, q.Limit)
	case "text":
		return b.SearchByText(ctx, q.Text, q.Limit)
	case "date_range":
		return b.SearchByDateRange(ctx, q)
	default:
		return nil, fmt.Errorf("postgres: unknown structured query kind %q", q.Kind)
	}
}

// GetAncestors walks parent_id up to depth hops, supporting the evaluator's
// hierarchy_level >= 1 relationship constraint.
func (b *Backend) GetAncestors(ctx context.Context, elementID string, depth int) ([]string, error) {
	if err := requireCapabilities(b, storage.CapAncestorLookup); err != nil {
		return nil, err
	}
	rows, err := b.pool.Query(ctx, `
		WITH RECURSIVE ancestors AS (
			SELECT element_id, parent_id, 0 AS hop FROM elements WHERE element_id = $1
			UNION ALL
			SELECT e.element_id, e.parent_id, a.hop + 1
			FROM elements e
			JOIN ancestors a ON e.element_id = a.parent_id
			WHERE a.hop < $2
		)
		SELECT parent_id FROM ancestors WHERE hop < $2 AND parent_id IS NOT NULL AND parent_id != ''
		ORDER BY hop
	`, elementID, depth)
	if err != nil {
		return nil, fmt.Errorf("postgres: get ancestors: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan ancestor: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func requireCapabilities(b *Backend, want ...string) error {
	if missing := b.Capabilities().Has(want...); len(missing) > 0 {
		return storage.NewUnsupportedSearchError(b.Name(), missing...)
	}
	return nil
}

func nonZeroLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}

package contentsource

import (
	"fmt"
	"strings"
)

// databaseIDPrefix is the scheme prefix for database-sourced document
// identifiers, matching database.py's "db://" construction.
const databaseIDPrefix = "db://"

// BuildDatabaseID constructs the fully qualified identifier for a
// single-column blob document, exactly as _fetch_blob_document does:
// db://<connection>/<query>/<id_column>/<id_value>/<content_column>
func BuildDatabaseID(connection, query, idColumn, idValue, contentColumn string) string {
	return fmt.Sprintf("%s%s/%s/%s/%s/%s", databaseIDPrefix, connection, query, idColumn, idValue, contentColumn)
}

// BuildDatabaseJSONID constructs the fully qualified identifier for a
// JSON-mode document assembled from multiple columns, exactly as
// _fetch_json_document does: the first three column names joined by
// underscore, plus a "_plus_N_more" suffix if there are more, then a
// trailing "/json" segment.
func BuildDatabaseJSONID(connection, query, idColumn, idValue string, columns []string) string {
	n := len(columns)
	if n > 3 {
		n = 3
	}
	columnsPart := strings.Join(columns[:n], "_")
	if len(columns) > 3 {
		columnsPart += fmt.Sprintf("_plus_%d_more", len(columns)-3)
	}
	return fmt.Sprintf("%s%s/%s/%s/%s/%s/json", databaseIDPrefix, connection, query, idColumn, idValue, columnsPart)
}

// IsDatabaseID reports whether id is a fully qualified database identifier
// rather than a bare row ID.
func IsDatabaseID(id string) bool {
	return strings.HasPrefix(id, databaseIDPrefix)
}

// ExtractRowID recovers the underlying row identifier from a fully
// qualified database ID, exactly as fetch_document/has_changed do: split on
// "/" and take the second-to-last segment (the last segment is the content
// column, or "json" for JSON-mode documents, in which case the row ID is
// the third-to-last segment). A bare (non-fully-qualified) id is returned
// unchanged, matching the original's fallback when the identifier was never
// qualified to begin with.
func ExtractRowID(id string) string {
	if !IsDatabaseID(id) {
		return id
	}
	parts := strings.Split(id, "/")
	if len(parts) < 5 {
		return id
	}
	if parts[len(parts)-1] == "json" {
		if len(parts) < 6 {
			return id
		}
		return parts[len(parts)-3]
	}
	return parts[len(parts)-2]
}

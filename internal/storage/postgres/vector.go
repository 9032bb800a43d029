package postgres

import (
	"encoding/json"
	"math"
	"sort"

	"corpusforge.dev/internal/storage"
)

// float32SliceToJSON and jsonToFloat32Slice store embedding vectors as JSON
// arrays in a plain jsonb column. A production deployment would use
// pgvector's native type; this reference backend stays dependency-light and
// keeps the column portable.
func float32SliceToJSON(v []float32) []byte {
	b, _ := json.Marshal(v)
	return b
}

func jsonToFloat32Slice(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	var v []float32
	_ = json.Unmarshal(b, &v)
	return v
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func sortResultsByScoreDesc(results []storage.StructuredResult) {
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}

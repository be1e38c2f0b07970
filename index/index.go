package index

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies an index implementation.
type Kind string

const (
	// KindFlat is the exact linear-scan index.
	KindFlat Kind = "flat"
	// KindHNSW is the approximate graph index.
	KindHNSW Kind = "hnsw"
)

// String returns the kind name.
func (k Kind) String() string { return string(k) }

// ParseKind parses an index kind name (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindFlat, "exact", "brute":
		return KindFlat, nil
	case KindHNSW, "approximate", "ann":
		return KindHNSW, nil
	default:
		return "", fmt.Errorf("unknown index kind %q", s)
	}
}

// ScoredPoint is a single query result.
type ScoredPoint struct {
	// ID is the external identifier of the matched vector.
	ID string

	// Score is the cosine similarity to the query in [-1, 1]; higher is closer.
	Score float32

	// Metadata is the record's metadata, verbatim. Nil when absent.
	Metadata json.RawMessage
}

// Record is a live vector as held by an index.
type Record struct {
	ID       string
	Values   []float32
	Metadata json.RawMessage
}

// Stats describes an index.
type Stats struct {
	Kind      Kind
	Dimension int
	Vectors   int

	// Nodes is the number of graph nodes, including unreachable ones left
	// behind by deletes and overwrites. Zero for flat indexes.
	Nodes int

	// Tombstones is the number of graph nodes no live ID maps to.
	Tombstones int
}

// Index is a single collection's vector index.
type Index interface {
	// Kind returns the implementation kind.
	Kind() Kind

	// Dimension returns the fixed vector dimension.
	Dimension() int

	// Len returns the number of live vectors.
	Len() int

	// Upsert inserts or fully replaces the record with the given ID.
	Upsert(id string, values []float32, metadata json.RawMessage) error

	// Delete removes the record with the given ID and reports whether it existed.
	Delete(id string) bool

	// Query returns up to topK records ordered by descending cosine similarity.
	Query(vector []float32, topK int) ([]ScoredPoint, error)

	// Export returns all live records ordered by ID.
	Export() []Record

	// Stats returns index statistics.
	Stats() Stats
}

// Factory creates an empty index of the given dimension.
type Factory func(dimension int) (Index, error)

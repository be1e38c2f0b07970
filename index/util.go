package index

import (
	"bytes"
	"cmp"
	"encoding/json"
	"slices"

	"github.com/hupe1980/openvdb/distance"
)

// CheckDimension validates a configured dimension.
func CheckDimension(dimension int) error {
	if dimension <= 0 {
		return &ErrInvalidDimension{Dimension: dimension}
	}
	return nil
}

// Validate checks a vector against the index dimension and returns its L2
// norm.
func Validate(values []float32, dimension int) (float32, error) {
	if len(values) != dimension {
		return 0, &ErrDimensionMismatch{Expected: dimension, Actual: len(values)}
	}
	sq := distance.SquaredNorm(values)
	if distance.IsDegenerate(sq) {
		return 0, ErrDegenerateVector
	}
	return distance.Norm(values), nil
}

// NormalizeMetadata returns nil for absent metadata (empty or JSON null) and
// a private copy otherwise.
func NormalizeMetadata(m json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(m)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return slices.Clone(json.RawMessage(trimmed))
}

// SortScored orders results by descending score. Ties are broken by ID so
// that the order is deterministic for a given set of records.
func SortScored(points []ScoredPoint) {
	slices.SortFunc(points, func(a, b ScoredPoint) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// SortRecords orders records by ID.
func SortRecords(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

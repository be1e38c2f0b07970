package hnsw

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/openvdb/distance"
	"github.com/hupe1980/openvdb/index"
)

// Compile-time check to ensure HNSW satisfies the index contract.
var _ index.Index = (*HNSW)(nil)

// Options contains configuration options for the HNSW index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	Dimension int

	// M is the maximum number of connections per node per layer. Layer 0
	// allows 2*M.
	M int

	// MaxLevels caps the number of graph layers.
	MaxLevels int

	// EfConstruction is the candidate list size used while inserting.
	EfConstruction int

	// EfSearch is the minimum candidate list size used while querying.
	EfSearch int

	// Overfetch multiplies topK to leave room for tombstoned candidates.
	Overfetch int

	// Seed seeds the level generator.
	Seed int64
}

// DefaultOptions contains the default configuration options for the HNSW index.
var DefaultOptions = Options{
	M:              16,
	MaxLevels:      16,
	EfConstruction: 200,
	EfSearch:       64,
	Overfetch:      4,
	Seed:           4711,
}

// record is the live state for one external ID.
type record struct {
	internalID uint32
	values     []float32
	metadata   json.RawMessage
}

// HNSW maps string IDs onto an append-only graph.
type HNSW struct {
	opts       Options
	g          *graph
	records    map[string]*record
	byInternal map[uint32]string
	tombstones *roaring.Bitmap
}

// New creates an empty HNSW index.
func New(optFns ...func(o *Options)) (*HNSW, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := index.CheckDimension(opts.Dimension); err != nil {
		return nil, err
	}
	if opts.M < 2 || opts.MaxLevels < 1 || opts.EfConstruction < 1 || opts.EfSearch < 1 || opts.Overfetch < 1 {
		return nil, errors.New("hnsw: M must be >= 2 and MaxLevels, EfConstruction, EfSearch, Overfetch must be positive")
	}

	return &HNSW{
		opts:       opts,
		g:          newGraph(opts),
		records:    make(map[string]*record),
		byInternal: make(map[uint32]string),
		tombstones: roaring.New(),
	}, nil
}

// Kind returns index.KindHNSW.
func (*HNSW) Kind() index.Kind { return index.KindHNSW }

// Dimension returns the vector dimension.
func (h *HNSW) Dimension() int { return h.opts.Dimension }

// Len returns the number of live vectors.
func (h *HNSW) Len() int { return len(h.records) }

// Upsert inserts a new graph node for id. A previous node for the same id
// is tombstoned.
func (h *HNSW) Upsert(id string, values []float32, metadata json.RawMessage) error {
	if _, err := index.Validate(values, h.opts.Dimension); err != nil {
		return err
	}

	unit, ok := distance.NormalizeL2Copy(values)
	if !ok {
		return index.ErrDegenerateVector
	}

	if old, ok := h.records[id]; ok {
		h.tombstone(old.internalID)
	}

	internalID := h.g.insert(unit)
	h.records[id] = &record{
		internalID: internalID,
		values:     slices.Clone(values),
		metadata:   index.NormalizeMetadata(metadata),
	}
	h.byInternal[internalID] = id

	return nil
}

// Delete tombstones the node for id.
func (h *HNSW) Delete(id string) bool {
	rec, ok := h.records[id]
	if !ok {
		return false
	}
	h.tombstone(rec.internalID)
	delete(h.records, id)
	return true
}

func (h *HNSW) tombstone(internalID uint32) {
	h.tombstones.Add(internalID)
	delete(h.byInternal, internalID)
}

// Query searches the graph for the topK nodes closest to q.
func (h *HNSW) Query(q []float32, topK int) ([]index.ScoredPoint, error) {
	if len(q) != h.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: h.opts.Dimension, Actual: len(q)}
	}
	if topK <= 0 || len(h.records) == 0 {
		return []index.ScoredPoint{}, nil
	}

	unit, ok := distance.NormalizeL2Copy(q)
	if !ok {
		return nil, index.ErrDegenerateVector
	}

	// Stale nodes of overwritten or deleted IDs still occupy beam slots,
	// so the beam widens until topK live nodes are found or the whole
	// graph has been searched.
	n := h.g.len()
	ef := min(max(topK, h.opts.EfSearch, topK*h.opts.Overfetch), n)

	var out []index.ScoredPoint
	for {
		out = h.live(h.g.search(unit, ef))
		if len(out) >= topK || ef >= n {
			break
		}
		ef = min(ef*2, n)
	}

	index.SortScored(out)
	if len(out) > topK {
		out = out[:topK]
	}

	return out, nil
}

// live converts candidates into scored points, dropping tombstoned and
// unmapped nodes.
func (h *HNSW) live(candidates []distItem) []index.ScoredPoint {
	out := make([]index.ScoredPoint, 0, len(candidates))
	for _, c := range candidates {
		if h.tombstones.Contains(c.id) {
			continue
		}
		id, ok := h.byInternal[c.id]
		if !ok {
			continue
		}
		out = append(out, index.ScoredPoint{
			ID:       id,
			Score:    1 - c.dist,
			Metadata: slices.Clone(h.records[id].metadata),
		})
	}
	return out
}

// Export returns all live records ordered by ID.
func (h *HNSW) Export() []index.Record {
	out := make([]index.Record, 0, len(h.records))
	for id, rec := range h.records {
		out = append(out, index.Record{
			ID:       id,
			Values:   slices.Clone(rec.values),
			Metadata: slices.Clone(rec.metadata),
		})
	}
	index.SortRecords(out)
	return out
}

// Stats returns index statistics including graph node and tombstone counts.
func (h *HNSW) Stats() index.Stats {
	return index.Stats{
		Kind:       index.KindHNSW,
		Dimension:  h.opts.Dimension,
		Vectors:    len(h.records),
		Nodes:      h.g.len(),
		Tombstones: int(h.tombstones.GetCardinality()),
	}
}

// Package flat provides an exact cosine-similarity index backed by a linear scan.
package flat

import (
	"container/heap"
	"encoding/json"
	"slices"

	"github.com/hupe1980/openvdb/distance"
	"github.com/hupe1980/openvdb/index"
)

// Compile-time check to ensure Flat satisfies the index contract.
var _ index.Index = (*Flat)(nil)

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all upserts and queries.
	Dimension int
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{}

type entry struct {
	values   []float32
	norm     float32
	metadata json.RawMessage
}

// Flat is an exact index. Each query scores every live record.
type Flat struct {
	opts    Options
	entries map[string]*entry
}

// New creates an empty flat index.
func New(optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := index.CheckDimension(opts.Dimension); err != nil {
		return nil, err
	}

	return &Flat{
		opts:    opts,
		entries: make(map[string]*entry),
	}, nil
}

// Kind returns index.KindFlat.
func (*Flat) Kind() index.Kind { return index.KindFlat }

// Dimension returns the vector dimension.
func (f *Flat) Dimension() int { return f.opts.Dimension }

// Len returns the number of stored vectors.
func (f *Flat) Len() int { return len(f.entries) }

// Upsert inserts or replaces a vector.
func (f *Flat) Upsert(id string, values []float32, metadata json.RawMessage) error {
	norm, err := index.Validate(values, f.opts.Dimension)
	if err != nil {
		return err
	}

	f.entries[id] = &entry{
		values:   slices.Clone(values),
		norm:     norm,
		metadata: index.NormalizeMetadata(metadata),
	}

	return nil
}

// Delete removes a vector.
func (f *Flat) Delete(id string) bool {
	if _, ok := f.entries[id]; !ok {
		return false
	}
	delete(f.entries, id)
	return true
}

// Query scores every stored vector against q and returns the best topK.
func (f *Flat) Query(q []float32, topK int) ([]index.ScoredPoint, error) {
	if len(q) != f.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(q)}
	}
	if topK <= 0 || len(f.entries) == 0 {
		return []index.ScoredPoint{}, nil
	}

	qNorm, err := index.Validate(q, f.opts.Dimension)
	if err != nil {
		return nil, err
	}

	h := make(resultHeap, 0, min(topK, len(f.entries)))
	for id, e := range f.entries {
		p := index.ScoredPoint{
			ID:    id,
			Score: distance.CosineWithNorms(q, e.values, qNorm, e.norm),
		}
		if len(h) < topK {
			heap.Push(&h, p)
			continue
		}
		if h.worse(h[0], p) {
			h[0] = p
			heap.Fix(&h, 0)
		}
	}

	out := make([]index.ScoredPoint, len(h))
	copy(out, h)
	index.SortScored(out)
	for i := range out {
		out[i].Metadata = slices.Clone(f.entries[out[i].ID].metadata)
	}

	return out, nil
}

// Export returns all stored records ordered by ID.
func (f *Flat) Export() []index.Record {
	out := make([]index.Record, 0, len(f.entries))
	for id, e := range f.entries {
		out = append(out, index.Record{
			ID:       id,
			Values:   slices.Clone(e.values),
			Metadata: slices.Clone(e.metadata),
		})
	}
	index.SortRecords(out)
	return out
}

// Stats returns index statistics.
func (f *Flat) Stats() index.Stats {
	return index.Stats{
		Kind:      index.KindFlat,
		Dimension: f.opts.Dimension,
		Vectors:   len(f.entries),
	}
}

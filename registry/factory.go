package registry

import (
	"fmt"
	"slices"

	"github.com/hupe1980/openvdb/index"
	"github.com/hupe1980/openvdb/index/flat"
	"github.com/hupe1980/openvdb/index/hnsw"
)

// NewIndexFactory returns a factory for the given index kind. HNSW options
// are applied to every index the factory creates.
func NewIndexFactory(kind index.Kind, hnswOpts ...func(o *hnsw.Options)) (index.Factory, error) {
	switch kind {
	case index.KindFlat:
		return func(dimension int) (index.Index, error) {
			return flat.New(func(o *flat.Options) { o.Dimension = dimension })
		}, nil
	case index.KindHNSW:
		return func(dimension int) (index.Index, error) {
			optFns := append(slices.Clone(hnswOpts), func(o *hnsw.Options) { o.Dimension = dimension })
			return hnsw.New(optFns...)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported index kind %q", kind)
	}
}

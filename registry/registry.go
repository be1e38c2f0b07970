package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/openvdb/index"
	"github.com/hupe1980/openvdb/persistence"
)

// Compile-time check to ensure Registry can be recovered into.
var _ persistence.Target = (*Registry)(nil)

// Summary describes a collection.
type Summary struct {
	Name        string
	Dimension   int
	VectorCount int
}

// Registry maps tenant → collection name → index.
type Registry struct {
	mu      sync.RWMutex
	factory index.Factory
	tenants map[string]map[string]index.Index
	lsn     uint64
}

// New creates an empty registry that builds collections with factory.
func New(factory index.Factory) *Registry {
	return &Registry{
		factory: factory,
		tenants: make(map[string]map[string]index.Index),
	}
}

// LSN returns the sequence number of the most recent mutation.
func (r *Registry) LSN() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lsn
}

// Create adds an empty collection and returns the mutation's LSN.
func (r *Registry) Create(tenant, name string, dimension int) (uint64, error) {
	if err := index.CheckDimension(dimension); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cols := r.tenants[tenant]
	if _, ok := cols[name]; ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrAlreadyExists, tenant, name)
	}

	idx, err := r.factory(dimension)
	if err != nil {
		return 0, err
	}

	if cols == nil {
		cols = make(map[string]index.Index)
		r.tenants[tenant] = cols
	}
	cols[name] = idx

	r.lsn++
	return r.lsn, nil
}

// Delete removes a collection. It reports false, and consumes no LSN, if
// the collection did not exist.
func (r *Registry) Delete(tenant, name string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cols := r.tenants[tenant]
	if _, ok := cols[name]; !ok {
		return 0, false
	}

	delete(cols, name)
	if len(cols) == 0 {
		delete(r.tenants, tenant)
	}

	r.lsn++
	return r.lsn, true
}

// View runs fn against a collection under the shared lock. fn must not
// mutate the index.
func (r *Registry) View(tenant, name string, fn func(idx index.Index) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, err := r.lookup(tenant, name)
	if err != nil {
		return err
	}

	return fn(idx)
}

// Update runs fn against a collection under the exclusive lock. fn reports
// whether it changed the index; an LSN is assigned only if it did, in which
// case the LSN is returned even when fn also returns an error.
func (r *Registry) Update(tenant, name string, fn func(idx index.Index) (bool, error)) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, err := r.lookup(tenant, name)
	if err != nil {
		return 0, err
	}

	changed, err := fn(idx)

	var lsn uint64
	if changed {
		r.lsn++
		lsn = r.lsn
	}

	return lsn, err
}

func (r *Registry) lookup(tenant, name string) (index.Index, error) {
	idx, ok := r.tenants[tenant][name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, tenant, name)
	}
	return idx, nil
}

// List returns the tenant's collections ordered by name.
func (r *Registry) List(tenant string) []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cols := r.tenants[tenant]
	out := make([]Summary, 0, len(cols))
	for name, idx := range cols {
		out = append(out, Summary{Name: name, Dimension: idx.Dimension(), VectorCount: idx.Len()})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns a single collection's summary.
func (r *Registry) Get(tenant, name string) (Summary, error) {
	var s Summary
	err := r.View(tenant, name, func(idx index.Index) error {
		s = Summary{Name: name, Dimension: idx.Dimension(), VectorCount: idx.Len()}
		return nil
	})
	return s, err
}

// Stat returns a collection's index statistics.
func (r *Registry) Stat(tenant, name string) (index.Stats, error) {
	var st index.Stats
	err := r.View(tenant, name, func(idx index.Index) error {
		st = idx.Stats()
		return nil
	})
	return st, err
}

// Tenants returns the tenants that own at least one collection.
func (r *Registry) Tenants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.tenants))
	for t := range r.tenants {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Export captures every collection together with the LSN of the last
// mutation it reflects.
func (r *Registry) Export() (*persistence.State, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := persistence.NewState()
	for tenant, cols := range r.tenants {
		tcols := make(map[string]*persistence.CollectionState, len(cols))
		for name, idx := range cols {
			recs := idx.Export()
			vecs := make([]persistence.VectorState, len(recs))
			for i, rec := range recs {
				vecs[i] = persistence.VectorState{ID: rec.ID, Values: rec.Values, Metadata: rec.Metadata}
			}
			tcols[name] = &persistence.CollectionState{Dimension: idx.Dimension(), Vectors: vecs}
		}
		state.Tenants[tenant] = tcols
	}

	return state, r.lsn
}

// Restore replaces every collection with the contents of state. On error
// the registry is left unchanged.
func (r *Registry) Restore(state *persistence.State) error {
	tenants := make(map[string]map[string]index.Index, len(state.Tenants))
	for tenant, cols := range state.Tenants {
		if len(cols) == 0 {
			continue
		}
		tcols := make(map[string]index.Index, len(cols))
		for name, cs := range cols {
			if cs == nil {
				return fmt.Errorf("collection %s/%s: missing body", tenant, name)
			}
			idx, err := r.factory(cs.Dimension)
			if err != nil {
				return fmt.Errorf("collection %s/%s: %w", tenant, name, err)
			}
			for _, v := range cs.Vectors {
				if err := idx.Upsert(v.ID, v.Values, v.Metadata); err != nil {
					return fmt.Errorf("collection %s/%s vector %q: %w", tenant, name, v.ID, err)
				}
			}
			tcols[name] = idx
		}
		tenants[tenant] = tcols
	}

	r.mu.Lock()
	r.tenants = tenants
	r.mu.Unlock()

	return nil
}

// HasCollection reports whether the collection exists.
func (r *Registry) HasCollection(tenant, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tenants[tenant][name]
	return ok
}

// CreateCollection creates a collection during replay.
func (r *Registry) CreateCollection(tenant, name string, dimension int) error {
	_, err := r.Create(tenant, name, dimension)
	return err
}

// DeleteCollection removes a collection during replay.
func (r *Registry) DeleteCollection(tenant, name string) bool {
	_, ok := r.Delete(tenant, name)
	return ok
}

// UpsertVector upserts a single vector during replay.
func (r *Registry) UpsertVector(tenant, name, id string, values []float32, metadata json.RawMessage) error {
	_, err := r.Update(tenant, name, func(idx index.Index) (bool, error) {
		if err := idx.Upsert(id, values, metadata); err != nil {
			return false, err
		}
		return true, nil
	})
	return err
}

// DeleteVector deletes a single vector during replay.
func (r *Registry) DeleteVector(tenant, name, id string) (bool, error) {
	var deleted bool
	_, err := r.Update(tenant, name, func(idx index.Index) (bool, error) {
		deleted = idx.Delete(id)
		return deleted, nil
	})
	return deleted, err
}

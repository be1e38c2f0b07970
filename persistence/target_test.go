package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/hupe1980/openvdb/wal"
	"github.com/stretchr/testify/require"
)

type memCollection struct {
	tenant, name string
	dim          int
	vecs         map[string]VectorState
}

// memTarget is a minimal Target used to exercise recovery without the
// registry.
type memTarget struct {
	lsn  uint64
	cols map[string]*memCollection
}

func newMemTarget() *memTarget {
	return &memTarget{cols: make(map[string]*memCollection)}
}

func key(tenant, name string) string { return tenant + "/" + name }

func (m *memTarget) Restore(state *State) error {
	cols := make(map[string]*memCollection)
	for tenant, tcols := range state.Tenants {
		for name, cs := range tcols {
			c := &memCollection{tenant: tenant, name: name, dim: cs.Dimension, vecs: make(map[string]VectorState)}
			for _, v := range cs.Vectors {
				c.vecs[v.ID] = v
			}
			cols[key(tenant, name)] = c
		}
	}
	m.cols = cols
	return nil
}

func (m *memTarget) HasCollection(tenant, name string) bool {
	_, ok := m.cols[key(tenant, name)]
	return ok
}

func (m *memTarget) CreateCollection(tenant, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	if m.HasCollection(tenant, name) {
		return errors.New("exists")
	}
	m.cols[key(tenant, name)] = &memCollection{tenant: tenant, name: name, dim: dimension, vecs: make(map[string]VectorState)}
	m.lsn++
	return nil
}

func (m *memTarget) DeleteCollection(tenant, name string) bool {
	if !m.HasCollection(tenant, name) {
		return false
	}
	delete(m.cols, key(tenant, name))
	m.lsn++
	return true
}

func (m *memTarget) UpsertVector(tenant, name, id string, values []float32, metadata json.RawMessage) error {
	c, ok := m.cols[key(tenant, name)]
	if !ok {
		return errors.New("not found")
	}
	if len(values) != c.dim {
		return fmt.Errorf("dimension mismatch: %d != %d", len(values), c.dim)
	}
	c.vecs[id] = VectorState{ID: id, Values: values, Metadata: metadata}
	m.lsn++
	return nil
}

func (m *memTarget) DeleteVector(tenant, name, id string) (bool, error) {
	c, ok := m.cols[key(tenant, name)]
	if !ok {
		return false, errors.New("not found")
	}
	if _, ok := c.vecs[id]; !ok {
		return false, nil
	}
	delete(c.vecs, id)
	m.lsn++
	return true, nil
}

func (m *memTarget) LSN() uint64 { return m.lsn }

func (m *memTarget) export() (*State, uint64) {
	s := NewState()
	for _, c := range m.cols {
		if s.Tenants[c.tenant] == nil {
			s.Tenants[c.tenant] = make(map[string]*CollectionState)
		}
		cs := &CollectionState{Dimension: c.dim, Vectors: []VectorState{}}
		for _, v := range c.vecs {
			cs.Vectors = append(cs.Vectors, v)
		}
		sort.Slice(cs.Vectors, func(i, j int) bool { return cs.Vectors[i].ID < cs.Vectors[j].ID })
		s.Tenants[c.tenant][c.name] = cs
	}
	return s, m.lsn
}

// do applies e to the target the way live traffic would and logs it.
func (m *memTarget) do(t *testing.T, mgr *Manager, e wal.Entry) {
	t.Helper()
	before := m.lsn
	mgr.apply(m, e)
	require.Greater(t, m.lsn, before, "entry did not change state: %+v", e)
	require.NoError(t, mgr.Append(m.lsn, e))
}

// tenantsOf returns the exported tenants for comparison.
func (m *memTarget) tenantsOf() map[string]map[string]*CollectionState {
	s, _ := m.export()
	return s.Tenants
}

package persistence

import (
	"encoding/json"
	"time"
)

// SnapshotVersion is the current snapshot document version.
const SnapshotVersion = 1

// State is a point-in-time copy of every collection.
type State struct {
	Version   int                                    `json:"version"`
	CreatedAt time.Time                              `json:"created_at"`
	Tenants   map[string]map[string]*CollectionState `json:"tenants"`
}

// CollectionState holds one collection's dimension and live vectors.
type CollectionState struct {
	Dimension int           `json:"dimension"`
	Vectors   []VectorState `json:"vectors"`
}

// VectorState is a single stored vector.
type VectorState struct {
	ID       string          `json:"id"`
	Values   []float32       `json:"values"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// NewState returns an empty state stamped with the current time.
func NewState() *State {
	return &State{
		Version:   SnapshotVersion,
		CreatedAt: time.Now().UTC(),
		Tenants:   make(map[string]map[string]*CollectionState),
	}
}

// Collections returns the number of collections across all tenants.
func (s *State) Collections() int {
	n := 0
	for _, cols := range s.Tenants {
		n += len(cols)
	}
	return n
}

// Vectors returns the number of vectors across all collections.
func (s *State) Vectors() int {
	n := 0
	for _, cols := range s.Tenants {
		for _, c := range cols {
			n += len(c.Vectors)
		}
	}
	return n
}

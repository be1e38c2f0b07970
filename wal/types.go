package wal

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DurabilityMode defines the fsync behavior for WAL writes.
type DurabilityMode int

const (
	// DurabilityAsync flushes each append to the OS but does not fsync.
	// A process crash loses nothing; a power loss may lose recent appends.
	DurabilityAsync DurabilityMode = iota

	// DurabilitySync fdatasyncs after every append.
	DurabilitySync
)

// String returns the mode name.
func (m DurabilityMode) String() string {
	switch m {
	case DurabilityAsync:
		return "async"
	case DurabilitySync:
		return "sync"
	default:
		return fmt.Sprintf("DurabilityMode(%d)", int(m))
	}
}

// ParseDurabilityMode parses "async" or "sync".
func ParseDurabilityMode(s string) (DurabilityMode, error) {
	switch s {
	case "async", "":
		return DurabilityAsync, nil
	case "sync":
		return DurabilitySync, nil
	default:
		return 0, fmt.Errorf("unknown durability mode %q", s)
	}
}

// OpType represents the type of operation in the WAL.
type OpType string

const (
	// OpCreateCollection creates an empty collection.
	OpCreateCollection OpType = "create_collection"
	// OpDeleteCollection removes a collection and all its vectors.
	OpDeleteCollection OpType = "delete_collection"
	// OpUpsertVector inserts or replaces a vector.
	OpUpsertVector OpType = "upsert_vector"
	// OpDeleteVector removes a vector.
	OpDeleteVector OpType = "delete_vector"
)

var (
	// ErrInvalidEntry is returned by Validate for structurally invalid records.
	ErrInvalidEntry = errors.New("invalid wal entry")

	// ErrCorruptRecord wraps the error reported for a WAL line that cannot
	// be decoded or fails validation.
	ErrCorruptRecord = errors.New("corrupt wal record")
)

// Entry represents a single entry in the WAL. Collection operations use
// Name; vector operations use Collection.
type Entry struct {
	Type       OpType          `json:"type"`
	Tenant     string          `json:"tenant"`
	Name       string          `json:"name,omitempty"`
	Dimension  int             `json:"dimension,omitempty"`
	Collection string          `json:"collection,omitempty"`
	ID         string          `json:"id,omitempty"`
	Values     []float32       `json:"values,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// CreateCollection returns a create_collection entry.
func CreateCollection(tenant, name string, dimension int) Entry {
	return Entry{Type: OpCreateCollection, Tenant: tenant, Name: name, Dimension: dimension}
}

// DeleteCollection returns a delete_collection entry.
func DeleteCollection(tenant, name string) Entry {
	return Entry{Type: OpDeleteCollection, Tenant: tenant, Name: name}
}

// UpsertVector returns an upsert_vector entry.
func UpsertVector(tenant, collection, id string, values []float32, metadata json.RawMessage) Entry {
	return Entry{Type: OpUpsertVector, Tenant: tenant, Collection: collection, ID: id, Values: values, Metadata: metadata}
}

// DeleteVector returns a delete_vector entry.
func DeleteVector(tenant, collection, id string) Entry {
	return Entry{Type: OpDeleteVector, Tenant: tenant, Collection: collection, ID: id}
}

// CollectionName returns the collection the entry applies to.
func (e Entry) CollectionName() string {
	switch e.Type {
	case OpCreateCollection, OpDeleteCollection:
		return e.Name
	default:
		return e.Collection
	}
}

// Validate checks that the entry carries the fields its type requires.
func (e Entry) Validate() error {
	if e.Tenant == "" {
		return fmt.Errorf("%w: %s: empty tenant", ErrInvalidEntry, e.Type)
	}

	switch e.Type {
	case OpCreateCollection:
		if e.Name == "" {
			return fmt.Errorf("%w: %s: empty name", ErrInvalidEntry, e.Type)
		}
		if e.Dimension <= 0 {
			return fmt.Errorf("%w: %s: dimension %d", ErrInvalidEntry, e.Type, e.Dimension)
		}
	case OpDeleteCollection:
		if e.Name == "" {
			return fmt.Errorf("%w: %s: empty name", ErrInvalidEntry, e.Type)
		}
	case OpUpsertVector, OpDeleteVector:
		if e.Collection == "" {
			return fmt.Errorf("%w: %s: empty collection", ErrInvalidEntry, e.Type)
		}
		if e.ID == "" {
			return fmt.Errorf("%w: %s: empty id", ErrInvalidEntry, e.Type)
		}
		if e.Type == OpUpsertVector && len(e.Values) == 0 {
			return fmt.Errorf("%w: %s: empty values", ErrInvalidEntry, e.Type)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEntry, e.Type)
	}

	return nil
}

package persistence

import (
	"errors"
	"fmt"

	"github.com/hupe1980/openvdb/codec"
)

// ErrCorruptSnapshot is returned when a snapshot exists but cannot be
// decoded or fails validation.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// EncodeSnapshot serializes and optionally compresses a state.
func EncodeSnapshot(c codec.Codec, state *State, compression Compression) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	raw, err := c.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return compress(raw, compression)
}

// DecodeSnapshot decompresses, decodes and validates a snapshot document.
// Every failure wraps ErrCorruptSnapshot.
func DecodeSnapshot(c codec.Codec, data []byte) (*State, error) {
	if c == nil {
		c = codec.Default
	}

	raw, _, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	var state State
	if err := c.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if err := state.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	return &state, nil
}

func (s *State) validate() error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported version %d", s.Version)
	}
	if s.Tenants == nil {
		return errors.New("missing tenants")
	}

	for tenant, cols := range s.Tenants {
		if tenant == "" {
			return errors.New("empty tenant name")
		}
		for name, c := range cols {
			if name == "" {
				return fmt.Errorf("tenant %s: empty collection name", tenant)
			}
			if c == nil {
				return fmt.Errorf("collection %s/%s: missing body", tenant, name)
			}
			if c.Dimension <= 0 {
				return fmt.Errorf("collection %s/%s: invalid dimension %d", tenant, name, c.Dimension)
			}
			seen := make(map[string]struct{}, len(c.Vectors))
			for _, v := range c.Vectors {
				if v.ID == "" {
					return fmt.Errorf("collection %s/%s: empty vector id", tenant, name)
				}
				if _, dup := seen[v.ID]; dup {
					return fmt.Errorf("collection %s/%s: duplicate vector id %q", tenant, name, v.ID)
				}
				seen[v.ID] = struct{}{}
				if len(v.Values) != c.Dimension {
					return fmt.Errorf("collection %s/%s vector %q: has %d values, want %d", tenant, name, v.ID, len(v.Values), c.Dimension)
				}
			}
		}
	}

	return nil
}

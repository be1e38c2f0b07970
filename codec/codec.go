// Package codec selects the JSON implementation used for WAL records and
// snapshot documents.
//
// Every codec produces standard JSON, so a data directory written with
// one codec replays with any other.
package codec

import "fmt"

// Codec marshals WAL entries and snapshot documents. Implementations must
// be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is used when no codec is configured.
var Default Codec = GoJSON{}

// Parse returns the codec registered under name. An empty name selects
// Default.
func Parse(name string) (Codec, error) {
	switch name {
	case "":
		return Default, nil
	case GoJSON{}.Name():
		return GoJSON{}, nil
	case JSON{}.Name():
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

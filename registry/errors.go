package registry

import "errors"

var (
	// ErrNotFound is returned when a tenant or collection does not exist.
	ErrNotFound = errors.New("collection not found")

	// ErrAlreadyExists is returned when creating a collection that exists.
	ErrAlreadyExists = errors.New("collection already exists")
)

package openvdb

import (
	"errors"
	"fmt"

	"github.com/hupe1980/openvdb/index"
	"github.com/hupe1980/openvdb/persistence"
	"github.com/hupe1980/openvdb/registry"
	"github.com/hupe1980/openvdb/wal"
)

var (
	// ErrInvalidInput is returned for malformed arguments: empty names,
	// bad dimensions, dimension mismatches and zero-norm vectors.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a tenant or collection does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when creating a collection that already exists.
	ErrConflict = errors.New("conflict")

	// ErrIO is returned when a durability operation fails.
	ErrIO = errors.New("i/o error")

	// ErrCorruptRecord marks a WAL line that could not be decoded. Such
	// lines are skipped during recovery and never surface from Open.
	ErrCorruptRecord = wal.ErrCorruptRecord

	// ErrCorruptSnapshot is returned by Open when the snapshot file exists
	// but cannot be decoded.
	ErrCorruptSnapshot = persistence.ErrCorruptSnapshot

	// ErrClosed is returned for operations on a closed DB.
	ErrClosed = errors.New("database is closed")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// It matches ErrInvalidInput with errors.Is. The original underlying error
// can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func (e *ErrDimensionMismatch) Is(target error) bool { return target == ErrInvalidInput }

// ErrInvalidDimension indicates a non-positive collection dimension.
//
// It matches ErrInvalidInput with errors.Is.
type ErrInvalidDimension struct {
	Dimension int
	cause     error
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

func (e *ErrInvalidDimension) Unwrap() error { return e.cause }

func (e *ErrInvalidDimension) Is(target error) bool { return target == ErrInvalidInput }

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Registry lookups.
	if errors.Is(err, registry.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, registry.ErrAlreadyExists) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}

	// Argument normalization.
	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	var id *index.ErrInvalidDimension
	if errors.As(err, &id) {
		return &ErrInvalidDimension{Dimension: id.Dimension, cause: err}
	}
	if errors.Is(err, index.ErrDegenerateVector) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if errors.Is(err, persistence.ErrManagerClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return err
}

package store

import "errors"

var (
	// ErrNotFound is returned when an item has no embedding in the ledger.
	ErrNotFound = errors.New("no embedding for item")

	// ErrDimensionMismatch is returned when an embedding's vector length
	// does not match the dimensionality an index was built with.
	ErrDimensionMismatch = errors.New("vector length mismatch")

	// ErrUnknownMetric is returned when a metric name is not supported.
	ErrUnknownMetric = errors.New("unsupported metric")

	// ErrNotOpen is returned when an operation is attempted on a store
	// that has not been opened.
	ErrNotOpen = errors.New("store not opened")
)

// Package errs defines the sentinel errors shared across gridappend packages.
//
// Callers match these with errors.Is; producing code wraps them with
// fmt.Errorf("%w: ...") to attach context without losing identity.
// Every error here is fatal to the run that raises it — gridappend performs
// no internal retries and no partial commits.
package errs

import "errors"

var (
	// ErrVariableNotFound indicates a requested variable is absent from a
	// dataset that must carry it: the incoming dataset during selection, or
	// the existing dataset during concatenation.
	ErrVariableNotFound = errors.New("variable not found in dataset")

	// ErrAxisMismatch indicates the existing and incoming datasets disagree on
	// dimension names or lengths for a shared variable outside the ordering
	// dimension, making concatenation impossible.
	ErrAxisMismatch = errors.New("dimension mismatch between datasets")

	// ErrNoOrderingCoordinate indicates the ordering dimension has no
	// unambiguous coordinate: either no coordinate is bound to exactly that
	// dimension, or more than one is.
	ErrNoOrderingCoordinate = errors.New("no unambiguous ordering coordinate")

	// ErrNoMatch indicates an input glob pattern matched no files.
	ErrNoMatch = errors.New("no input files matched pattern")

	// ErrStoreExists indicates the destination store already exists and the
	// write was requested with exclusive-create semantics. Nothing at the
	// destination is altered when this is returned.
	ErrStoreExists = errors.New("destination store already exists")

	// ErrStoreMissing indicates no store exists at the given locator.
	ErrStoreMissing = errors.New("no store at locator")

	// ErrChunkPlan indicates a chunk plan violates the store-wide invariant
	// that every variable shares one block size along the ordering dimension.
	ErrChunkPlan = errors.New("chunk plan violates ordering-dimension invariant")

	// ErrCorruptStore indicates a store's manifest or chunk payloads failed
	// validation (bad JSON, truncated payload, digest mismatch).
	ErrCorruptStore = errors.New("store is corrupt")

	// ErrEmptyDataset indicates an operation requiring dataset content got
	// none: a nil incoming dataset, a dataset with no data variables, or an
	// encode of nothing.
	ErrEmptyDataset = errors.New("dataset has no samples")
)

// Package dataset implements the merge-and-normalize core: an in-memory
// model of labeled N-dimensional array collections sharing one ordering
// dimension, plus the operations that reconcile an existing collection with
// newly ingested data along that dimension.
//
// The pipeline shape is Merge -> Dedup -> Trim -> PlanChunks, each a pure
// operation from datasets to datasets. Inputs are never mutated: results
// share array payloads where contents are unchanged and allocate fresh ones
// where they are not, so repeated runs over the same inputs are idempotent.
package dataset

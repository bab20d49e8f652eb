// Package store persists datasets as chunked, compressed array stores and
// loads them back.
//
// A store is a flat namespace of small objects. Each array contributes a
// metadata document (<name>/.zarray), a dimension-label document
// (<name>/.zattrs) and one object per chunk (<name>/<i>.<j>.<k>, C-order
// grid coordinates, edge chunks unpadded). The root holds .zgroup and a
// consolidated .zmetadata manifest carrying every metadata document plus an
// xxHash64 digest per written chunk, so a store opens with one read and
// payload corruption is detected at load time.
//
// Chunks whose payload is entirely the fill value (NaN for floats, zero for
// ints) are suppressed at write time by default and materialize as fill on
// read. Two backends resolve from the destination locator: a directory tree,
// or a single SQLite database when the locator ends in .sqlite or .db.
// Writes build the complete store in a temporary sibling and rename it into
// place; exclusive-create mode refuses to touch an existing destination.
package store

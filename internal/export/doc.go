// Package export copies finished recordings to external storage.
//
// A batch is not a rollback-capable transaction: every item is copied,
// verified by size (and optionally by SHA-256) and only then, when the
// keep-originals policy is off, deleted from the recordings directory. A
// failing item is recorded and the batch moves on.
package export

// Package ledger records produced bundles in SQLite.
//
// Each entry is keyed by the SHA-256 of the source package, the leaf's
// positional key and the packaging mode, so packaging the same archive twice
// refreshes rows instead of duplicating them. Bundle zips are content
// addressed; the ledger maps leaves to those zips and lets `imscp ledger`
// list or prune them.
//
// Schema changes bump schemaVersion in schema.go; users delete the ledger to
// adopt the new schema.
package ledger

// Package archive unpacks content package zips and writes the deterministic
// bundle zips produced by the packaging pipeline.
//
// Extraction enforces entry count, byte and time limits and refuses entries
// that would land outside the destination directory. CreatePredictable sorts
// entries and pins timestamps and permissions so identical inputs yield
// byte-identical archives, named by the SHA-256 of their contents.
package archive

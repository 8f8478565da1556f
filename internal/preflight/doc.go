// Package preflight provides readiness checks for the filesystem paths and
// assets imscp depends on.
//
// The CLI "imscp doctor" command runs RunAll and renders each Result; the
// package command runs the same checks before extracting so a missing or
// read-only output directory fails fast instead of after extraction.
package preflight

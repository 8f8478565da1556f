// Package bundle turns the resolved leaves of a content package into
// standalone HTML5 zip bundles.
//
// Copy mode gathers each leaf's transitive file set into its own archive with
// an index.html entry point, optionally bridging SCORM SCOs. Redirect mode
// writes a tiny index.html that forwards into the original package archive,
// which travels alongside as a dependency zip. Leaves are built concurrently
// by a bounded worker pool; one leaf failing never stops the others.
package bundle

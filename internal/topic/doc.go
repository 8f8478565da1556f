// Package topic turns a parsed package and its bundle report into the node
// tree a curation tool imports.
//
// Internal items become topic nodes and bundled leaves become html5 nodes
// carrying their zips. Source ids chain parent and child identifiers with "-";
// children without an identifier are named item<N> by position. Node ids are
// UUIDv5 values derived from the package identifier and positional path, so the
// same package always yields the same ids.
package topic

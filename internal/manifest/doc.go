// Package manifest parses IMS Content Package manifests into normalized item
// trees with resolved resource file sets.
//
// LoadDocument reads imsmanifest.xml, retrying with a detected byte encoding
// when exporters mis-declare it. WalkItems mirrors each <organization> as an
// Item tree, ExtractMetadata flattens LOM blocks into ordered Values, and a
// Resolver attaches resource fields and the transitive dependency file set to
// every leaf. Parser.ExtractFromDir chains these steps.
//
// Only an unreadable manifest fails a package. Everything else (empty titles,
// dangling identifierrefs, unsupported resource types, dependency cycles) is
// reported as a Problem next to the best-effort Result so callers decide what
// is fatal for them.
package manifest

// Command imscp inspects IMS Content Packages and turns their web content
// leaves into standalone zip bundles.
//
// The command tree mirrors the library packages: inspect and extract drive
// internal/manifest, package runs internal/bundle and internal/topic and
// records results through internal/ledger, while staging, config and doctor
// expose the supporting infrastructure. Every command honours --json for
// scripted use.
package main
